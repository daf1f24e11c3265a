package builder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/fwmeta/internal/appstream"
	"github.com/oshokin/fwmeta/internal/artifact"
	"github.com/oshokin/fwmeta/internal/domain/firmware"
	"github.com/oshokin/fwmeta/internal/jcat"
	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/purge"
	repo "github.com/oshokin/fwmeta/internal/repository/metadata"
	"github.com/oshokin/fwmeta/internal/signer"
)

// Outcome tells whether a build happened.
type Outcome int

const (
	// Skipped means a guard stopped the build before anything was written.
	Skipped Outcome = iota
	// Built means the metadata was written and recorded.
	Built
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	if o == Built {
		return "built"
	}

	return "skipped"
}

// Result describes one regeneration attempt.
type Result struct {
	Remote     string
	Outcome    Outcome
	SkipReason firmware.SkipReason
	// BuildCounter is the counter after the build, or the stored one when skipped.
	BuildCounter int
	// Files are the written paths sorted by filename.
	Files []string
}

// ErrNoOutputDir is returned when the download directory cannot be created.
var ErrNoOutputDir = errors.New("download directory unavailable")

// DefaultLeaseTTL bounds a claim when Options.LeaseTTL is zero.
const DefaultLeaseTTL = 5 * time.Minute

// releaseTimeout bounds the lease release after a failed build.
const releaseTimeout = 10 * time.Second

// Options wires the collaborators of a Builder.
type Options struct {
	// Store is the download directory; nil or an empty directory skips every build.
	Store *artifact.Store
	// Signers produce the signature blobs, nil means digests only.
	Signers *signer.Set
	// Invalidator purges written files, nil disables purging.
	Invalidator purge.Invalidator
	// Owner identifies this process in leases; Token is replaced per build.
	Owner firmware.Owner
	// LeaseTTL bounds a claim.
	LeaseTTL time.Duration
	// FirmwareBaseURI prefixes firmware locations in the catalog.
	FirmwareBaseURI string
	// Origin is the catalog origin attribute.
	Origin string
	// Now returns the blob timestamp; nil uses time.Now.
	Now func() time.Time
}

type pendingFile struct {
	name string
	data []byte
}

// Builder runs metadata builds against a repository.
type Builder struct {
	repo repo.Repository
	opts Options
}

// New creates a builder.
func New(repository repo.Repository, opts Options) *Builder {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.Invalidator == nil {
		opts.Invalidator = purge.Log{}
	}

	return &Builder{repo: repository, opts: opts}
}

// RegenerateAll rebuilds every remote that needs it. Failures of one remote
// do not stop the others and are returned joined.
func (b *Builder) RegenerateAll(ctx context.Context) ([]*Result, error) {
	remotes, err := b.repo.ListRemotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}

	var (
		results = make([]*Result, 0, len(remotes))
		errs    []error
	)

	for _, remote := range remotes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)

			break
		}

		result, err := b.RegenerateRemote(ctx, remote.Name)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

// RegenerateRemote builds the metadata of the named remote.
func (b *Builder) RegenerateRemote(ctx context.Context, name string) (*Result, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "fwmeta-builder"), "remote", name)

	reason, err := b.ensureOutputDir()
	if err != nil {
		return nil, err
	}

	if reason != firmware.SkipNone {
		logger.WarnKV(ctx, "Skipping build", "reason", reason)

		return &Result{Remote: name, Outcome: Skipped, SkipReason: reason}, nil
	}

	owner := b.opts.Owner
	owner.Token = uuid.NewString()

	remote, reason, err := b.repo.ClaimRemote(ctx, name, owner, b.opts.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("claim remote %s: %w", name, err)
	}

	if reason != firmware.SkipNone {
		logger.DebugKV(ctx, "Skipping build", "reason", reason)

		result := &Result{Remote: name, Outcome: Skipped, SkipReason: reason}
		if remote != nil {
			result.BuildCounter = remote.BuildCounter
		}

		return result, nil
	}

	ctx = logger.WithKV(ctx, "build", remote.BuildCounter)

	files, firmwareIDs, err := b.publish(ctx, remote)
	if err != nil {
		b.release(ctx, remote, owner)
		logger.ErrorKV(ctx, "Build failed", "error", err)

		return nil, fmt.Errorf("build %s: %w", name, err)
	}

	counter, err := b.repo.CompleteBuild(ctx, remote.ID, owner.String(), firmwareIDs)
	if err != nil {
		b.release(ctx, remote, owner)
		logger.ErrorKV(ctx, "Recording build failed", "error", err)

		return nil, fmt.Errorf("complete build %s: %w", name, err)
	}

	logger.Infof(ctx, "Signed metadata %s build %d", remote.Name, counter)

	if err := b.opts.Invalidator.Invalidate(ctx, files); err != nil {
		logger.WarnKV(ctx, "Cache invalidation incomplete", "error", err)
	}

	if err := b.prune(ctx, remote, counter); err != nil {
		logger.WarnKV(ctx, "Pruning old metadata failed", "error", err)
	}

	return &Result{
		Remote:       name,
		Outcome:      Built,
		BuildCounter: counter,
		Files:        files,
	}, nil
}

// ensureOutputDir skips builds without a download directory and creates a missing one.
func (b *Builder) ensureOutputDir() (firmware.SkipReason, error) {
	if b.opts.Store == nil || b.opts.Store.Dir == "" {
		return firmware.SkipNoOutputDir, nil
	}

	if err := b.opts.Store.Ensure(); err != nil {
		return firmware.SkipNone, fmt.Errorf("%w: %w", ErrNoOutputDir, err)
	}

	return firmware.SkipNone, nil
}

// release drops the lease with a context that outlives the task deadline.
func (b *Builder) release(ctx context.Context, remote *firmware.Remote, owner firmware.Owner) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := b.repo.ReleaseClaim(releaseCtx, remote.ID, owner.String()); err != nil {
		logger.ErrorKV(ctx, "Releasing build claim failed", "error", err)
	}
}

// publish generates, signs and writes the metadata of remote. It returns the
// written paths sorted by filename and the ids of the included firmware.
func (b *Builder) publish(ctx context.Context, remote *firmware.Remote) ([]string, []int64, error) {
	fws, err := b.repo.ListFirmware(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list firmware: %w", err)
	}

	included := make([]*firmware.Firmware, 0, len(fws))
	firmwareIDs := make([]int64, 0, len(fws))

	for _, fw := range fws {
		if remote.Includes(fw) {
			included = append(included, fw)
			firmwareIDs = append(firmwareIDs, fw.ID)
		}
	}

	data, err := appstream.GenerateComponents(included, appstream.Options{
		FirmwareBaseURI:   b.opts.FirmwareBaseURI,
		AllowUnrestricted: remote.IsPublic,
		Origin:            b.opts.Origin,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generate catalog: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	dated := remote.Filename()
	latest := remote.FilenameNewest
	now := b.opts.Now()

	container := jcat.New()
	item := container.GetItem(dated)
	item.AddAliasID(latest)
	item.AddBlob(jcat.NewBlobSHA1(data, now))
	item.AddBlob(jcat.NewBlobSHA256(data, now))

	blobs, err := b.opts.Signers.SignAll(ctx, data)
	if err != nil {
		return nil, nil, fmt.Errorf("sign catalog: %w", err)
	}

	for _, blob := range blobs {
		item.AddBlob(blob)
	}

	jcatData, err := container.Save()
	if err != nil {
		return nil, nil, fmt.Errorf("save jcat: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	writes := []pendingFile{
		{dated, data},
		{latest, data},
	}

	for _, blob := range blobs {
		// Older clients only read the detached GPG signature next to the latest file.
		if blob.Kind != jcat.BlobKindGPG || len(blob.Data) == 0 || blob.FilenameExt() == "" {
			continue
		}

		writes = append(writes, pendingFile{latest + "." + blob.FilenameExt(), blob.Data})
	}

	writes = append(writes, pendingFile{latest + ".jcat", jcatData})

	files := make([]string, 0, len(writes))

	for _, w := range writes {
		path, err := b.opts.Store.Write(w.name, w.data)
		if err != nil {
			return nil, nil, err
		}

		logger.DebugKV(ctx, "Wrote metadata file", "path", path, "size", len(w.data))
		files = append(files, path)
	}

	sort.Strings(files)

	return files, firmwareIDs, nil
}
