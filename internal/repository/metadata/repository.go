package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
	"github.com/oshokin/fwmeta/internal/logger"
)

// Repository defines persistence operations of the metadata pipeline.
type Repository interface {
	// ClaimRemote checks the build guards of a remote and takes its lease.
	// A non-empty SkipReason means nothing was claimed.
	ClaimRemote(ctx context.Context, name string, owner firmware.Owner, ttl time.Duration) (*firmware.Remote, firmware.SkipReason, error)
	// ReleaseClaim drops the lease if owner still holds it.
	ReleaseClaim(ctx context.Context, remoteID int64, owner string) error
	// CompleteBuild records a successful build and returns the new build counter.
	CompleteBuild(ctx context.Context, remoteID int64, owner string, firmwareIDs []int64) (int, error)
	// ListFirmware returns signed firmware outside the private and deleted remotes.
	ListFirmware(ctx context.Context) ([]*firmware.Firmware, error)
	ListRemotes(ctx context.Context) ([]*firmware.Remote, error)
	GetRemote(ctx context.Context, name string) (*firmware.Remote, error)
	UpsertRemote(ctx context.Context, remote *firmware.Remote) (int64, error)
	UpsertVendor(ctx context.Context, vendor *firmware.Vendor) (int64, error)
	// SaveFirmware stores fw with its components and marks it and its remote dirty.
	SaveFirmware(ctx context.Context, fw *firmware.Firmware) (int64, error)
}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrClaimLost is returned when a build completes without holding the lease.
	ErrClaimLost = errors.New("build claim lost")
)

// Options configures the SQLite repository.
type Options struct {
	// Path is the database file.
	Path string
	// PoolSize is the number of connections; zero picks a default.
	PoolSize int
	// Hostname identifies this machine in lease owners.
	Hostname string
	// ProcessAlive reports whether a local process still runs; nil disables the check.
	ProcessAlive func(pid int) bool
	// Now returns the current time; nil uses time.Now.
	Now func() time.Time
}

// SQLiteRepository implements Repository on a SQLite database.
type SQLiteRepository struct {
	pool         *pool
	hostname     string
	processAlive func(pid int) bool
	now          func() time.Time
}

// Open opens or creates the database and applies the schema.
func Open(opts Options) (*SQLiteRepository, error) {
	p, err := openPool(opts.Path, opts.PoolSize)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &SQLiteRepository{
		pool:         p,
		hostname:     opts.Hostname,
		processAlive: opts.ProcessAlive,
		now:          now,
	}, nil
}

// Close closes every connection.
func (r *SQLiteRepository) Close() error {
	return r.pool.close()
}

const remoteColumns = `remote_id, name, is_public, is_signed, is_dirty, build_cnt,
	access_token, filename_prefix, filename_newest, claim_owner, claimed_at, claim_expires_at`

func scanRemote(stmt *sqlite.Stmt) *firmware.Remote {
	remote := &firmware.Remote{
		ID:             stmt.ColumnInt64(0),
		Name:           stmt.ColumnText(1),
		IsPublic:       stmt.ColumnInt64(2) != 0,
		IsSigned:       stmt.ColumnInt64(3) != 0,
		IsDirty:        stmt.ColumnInt64(4) != 0,
		BuildCounter:   stmt.ColumnInt(5),
		AccessToken:    stmt.ColumnText(6),
		FilenamePrefix: stmt.ColumnText(7),
		FilenameNewest: stmt.ColumnText(8),
	}

	if !stmt.ColumnIsNull(9) {
		remote.Claim = &firmware.Claim{
			Owner:     stmt.ColumnText(9),
			ClaimedAt: time.Unix(0, stmt.ColumnInt64(10)).UTC(),
			ExpiresAt: time.Unix(0, stmt.ColumnInt64(11)).UTC(),
		}
	}

	return remote
}

func getRemote(conn *sqlite.Conn, name string) (*firmware.Remote, error) {
	var remote *firmware.Remote

	err := sqlitex.Execute(conn, `SELECT `+remoteColumns+` FROM remotes WHERE name = ?`, &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			remote = scanRemote(stmt)

			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select remote %s: %w", name, err)
	}

	if remote == nil {
		return nil, fmt.Errorf("remote %s: %w", name, ErrNotFound)
	}

	return remote, nil
}

// GetRemote returns the remote called name.
func (r *SQLiteRepository) GetRemote(ctx context.Context, name string) (*firmware.Remote, error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer r.pool.put(conn)

	return getRemote(conn, name)
}

// ListRemotes returns every remote ordered by name.
func (r *SQLiteRepository) ListRemotes(ctx context.Context) ([]*firmware.Remote, error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer r.pool.put(conn)

	var remotes []*firmware.Remote

	err = sqlitex.Execute(conn, `SELECT `+remoteColumns+` FROM remotes ORDER BY name`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			remotes = append(remotes, scanRemote(stmt))

			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}

	return remotes, nil
}

// UpsertRemote creates the remote or updates its configuration fields.
// Dirty state, build counter and lease are left untouched on update.
func (r *SQLiteRepository) UpsertRemote(ctx context.Context, remote *firmware.Remote) (int64, error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer r.pool.put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO remotes
		(name, is_public, is_signed, is_dirty, build_cnt, access_token, filename_prefix, filename_newest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			is_public = excluded.is_public,
			is_signed = excluded.is_signed,
			access_token = excluded.access_token,
			filename_prefix = excluded.filename_prefix,
			filename_newest = excluded.filename_newest`, &sqlitex.ExecOptions{
		Args: []any{
			remote.Name,
			boolInt(remote.IsPublic),
			boolInt(remote.IsSigned),
			boolInt(remote.IsDirty),
			remote.BuildCounter,
			remote.AccessToken,
			remote.FilenamePrefix,
			remote.FilenameNewest,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("upsert remote %s: %w", remote.Name, err)
	}

	stored, err := getRemote(conn, remote.Name)
	if err != nil {
		return 0, err
	}

	return stored.ID, nil
}

// ClaimRemote runs the build guards and takes the lease in one IMMEDIATE transaction.
func (r *SQLiteRepository) ClaimRemote(
	ctx context.Context,
	name string,
	owner firmware.Owner,
	ttl time.Duration,
) (remote *firmware.Remote, reason firmware.SkipReason, err error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return nil, firmware.SkipNone, err
	}
	defer r.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, firmware.SkipNone, fmt.Errorf("begin claim: %w", err)
	}
	defer endTransaction(&err)

	remote, err = getRemote(conn, name)
	if errors.Is(err, ErrNotFound) {
		return nil, firmware.SkipNotFound, nil
	}

	if err != nil {
		return nil, firmware.SkipNone, err
	}

	now := r.now()

	if remote.Claim != nil {
		if !remote.Claim.IsStale(now, r.hostname, r.processAlive) {
			return remote, firmware.SkipClaimed, nil
		}

		logger.WarnKV(ctx, "Taking over stale build claim",
			"remote", remote.Name,
			"owner", remote.Claim.Owner,
			"expires_at", remote.Claim.ExpiresAt,
		)
	}

	if !remote.IsSigned {
		return remote, firmware.SkipNotSigned, nil
	}

	if !remote.IsDirty {
		if err = r.healRemote(ctx, conn, remote); err != nil {
			return nil, firmware.SkipNone, err
		}
	}

	if !remote.IsDirty {
		return remote, firmware.SkipNotDirty, nil
	}

	if remote.Filename() == "" || remote.FilenameNewest == "" {
		return remote, firmware.SkipNoFilename, nil
	}

	remote.Claim = firmware.NewClaim(owner, now, ttl)

	err = sqlitex.Execute(conn, `UPDATE remotes
		SET claim_owner = ?, claimed_at = ?, claim_expires_at = ?
		WHERE remote_id = ?`, &sqlitex.ExecOptions{
		Args: []any{
			remote.Claim.Owner,
			remote.Claim.ClaimedAt.UnixNano(),
			remote.Claim.ExpiresAt.UnixNano(),
			remote.ID,
		},
	})
	if err != nil {
		return nil, firmware.SkipNone, fmt.Errorf("set claim on %s: %w", name, err)
	}

	return remote, firmware.SkipNone, nil
}

// healRemote promotes a clean remote holding dirty firmware to dirty and
// clears the firmware flags, which the next build will cover.
func (r *SQLiteRepository) healRemote(ctx context.Context, conn *sqlite.Conn, remote *firmware.Remote) error {
	var dirtyIDs []int64

	err := sqlitex.Execute(conn, `SELECT firmware_id FROM firmware
		WHERE remote_id = ? AND is_dirty != 0 ORDER BY firmware_id`, &sqlitex.ExecOptions{
		Args: []any{remote.ID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			dirtyIDs = append(dirtyIDs, stmt.ColumnInt64(0))

			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("select dirty firmware: %w", err)
	}

	if len(dirtyIDs) == 0 {
		return nil
	}

	logger.WarnKV(ctx, "Marking remote as dirty due to firmware", "remote", remote.Name, "firmware", dirtyIDs)

	err = sqlitex.Execute(conn, `UPDATE remotes SET is_dirty = 1 WHERE remote_id = ?`, &sqlitex.ExecOptions{
		Args: []any{remote.ID},
	})
	if err != nil {
		return fmt.Errorf("mark remote dirty: %w", err)
	}

	err = sqlitex.Execute(conn, `UPDATE firmware SET is_dirty = 0 WHERE remote_id = ? AND is_dirty != 0`, &sqlitex.ExecOptions{
		Args: []any{remote.ID},
	})
	if err != nil {
		return fmt.Errorf("clear firmware dirty: %w", err)
	}

	remote.IsDirty = true

	return nil
}

// ReleaseClaim clears the lease held by owner. A lease taken over by another owner is kept.
func (r *SQLiteRepository) ReleaseClaim(ctx context.Context, remoteID int64, owner string) error {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return err
	}
	defer r.pool.put(conn)

	err = sqlitex.Execute(conn, `UPDATE remotes
		SET claim_owner = NULL, claimed_at = NULL, claim_expires_at = NULL
		WHERE remote_id = ? AND claim_owner = ?`, &sqlitex.ExecOptions{
		Args: []any{remoteID, owner},
	})
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}

	return nil
}

// CompleteBuild increments the counter, clears the remote and included firmware
// dirty flags and drops the lease, all in one transaction.
func (r *SQLiteRepository) CompleteBuild(
	ctx context.Context,
	remoteID int64,
	owner string,
	firmwareIDs []int64,
) (counter int, err error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer r.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin complete: %w", err)
	}
	defer endTransaction(&err)

	held := false

	err = sqlitex.Execute(conn, `SELECT build_cnt FROM remotes WHERE remote_id = ? AND claim_owner = ?`, &sqlitex.ExecOptions{
		Args: []any{remoteID, owner},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			held = true
			counter = stmt.ColumnInt(0)

			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("check claim: %w", err)
	}

	if !held {
		return 0, fmt.Errorf("remote %d: %w", remoteID, ErrClaimLost)
	}

	counter++

	err = sqlitex.Execute(conn, `UPDATE remotes
		SET build_cnt = ?, is_dirty = 0, claim_owner = NULL, claimed_at = NULL, claim_expires_at = NULL
		WHERE remote_id = ?`, &sqlitex.ExecOptions{
		Args: []any{counter, remoteID},
	})
	if err != nil {
		return 0, fmt.Errorf("update remote: %w", err)
	}

	for _, id := range firmwareIDs {
		err = sqlitex.Execute(conn, `UPDATE firmware SET is_dirty = 0 WHERE firmware_id = ?`, &sqlitex.ExecOptions{
			Args: []any{id},
		})
		if err != nil {
			return 0, fmt.Errorf("clear firmware %d: %w", id, err)
		}
	}

	return counter, nil
}
