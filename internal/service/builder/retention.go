package builder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
	"github.com/oshokin/fwmeta/internal/logger"
)

// KeepBuilds is how many dated builds stay in the download directory.
const KeepBuilds = 6

// prune removes dated files more than KeepBuilds behind counter.
func (b *Builder) prune(ctx context.Context, remote *firmware.Remote, counter int) error {
	if remote.AccessToken == "" {
		return nil
	}

	prefix := remote.Prefix() + "-"

	names, err := b.opts.Store.Glob(fmt.Sprintf("%s*-%s.*", escapeGlob(prefix), escapeGlob(remote.AccessToken)))
	if err != nil {
		return err
	}

	var errs []error

	for _, name := range names {
		seq, ok := buildSequence(name, prefix, remote.AccessToken)
		if !ok {
			logger.DebugKV(ctx, "Ignoring unparsable metadata filename", "path", name)

			continue
		}

		if counter-seq <= KeepBuilds {
			continue
		}

		if err := b.opts.Store.Remove(name); err != nil {
			errs = append(errs, err)

			continue
		}

		logger.Infof(ctx, "Deleted metadata %s build %d", remote.Name, seq)
	}

	return errors.Join(errs...)
}

// buildSequence extracts the build number of a dated filename
// "<prefix><seq>-<token>.<ext>". Names carrying another token do not parse.
func buildSequence(name, prefix, token string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, false
	}

	field, suffix, ok := strings.Cut(rest, "-")
	if !ok || !strings.HasPrefix(suffix, token+".") {
		return 0, false
	}

	seq, err := strconv.Atoi(field)
	if err != nil || seq < 0 {
		return 0, false
	}

	return seq, true
}

// escapeGlob quotes the filepath.Match metacharacters of s.
func escapeGlob(s string) string {
	var sb strings.Builder

	for _, r := range s {
		if strings.ContainsRune(`*?[]\`, r) {
			sb.WriteByte('\\')
		}

		sb.WriteRune(r)
	}

	return sb.String()
}
