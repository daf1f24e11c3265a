package tasks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/service/builder"
)

// AllRemotes is the queue entry that rebuilds every remote.
const AllRemotes = "*"

// Builder is the part of builder.Builder the queue drives.
type Builder interface {
	RegenerateRemote(ctx context.Context, name string) (*builder.Result, error)
	RegenerateAll(ctx context.Context) ([]*builder.Result, error)
}

// QueueOptions configures a Queue.
type QueueOptions struct {
	// Workers is the number of concurrent builds, at least one.
	Workers int
	// RemotePolicy applies to single remote builds.
	RemotePolicy Policy
	// AllPolicy applies to AllRemotes entries.
	AllPolicy Policy
}

// Queue serializes build requests per remote name.
type Queue struct {
	builds Builder
	opts   QueueOptions

	mu      sync.Mutex
	pending []string
	running map[string]struct{}
	wake    chan struct{}
}

// NewQueue creates a queue. Zero policies fall back to the package defaults.
func NewQueue(builds Builder, opts QueueOptions) *Queue {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if opts.RemotePolicy == (Policy{}) {
		opts.RemotePolicy = RegenerateRemotePolicy
	}

	if opts.AllPolicy == (Policy{}) {
		opts.AllPolicy = RegenerateAllPolicy
	}

	return &Queue{
		builds:  builds,
		opts:    opts,
		running: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue schedules a build of name, or of every remote for AllRemotes.
// It returns false when name is already waiting.
func (q *Queue) Enqueue(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if slices.Contains(q.pending, name) {
		return false
	}

	q.pending = append(q.pending, name)
	q.signal()

	return true
}

// Pending returns the waiting names in queue order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.pending)
}

// Run starts the workers and blocks until ctx is cancelled and they return.
func (q *Queue) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "fwmeta-tasks")

	var wg sync.WaitGroup

	for range q.opts.Workers {
		wg.Go(func() { q.work(ctx) })
	}

	wg.Wait()
}

func (q *Queue) work(ctx context.Context) {
	for {
		name, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		q.execute(ctx, name)
		q.finish(name)

		if ctx.Err() != nil {
			return
		}
	}
}

// next pops the first waiting name that is not being built.
func (q *Queue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, name := range q.pending {
		if _, busy := q.running[name]; busy {
			continue
		}

		q.pending = slices.Delete(q.pending, i, i+1)
		q.running[name] = struct{}{}

		if len(q.pending) > 0 {
			q.signal()
		}

		return name, true
	}

	return "", false
}

func (q *Queue) finish(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.running, name)

	if len(q.pending) > 0 {
		q.signal()
	}
}

// signal wakes one idle worker. Callers hold mu.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) execute(ctx context.Context, name string) {
	started := time.Now()

	var err error

	if name == AllRemotes {
		err = Run(ctx, "regenerate-all", q.opts.AllPolicy, func(ctx context.Context) error {
			results, err := q.builds.RegenerateAll(ctx)
			for _, result := range results {
				logResult(ctx, result)
			}

			return err
		})
	} else {
		err = Run(ctx, "regenerate-remote", q.opts.RemotePolicy, func(ctx context.Context) error {
			result, err := q.builds.RegenerateRemote(ctx, name)
			if err != nil {
				return err
			}

			logResult(ctx, result)

			return nil
		})
	}

	if err != nil {
		logger.ErrorKV(ctx, "Build task failed", "remote", name, "error", err)

		return
	}

	logger.DebugKV(ctx, "Build task finished", "remote", name, "elapsed", time.Since(started))
}

func logResult(ctx context.Context, result *builder.Result) {
	if result.Outcome == builder.Built {
		logger.InfoKV(ctx, "Remote rebuilt", "remote", result.Remote, "build", result.BuildCounter)

		return
	}

	logger.DebugKV(ctx, "Remote skipped", "remote", result.Remote, "reason", result.SkipReason)
}
