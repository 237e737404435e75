// Package jobs runs frame extractions in the background on a fixed pool of
// workers fed by a bounded queue.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"thirdcoast.systems/framegrab/pkg/frames"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("extraction queue is full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatcher is closed")
)

// Runner executes a single extraction. *frames.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, input, outputDir string, profile frames.Profile) (*frames.Result, error)
}

// Job is one queued extraction.
type Job struct {
	ID        uuid.UUID
	InputPath string
	OutputDir string
	Profile   frames.Profile
	Submitted time.Time
}

// Outcome is reported to the OnDone hook after each job.
type Outcome struct {
	Job    Job
	Result *frames.Result
	Err    error
}

type Options struct {
	Workers int
	Queue   int
	// Timeout bounds each job. Zero disables the deadline.
	Timeout time.Duration
	Logger  *slog.Logger
	// OnDone, if set, is called from the worker goroutine after every job.
	OnDone func(Outcome)
}

type Dispatcher struct {
	runner  Runner
	opts    Options
	logger  *slog.Logger
	queue   chan Job
	group   *errgroup.Group
	cancel  context.CancelFunc
	mu      sync.RWMutex
	closed  bool
	closeMu sync.Once
}

// NewDispatcher starts opts.Workers workers that live until ctx is cancelled
// or Close is called.
func NewDispatcher(ctx context.Context, runner Runner, opts Options) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Queue < 1 {
		opts.Queue = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	d := &Dispatcher{
		runner: runner,
		opts:   opts,
		logger: logger,
		queue:  make(chan Job, opts.Queue),
		group:  group,
		cancel: cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		workerID := i + 1
		group.Go(func() error {
			d.worker(ctx, workerID)
			return nil
		})
	}
	logger.Info("extraction dispatcher started", "workers", opts.Workers, "queue", opts.Queue, "timeout", opts.Timeout)
	return d
}

// Submit enqueues an extraction without blocking.
func (d *Dispatcher) Submit(input, outputDir string, profile frames.Profile) (Job, error) {
	job := Job{
		ID:        uuid.New(),
		InputPath: input,
		OutputDir: outputDir,
		Profile:   profile,
		Submitted: time.Now(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return Job{}, ErrClosed
	}
	select {
	case d.queue <- job:
		d.logger.Info("extraction queued", "job_id", job.ID, "input", input, "queued", len(d.queue))
		return job, nil
	default:
		return Job{}, ErrQueueFull
	}
}

// Pending reports how many jobs are waiting for a worker.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting jobs, lets workers finish what is already queued and
// waits for them. Cancel the parent context to abort in-flight work instead.
func (d *Dispatcher) Close() error {
	d.closeMu.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	err := d.group.Wait()
	d.cancel()
	return err
}

func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-d.queue:
			if !ok {
				return
			}
			d.process(ctx, workerID, job)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, workerID int, job Job) {
	logger := d.logger.With("job_id", job.ID, "worker", workerID)
	logger.Info("processing extraction", "input", job.InputPath, "output_dir", job.OutputDir,
		"waited", time.Since(job.Submitted).Round(time.Millisecond))

	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.opts.Timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
	}
	defer cancel()

	res, err := d.runner.Run(jobCtx, job.InputPath, job.OutputDir, job.Profile)
	if err != nil {
		logger.Error("extraction failed", "error", err)
	} else {
		logger.Info("extraction finished", "frames", res.Count(), "elapsed", res.Elapsed.Round(time.Millisecond))
	}

	if d.opts.OnDone != nil {
		d.opts.OnDone(Outcome{Job: job, Result: res, Err: err})
	}
}
