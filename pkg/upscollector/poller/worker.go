package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// RefreshJob — unit of work
// ─────────────────────────────────────────────────────────────────────────────

// Refresher is one device's refresh entry point. coordinator.Coordinator
// implements it.
type Refresher interface {
	RefreshNow(ctx context.Context) error
}

// RefreshJob asks the worker pool to refresh one device.
type RefreshJob struct {
	Device    string
	Refresher Refresher
}

// ErrSkipped may be returned by a Refresher when the job was not run, for
// example because a previous refresh is still in flight. It is logged at
// debug level only.
var ErrSkipped = errors.New("poller: refresh skipped")

// ─────────────────────────────────────────────────────────────────────────────
// WorkerPool — fan-out dispatcher for RefreshJobs
// ─────────────────────────────────────────────────────────────────────────────

// WorkerPool fans refresh jobs out to N worker goroutines.
type WorkerPool struct {
	numWorkers int
	logger     *slog.Logger

	jobs chan RefreshJob
	wg   sync.WaitGroup
	once sync.Once
}

// NewWorkerPool creates a pool of numWorkers goroutines.
func NewWorkerPool(numWorkers int, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 16
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		logger:     logger,
		jobs:       make(chan RefreshJob, numWorkers*2),
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled or
// Stop is called.
func (w *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}
}

// Submit enqueues a job. It blocks if the internal job channel is full.
func (w *WorkerPool) Submit(job RefreshJob) {
	w.jobs <- job
}

// TrySubmit enqueues a job without blocking. Returns false if the channel is
// full, allowing the caller to drop or defer the job.
func (w *WorkerPool) TrySubmit(job RefreshJob) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the job channel and waits for all workers to drain.
func (w *WorkerPool) Stop() {
	w.once.Do(func() { close(w.jobs) })
	w.wg.Wait()
}

func (w *WorkerPool) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			err := job.Refresher.RefreshNow(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrSkipped):
				w.logger.Debug("refresh skipped", "device", job.Device, "reason", err.Error())
			case errors.Is(err, context.Canceled):
				return
			default:
				w.logger.Warn("refresh failed", "device", job.Device, "error", err.Error())
			}
		case <-ctx.Done():
			return
		}
	}
}
