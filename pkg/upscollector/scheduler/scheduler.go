package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vpbank/ups_collector/pkg/upscollector/coordinator"
	"github.com/vpbank/ups_collector/pkg/upscollector/poller"
)

// ─────────────────────────────────────────────────────────────────────────────
// JobSubmitter — interface for dependency injection
// ─────────────────────────────────────────────────────────────────────────────

// JobSubmitter is the subset of poller.WorkerPool consumed by the scheduler.
type JobSubmitter interface {
	TrySubmit(poller.RefreshJob) bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// armSlack is how far the clock may move while a timer is armed before the
// delay is recomputed.
const armSlack = time.Millisecond

// entry tracks the next-fire time for a single coordinator.
type entry struct {
	device   string
	interval time.Duration
	nextRun  time.Time
	coord    *coordinator.Coordinator
}

// Scheduler submits a RefreshJob for every registered coordinator at the
// coordinator's interval.
//
// A coordinator's first scheduled tick is one interval after it enters the
// schedule: the refresh at registration time is the caller's FirstRefresh.
type Scheduler struct {
	pool   JobSubmitter
	clk    clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry

	wake chan struct{}
	done chan struct{}
}

// New creates a Scheduler for the coordinators in reg. The scheduler does NOT
// start automatically; call Start to begin dispatching. A nil clk uses the
// wall clock.
func New(reg *coordinator.Registry, pool JobSubmitter, clk clock.Clock, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Scheduler{
		pool:   pool,
		clk:    clk,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.entries = s.buildEntries(reg, nil)
	return s
}

// Start runs the scheduling loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	for {
		// With nothing scheduled fire stays nil and only ctx or a Reload
		// wakes the loop.
		var (
			timer *clock.Timer
			fire  <-chan time.Time
		)
		s.mu.Lock()
		if len(s.entries) > 0 {
			sort.Slice(s.entries, func(i, j int) bool {
				return s.entries[i].nextRun.Before(s.entries[j].nextRun)
			})
			armedAt := s.clk.Now()
			delay := s.entries[0].nextRun.Sub(armedAt)
			if delay < 0 {
				delay = 0
			}
			timer = s.clk.Timer(delay)
			fire = timer.C
			// A clock jump while arming leaves the timer late: recompute.
			if s.clk.Since(armedAt) > armSlack {
				timer.Stop()
				s.mu.Unlock()
				continue
			}
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
			continue
		case <-fire:
		}

		now := s.clk.Now()
		s.mu.Lock()
		for i := range s.entries {
			if s.entries[i].nextRun.After(now) {
				break
			}
			s.fireEntry(&s.entries[i])
			s.entries[i].nextRun = now.Add(s.entries[i].interval)
		}
		s.mu.Unlock()
	}
}

// Stop waits for the scheduling loop to exit. The caller must cancel the
// context passed to Start before calling Stop.
func (s *Scheduler) Stop() {
	<-s.done
}

// Reload replaces the schedule with the coordinators now in reg. A
// coordinator that was already scheduled keeps its next-fire time; new ones
// are first fired one interval from now; removed ones stop.
func (s *Scheduler) Reload(reg *coordinator.Registry) {
	s.mu.Lock()
	s.entries = s.buildEntries(reg, s.entries)
	n := len(s.entries)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.logger.Info("scheduler: registry reloaded", "devices", n)
}

// Entries returns the number of active entries (for monitoring / tests).
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// buildEntries creates one entry per coordinator in reg, carrying over the
// next-fire time of coordinators found in prev.
func (s *Scheduler) buildEntries(reg *coordinator.Registry, prev []entry) []entry {
	if reg == nil {
		return nil
	}
	known := make(map[*coordinator.Coordinator]time.Time, len(prev))
	for _, e := range prev {
		known[e.coord] = e.nextRun
	}

	now := s.clk.Now()
	entries := make([]entry, 0, reg.Len())
	reg.Each(func(c *coordinator.Coordinator) {
		next, ok := known[c]
		if !ok {
			next = now.Add(c.Interval())
		}
		entries = append(entries, entry{
			device:   c.Name(),
			interval: c.Interval(),
			nextRun:  next,
			coord:    c,
		})
	})
	return entries
}

// fireEntry dispatches a refresh for one entry using TrySubmit (non-blocking).
func (s *Scheduler) fireEntry(e *entry) {
	if !s.pool.TrySubmit(poller.RefreshJob{Device: e.device, Refresher: e.coord}) {
		s.logger.Warn("scheduler: job queue full, dropping refresh",
			"device", e.device,
		)
		return
	}
	s.logger.Debug("scheduler: fired refresh", "device", e.device)
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter — discard log output when no logger is provided
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
