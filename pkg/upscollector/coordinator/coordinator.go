// Package coordinator owns the per-device polling cycle: it fetches the scalar
// catalog and the per-phase tables through a Fetcher, overlay-merges the
// results into the device snapshot and hands a copy to every Sink.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vpbank/ups_collector/models"
	"github.com/vpbank/ups_collector/pkg/upscollector/poller"
)

// DefaultInterval is the refresh interval used when none is configured.
const DefaultInterval = 60 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// Fetcher is the SNMP side of a refresh. *poller.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, oids []string) (models.Snapshot, error)
	GetBulk(ctx context.Context, columns []string, rows, start int) ([]models.Snapshot, error)
}

// Sink receives the outcome of every refresh. Publish gets a private copy of
// the merged snapshot; ReportFailure gets the *UpdateFailedError.
type Sink interface {
	Publish(device string, snap models.Snapshot)
	ReportFailure(device string, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

// ErrRefreshInProgress is returned when a refresh is requested while the
// previous one for the same device has not finished. It wraps
// poller.ErrSkipped so the worker pool logs it at debug level.
var ErrRefreshInProgress = fmt.Errorf("coordinator: refresh in progress: %w", poller.ErrSkipped)

// UpdateFailedError reports a refresh that could not complete. The device
// snapshot is left as it was before the refresh.
type UpdateFailedError struct {
	Device string
	Err    error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("coordinator: %s: update failed: %v", e.Device, e.Err)
}

func (e *UpdateFailedError) Unwrap() error { return e.Err }

// ─────────────────────────────────────────────────────────────────────────────
// State
// ─────────────────────────────────────────────────────────────────────────────

// State is the refresh state of a coordinator.
type State int32

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Coordinator
// ─────────────────────────────────────────────────────────────────────────────

// Options configures a Coordinator.
type Options struct {
	// Interval between scheduled refreshes. Defaults to DefaultInterval.
	Interval time.Duration
	// Sinks are notified after every refresh, in order.
	Sinks []Sink
	// Clock stamps LastUpdate. Defaults to the wall clock.
	Clock clock.Clock
}

// Coordinator keeps the merged snapshot of one UPS up to date.
type Coordinator struct {
	name     string
	fetcher  Fetcher
	interval time.Duration
	sinks    []Sink
	clock    clock.Clock
	logger   *slog.Logger

	// refreshing is held for the whole duration of a refresh.
	refreshing sync.Mutex
	state      atomic.Int32

	mu         sync.RWMutex
	data       models.Snapshot
	lastUpdate time.Time
	lastErr    error
}

// New creates a coordinator for the device called name.
func New(name string, fetcher Fetcher, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Coordinator{
		name:     name,
		fetcher:  fetcher,
		interval: opts.Interval,
		sinks:    append([]Sink(nil), opts.Sinks...),
		clock:    opts.Clock,
		logger:   logger.With("device", name),
	}
}

// Name returns the device name.
func (c *Coordinator) Name() string { return c.name }

// Interval returns the configured refresh interval.
func (c *Coordinator) Interval() time.Duration { return c.interval }

// State reports whether a refresh is currently running.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Snapshot returns a copy of the current merged snapshot, or nil before the
// first successful refresh.
func (c *Coordinator) Snapshot() models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone()
}

// LastUpdate returns the completion time of the last successful refresh.
func (c *Coordinator) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// LastError returns the error of the last refresh, nil if it succeeded.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Refresh runs one polling cycle:
//
//  1. Get the scalar catalog and merge it onto the current snapshot.
//  2. For the input and output tables, read the phase count from the merged
//     snapshot and, when positive, GetBulk that many rows and merge each.
//  3. Commit the result and publish a copy to every sink.
//
// Any fetch error aborts the cycle with *UpdateFailedError; the snapshot is
// then unchanged and sinks receive ReportFailure instead of Publish.
func (c *Coordinator) Refresh(ctx context.Context) (models.Snapshot, error) {
	if !c.refreshing.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer c.refreshing.Unlock()
	return c.refresh(ctx)
}

// RefreshNow runs Refresh and discards the snapshot. It satisfies
// poller.Refresher.
func (c *Coordinator) RefreshNow(ctx context.Context) error {
	_, err := c.Refresh(ctx)
	return err
}

// FirstRefresh is the forced refresh performed when the device is added. It
// waits for a concurrent refresh to finish instead of skipping.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	c.refreshing.Lock()
	defer c.refreshing.Unlock()
	if _, err := c.refresh(ctx); err != nil {
		return err
	}
	c.logger.Info("coordinator: first refresh complete")
	return nil
}

// refresh must be called with c.refreshing held.
func (c *Coordinator) refresh(ctx context.Context) (models.Snapshot, error) {
	c.state.Store(int32(StateRefreshing))
	defer c.state.Store(int32(StateIdle))

	start := c.clock.Now()
	snap, err := c.update(ctx)
	if err != nil {
		ferr := &UpdateFailedError{Device: c.name, Err: err}
		c.mu.Lock()
		c.lastErr = ferr
		c.mu.Unlock()

		c.logger.Warn("coordinator: refresh failed", "error", err.Error())
		for _, s := range c.sinks {
			s.ReportFailure(c.name, ferr)
		}
		return nil, ferr
	}

	now := c.clock.Now()
	c.mu.Lock()
	c.data = snap
	c.lastUpdate = now
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Debug("coordinator: refresh complete",
		"values", len(snap),
		"duration", now.Sub(start).String(),
	)
	for _, s := range c.sinks {
		s.Publish(c.name, snap.Clone())
	}
	return snap.Clone(), nil
}

// update builds the next snapshot on a working copy of the current one.
func (c *Coordinator) update(ctx context.Context) (models.Snapshot, error) {
	working := c.Snapshot()

	scalars, err := c.fetcher.Get(ctx, models.ScalarCatalog())
	if err != nil {
		return nil, fmt.Errorf("scalars: %w", err)
	}
	working = working.Merge(scalars)

	for _, table := range models.PhaseTables() {
		count, ok := working.Int(table.CountOID)
		if !ok || count <= 0 {
			continue
		}
		if count > models.UnusualPhaseCount {
			c.logger.Warn("coordinator: unusually high phase count",
				"table", table.Name,
				"count", count,
			)
		}
		rows, err := c.fetcher.GetBulk(ctx, table.ColumnOIDs(), int(count), 1)
		if err != nil {
			return nil, fmt.Errorf("%s table: %w", table.Name, err)
		}
		for _, row := range rows {
			working = working.Merge(row)
		}
	}
	return working, nil
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
