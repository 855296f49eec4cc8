// Package app wires the UPS collector stages together and manages their
// lifecycle.
//
// Refresh path:
//
//	Scheduler → WorkerPool → Coordinator (per device) → [eventCh] →
//	Producer → [telemetryCh] → Formatter ─┐
//	         → [alertCh]     → Formatter ─┴→ [formattedCh] → Transport
//
// Coordinators report every refresh through a Sink that feeds eventCh, so
// scheduled refreshes and the first refresh of a newly added device take the
// same path. Both formatters converge on formattedCh so that a single
// transport goroutine writes all output.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	jsonformat "github.com/vpbank/ups_collector/format/json"
	"github.com/vpbank/ups_collector/models"
	"github.com/vpbank/ups_collector/pkg/upscollector/config"
	"github.com/vpbank/ups_collector/pkg/upscollector/coordinator"
	"github.com/vpbank/ups_collector/pkg/upscollector/poller"
	"github.com/vpbank/ups_collector/pkg/upscollector/scheduler"
	"github.com/vpbank/ups_collector/producer/entities"
	filetransport "github.com/vpbank/ups_collector/transport/file"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for the collector application.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// ConfigPaths are the directories for YAML configuration files.
	// Use config.PathsFromEnv() to populate from environment variables.
	ConfigPaths config.Paths

	// CollectorID identifies this collector instance in output metadata.
	// Defaults to the hostname.
	CollectorID string

	// PollerWorkers is the number of concurrent refresh goroutines.
	// Default: 16.
	PollerWorkers int

	// BufferSize is the capacity of each inter-stage channel.
	// Default: 1024.
	BufferSize int

	// PoolOptions configures the SNMP session pool.
	PoolOptions poller.PoolOptions

	// PrettyPrint enables indented JSON output.
	PrettyPrint bool

	// Transport receives every formatted record. When nil, a WriterTransport
	// on TransportWriter is used.
	Transport filetransport.Transport

	// TransportWriter is the destination when Transport is nil.
	// nil = os.Stdout.
	TransportWriter io.Writer

	// Clock drives coordinators and record timestamps. Defaults to the wall
	// clock.
	Clock clock.Clock
}

func (c *Config) withDefaults() {
	if c.CollectorID == "" {
		name, _ := os.Hostname()
		if name == "" {
			name = "upscollector"
		}
		c.CollectorID = name
	}
	if c.PollerWorkers <= 0 {
		c.PollerWorkers = 16
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Refresh events
// ─────────────────────────────────────────────────────────────────────────────

// refreshEvent is the outcome of one coordinator refresh. err is nil on
// success.
type refreshEvent struct {
	sink *eventSink
	snap models.Snapshot
	err  error
}

// eventSink adapts a coordinator to eventCh. One sink serves one device and
// carries its configured identity. Once retired, events from the sink are
// dropped, including those already queued.
type eventSink struct {
	device models.Device
	events chan<- refreshEvent

	mu      sync.Mutex
	retired bool
}

func (s *eventSink) Publish(_ string, snap models.Snapshot) {
	if s.isRetired() {
		return
	}
	s.events <- refreshEvent{sink: s, snap: snap}
}

// ReportFailure forwards refresh failures. Failures caused by shutdown are
// not reported, so stopping the collector does not mark devices unavailable.
func (s *eventSink) ReportFailure(_ string, err error) {
	if errors.Is(err, context.Canceled) || s.isRetired() {
		return
	}
	s.events <- refreshEvent{sink: s, err: err}
}

func (s *eventSink) isRetired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}

// retire stops the sink. It returns after any produce step holding the sink
// has finished.
func (s *eventSink) retire() {
	s.mu.Lock()
	s.retired = true
	s.mu.Unlock()
}

// produce runs fn unless the sink has been retired.
func (s *eventSink) produce(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return false
	}
	fn()
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the full UPS collector pipeline. Create one with New,
// start it with Start, and stop it with Stop (or cancel the context).
type App struct {
	cfg    Config
	logger *slog.Logger

	// mu guards the device set against concurrent Reload and Stop.
	mu      sync.Mutex
	devices map[string]config.DeviceConfig
	sinks   map[string]*eventSink
	stopped bool

	// Pipeline components.
	connPool   *poller.ConnectionPool
	registry   *coordinator.Registry
	workerPool *poller.WorkerPool
	sched      *scheduler.Scheduler
	prod       *entities.EntityProducer
	formatter  *jsonformat.JSONFormatter
	transport  filetransport.Transport

	// Inter-stage channels.
	eventCh     chan refreshEvent
	telemetryCh chan models.UPSTelemetry
	alertCh     chan models.UPSAlert
	formattedCh chan []byte

	// Lifecycle.
	pipeCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup // tracks pipeline goroutines
	formatWg  sync.WaitGroup // tracks formatters feeding formattedCh
	refreshWg sync.WaitGroup // tracks first refreshes feeding eventCh
}

// New constructs an App. It does not start anything; call Start for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{
		cfg:     cfg,
		logger:  logger,
		devices: make(map[string]config.DeviceConfig),
		sinks:   make(map[string]*eventSink),
	}
}

// Start loads configuration, builds one coordinator per device, launches the
// goroutines that connect the stages and issues the first refresh of every
// device. First refreshes run in the background; a device that cannot be
// reached yet is reported unavailable and retried on schedule.
//
// The caller must eventually call Stop to release resources.
func (a *App) Start(ctx context.Context) error {
	// ── 1. Load configuration ───────────────────────────────────────────
	a.logger.Info("app: loading configuration")
	loaded, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.logger.Info("app: configuration loaded", "devices", len(loaded.Devices))

	// ── 2. Create inter-stage channels ──────────────────────────────────
	a.eventCh = make(chan refreshEvent, a.cfg.BufferSize)
	a.telemetryCh = make(chan models.UPSTelemetry, a.cfg.BufferSize)
	a.alertCh = make(chan models.UPSAlert, a.cfg.BufferSize)
	a.formattedCh = make(chan []byte, a.cfg.BufferSize)

	// ── 3. Build pipeline components (reverse order: transport → pool) ──
	a.transport = a.cfg.Transport
	if a.transport == nil {
		a.transport = filetransport.New(filetransport.Config{
			Writer: a.cfg.TransportWriter,
		}, a.logger)
	}
	a.formatter = jsonformat.New(jsonformat.Config{
		PrettyPrint: a.cfg.PrettyPrint,
	}, a.logger)
	a.prod = entities.New(entities.Config{
		CollectorID: a.cfg.CollectorID,
		Clock:       a.cfg.Clock,
	}, a.logger)

	a.connPool = poller.NewConnectionPool(a.cfg.PoolOptions, a.logger)
	a.registry = coordinator.NewRegistry()
	a.workerPool = poller.NewWorkerPool(a.cfg.PollerWorkers, a.logger)

	var added []*coordinator.Coordinator
	for _, name := range loaded.Names() {
		c, err := a.addDevice(loaded.Devices[name])
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		added = append(added, c)
	}
	a.sched = scheduler.New(a.registry, a.workerPool, a.cfg.Clock, a.logger)

	// ── 4. Create a cancellable context for all goroutines ──────────────
	a.pipeCtx, a.cancel = context.WithCancel(ctx)

	// ── 5. Pre-count formatter goroutines BEFORE starting the transport ──
	// formatWg gates the close of formattedCh; both Add calls must happen
	// before the transport stage starts waiting on it.
	a.formatWg.Add(2)

	// ── 6. Start pipeline goroutines (transport first, sources last) ─────
	a.startTransportStage()
	a.startFormatStage()
	a.startAlertFormatStage()
	a.startProduceStage()

	// ── 7. Start the refresh path ───────────────────────────────────────
	a.workerPool.Start(a.pipeCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sched.Start(a.pipeCtx)
	}()
	a.logger.Info("app: scheduler started", "entries", a.sched.Entries())

	a.firstRefresh(added)

	a.logger.Info("app: pipeline running",
		"devices", a.registry.Len(),
		"poller_workers", a.cfg.PollerWorkers,
		"buffer_size", a.cfg.BufferSize,
	)
	return nil
}

// Stop performs a graceful shutdown.
//
// Shutdown order:
//  1. Cancel the pipeline context (in-flight refreshes abort).
//  2. Wait for the scheduler goroutine to exit.
//  3. Drain the worker pool and the first refreshes, the only writers of
//     eventCh.
//  4. Close eventCh → producer drains → closes telemetryCh and alertCh →
//     formatters drain → formattedCh closes → transport drains.
//  5. Close transport and connection pool.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.workerPool != nil {
		a.workerPool.Stop()
	}
	a.refreshWg.Wait()

	if a.eventCh != nil {
		close(a.eventCh)
	}
	a.wg.Wait()

	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			a.logger.Error("app: transport close error", "error", err.Error())
		}
	}
	if a.connPool != nil {
		if err := a.connPool.Close(); err != nil {
			a.logger.Error("app: connection pool close error", "error", err.Error())
		}
	}

	a.logger.Info("app: shutdown complete")
}

// Reload re-reads the configuration and reconciles the device set:
//
//   - unchanged devices keep their coordinator, snapshot and schedule;
//   - removed devices are unregistered and their sessions and alert state
//     dropped;
//   - new or changed devices get a fresh coordinator and an immediate first
//     refresh.
//
// The running configuration is left untouched if the new one fails to load.
func (a *App) Reload() error {
	a.logger.Info("app: reloading configuration")
	loaded, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		return fmt.Errorf("app: reload config: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || a.registry == nil {
		return fmt.Errorf("app: reload: not running")
	}

	var removed, changed int
	for name, old := range a.devices {
		next, ok := loaded.Devices[name]
		switch {
		case !ok:
			removed++
		case next != old:
			changed++
		default:
			continue
		}
		a.removeDevice(name)
	}

	var (
		added []*coordinator.Coordinator
		errs  *multierror.Error
	)
	for _, name := range loaded.Names() {
		if _, ok := a.devices[name]; ok {
			continue
		}
		c, err := a.addDevice(loaded.Devices[name])
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		added = append(added, c)
	}

	a.sched.Reload(a.registry)
	a.firstRefresh(added)

	a.logger.Info("app: configuration reloaded",
		"devices", a.registry.Len(),
		"added", len(added)-changed,
		"changed", changed,
		"removed", removed,
	)
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("app: reload: %w", err)
	}
	return nil
}

// Registry exposes the running coordinators.
func (a *App) Registry() *coordinator.Registry { return a.registry }

// ─────────────────────────────────────────────────────────────────────────────
// Device management
// ─────────────────────────────────────────────────────────────────────────────

// addDevice builds and registers the coordinator for cfg.
func (a *App) addDevice(cfg config.DeviceConfig) (*coordinator.Coordinator, error) {
	client := poller.NewClient(cfg, a.connPool, a.logger)
	sink := &eventSink{
		device: models.Device{
			Name:        cfg.Name,
			Host:        cfg.Host,
			SNMPVersion: cfg.Version,
		},
		events: a.eventCh,
	}
	c := coordinator.New(cfg.Name, client, coordinator.Options{
		Interval: time.Duration(cfg.PollInterval) * time.Second,
		Sinks:    []coordinator.Sink{sink},
		Clock:    a.cfg.Clock,
	}, a.logger)
	if err := a.registry.Register(c); err != nil {
		return nil, err
	}
	a.devices[cfg.Name] = cfg
	a.sinks[cfg.Name] = sink
	return c, nil
}

// removeDevice unregisters name and forgets everything held for it. The old
// coordinator may still be refreshing: its sessions are closed on return by
// the pool, and its sink is retired before the alert state is dropped so a
// late result cannot bring that state back.
func (a *App) removeDevice(name string) {
	a.registry.Remove(name)
	a.connPool.Evict(name)
	if sink, ok := a.sinks[name]; ok {
		sink.retire()
		delete(a.sinks, name)
	}
	a.prod.State().Forget(name)
	delete(a.devices, name)
}

// firstRefresh issues the forced first refresh of each coordinator in its own
// goroutine. Results reach the pipeline through the coordinator's sink.
func (a *App) firstRefresh(coords []*coordinator.Coordinator) {
	for _, c := range coords {
		a.refreshWg.Add(1)
		go func(c *coordinator.Coordinator) {
			defer a.refreshWg.Done()
			if err := c.FirstRefresh(a.pipeCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Info("app: first refresh failed, retrying on schedule",
					"device", c.Name(),
					"interval", c.Interval().String(),
				)
			}
		}(c)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline stage goroutines
// ─────────────────────────────────────────────────────────────────────────────

// startProduceStage turns refresh events into telemetry records and alerts.
// When eventCh is closed it closes both output channels to cascade the
// shutdown downstream.
func (a *App) startProduceStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.telemetryCh)
		defer close(a.alertCh)

		for ev := range a.eventCh {
			var (
				tel    models.UPSTelemetry
				alerts []models.UPSAlert
			)
			ok := ev.sink.produce(func() {
				if ev.err != nil {
					tel = a.prod.Unavailable(ev.sink.device, ev.err)
					return
				}
				tel, alerts = a.prod.Produce(ev.sink.device, ev.snap)
			})
			if !ok {
				a.logger.Debug("app: dropped result of removed device",
					"device", ev.sink.device.Name,
				)
				continue
			}
			a.telemetryCh <- tel
			for _, al := range alerts {
				a.logger.Info("app: alert",
					"device", al.Device.Name,
					"action", al.AlertInfo.Action,
					"title", al.AlertInfo.Title,
				)
				a.alertCh <- al
			}
		}
	}()
}

// startFormatStage formats telemetry records into formattedCh. formatWg must
// already be incremented by the caller.
func (a *App) startFormatStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.formatWg.Done()

		for tel := range a.telemetryCh {
			data, err := a.formatter.FormatTelemetry(&tel)
			if err != nil {
				a.logger.Warn("app: format error",
					"device", tel.Device.Name,
					"error", err.Error(),
				)
				continue
			}
			a.formattedCh <- data
		}
	}()
}

// startAlertFormatStage formats alert events into the shared formattedCh.
// formatWg must already be incremented by the caller.
func (a *App) startAlertFormatStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.formatWg.Done()

		for al := range a.alertCh {
			data, err := a.formatter.FormatAlert(&al)
			if err != nil {
				a.logger.Warn("app: alert format error",
					"device", al.Device.Name,
					"alert", al.AlertInfo.ID,
					"error", err.Error(),
				)
				continue
			}
			a.formattedCh <- data
		}
	}()
}

// startTransportStage writes formatted bytes through the transport. It also
// owns the goroutine that closes formattedCh after both formatters finish.
func (a *App) startTransportStage() {
	go func() {
		a.formatWg.Wait()
		close(a.formattedCh)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		for data := range a.formattedCh {
			if err := a.transport.Send(data); err != nil {
				a.logger.Error("app: transport send error",
					"error", err.Error(),
					"bytes", len(data),
				)
			}
		}
	}()
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
