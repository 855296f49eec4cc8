package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vpbank/ups_collector/pkg/upscollector/config"
)

var (
	// ErrPoolClosed is returned by Get after Close.
	ErrPoolClosed = errors.New("poller: pool closed")

	// ErrEvicted is returned when a session is requested for a device
	// generation that Evict has already retired.
	ErrEvicted = errors.New("poller: device evicted")
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// PoolOptions configures the connection pool behaviour.
type PoolOptions struct {
	// MaxIdlePerDevice is the maximum number of idle sessions kept per device
	// (default 1). Excess sessions returned via Put are closed immediately.
	MaxIdlePerDevice int

	// MaxConcurrentPerDevice limits in-flight sessions per device (default 1,
	// so refreshes of one UPS never overlap on the wire).
	MaxConcurrentPerDevice int

	// IdleTimeout is how long an idle session remains in the pool before being
	// discarded. Zero means no expiry.
	IdleTimeout time.Duration

	// Dial creates new sessions. Defaults to NewSession when nil.
	Dial func(config.DeviceConfig) (Session, error)

	// Clock stamps idle entries. Defaults to the wall clock.
	Clock clock.Clock
}

func (o *PoolOptions) defaults() {
	if o.MaxIdlePerDevice <= 0 {
		o.MaxIdlePerDevice = 1
	}
	if o.MaxConcurrentPerDevice <= 0 {
		o.MaxConcurrentPerDevice = 1
	}
	if o.Dial == nil {
		o.Dial = NewSession
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Connection pool
// ─────────────────────────────────────────────────────────────────────────────

type poolEntry struct {
	conn       Session
	returnedAt time.Time
}

// devicePool is the per-device idle list + concurrency semaphore for one
// generation of a device.
type devicePool struct {
	gen uint64

	mu      sync.Mutex
	idle    []poolEntry // LIFO stack
	retired bool
	sem     chan struct{}
}

// ConnectionPool manages sessions keyed by device name. It enforces
// per-device concurrency limits and recycles idle sessions, so one session is
// built per device and reused across polls.
//
// Every device has a generation that Evict advances. Sessions leased under an
// older generation are closed when they come back instead of being pooled,
// and requests made for an older generation fail with ErrEvicted.
type ConnectionPool struct {
	opts   PoolOptions
	logger *slog.Logger

	mu     sync.RWMutex
	pools  map[string]*devicePool
	gens   map[string]uint64
	leases map[Session]*devicePool

	closed chan struct{}
	once   sync.Once
}

// NewConnectionPool creates a ready-to-use pool.
func NewConnectionPool(opts PoolOptions, logger *slog.Logger) *ConnectionPool {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &ConnectionPool{
		opts:   opts,
		logger: logger,
		pools:  make(map[string]*devicePool),
		gens:   make(map[string]uint64),
		leases: make(map[Session]*devicePool),
		closed: make(chan struct{}),
	}
}

// Generation returns the current generation of device.
func (p *ConnectionPool) Generation(device string) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gens[device]
}

// Get acquires a session for cfg.Name under the device's current generation.
// It blocks while the per-device concurrency limit is reached and respects
// context cancellation.
func (p *ConnectionPool) Get(ctx context.Context, cfg config.DeviceConfig) (Session, error) {
	return p.get(ctx, cfg, p.Generation(cfg.Name))
}

func (p *ConnectionPool) get(ctx context.Context, cfg config.DeviceConfig, gen uint64) (Session, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	dp, err := p.getOrCreatePool(cfg.Name, gen)
	if err != nil {
		return nil, err
	}

	select {
	case dp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrPoolClosed
	}

	conn, err := p.popIdle(dp)
	if err != nil {
		<-dp.sem
		return nil, err
	}
	if conn == nil {
		conn, err = p.opts.Dial(cfg)
		if err != nil {
			<-dp.sem
			return nil, err
		}
		p.logger.Debug("poller: dialled session", "device", cfg.Name, "host", cfg.Host)
	}

	p.mu.Lock()
	p.leases[conn] = dp
	p.mu.Unlock()
	return conn, nil
}

// Put returns a session to the idle pool and releases the concurrency slot.
// The session is closed instead when the idle list is full, the pool is
// closed, or the device was evicted after the session was leased.
func (p *ConnectionPool) Put(device string, conn Session) {
	dp := p.release(conn)
	if dp == nil {
		_ = conn.Close()
		return
	}
	defer func() { <-dp.sem }()

	select {
	case <-p.closed:
		_ = conn.Close()
		return
	default:
	}

	dp.mu.Lock()
	defer dp.mu.Unlock()

	if dp.retired {
		p.logger.Debug("poller: closing session of evicted generation",
			"device", device,
			"generation", dp.gen,
		)
		_ = conn.Close()
		return
	}
	if len(dp.idle) >= p.opts.MaxIdlePerDevice {
		_ = conn.Close()
		return
	}
	dp.idle = append(dp.idle, poolEntry{conn: conn, returnedAt: p.opts.Clock.Now()})
}

// Discard closes a session and releases the concurrency slot without
// recycling it. Use this when the transport is known to be broken.
func (p *ConnectionPool) Discard(_ string, conn Session) {
	_ = conn.Close()
	if dp := p.release(conn); dp != nil {
		<-dp.sem
	}
}

// Evict closes every idle session of device and advances its generation.
// Sessions still leased are closed when they are returned. Called when a
// device is removed or its configuration changes.
func (p *ConnectionPool) Evict(device string) {
	p.mu.Lock()
	p.gens[device]++
	dp, ok := p.pools[device]
	delete(p.pools, device)
	p.mu.Unlock()
	if !ok {
		return
	}
	dp.mu.Lock()
	dp.retired = true
	for _, e := range dp.idle {
		_ = e.conn.Close()
	}
	dp.idle = nil
	dp.mu.Unlock()
}

// Close drains all idle sessions and prevents new Get calls.
func (p *ConnectionPool) Close() error {
	p.once.Do(func() { close(p.closed) })

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, dp := range p.pools {
		dp.mu.Lock()
		for _, e := range dp.idle {
			_ = e.conn.Close()
		}
		dp.idle = nil
		dp.mu.Unlock()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// getOrCreatePool returns the pool of device for generation gen, or
// ErrEvicted when gen is no longer current.
func (p *ConnectionPool) getOrCreatePool(device string, gen uint64) (*devicePool, error) {
	p.mu.RLock()
	dp, ok := p.pools[device]
	cur := p.gens[device]
	p.mu.RUnlock()
	if gen != cur {
		return nil, ErrEvicted
	}
	if ok {
		return dp, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gens[device] {
		return nil, ErrEvicted
	}
	if dp, ok = p.pools[device]; ok {
		return dp, nil
	}
	dp = &devicePool{
		gen:  gen,
		idle: make([]poolEntry, 0, p.opts.MaxIdlePerDevice),
		sem:  make(chan struct{}, p.opts.MaxConcurrentPerDevice),
	}
	p.pools[device] = dp
	return dp, nil
}

// release forgets the lease of conn and returns the pool it came from, or nil
// for a session the pool never handed out.
func (p *ConnectionPool) release(conn Session) *devicePool {
	p.mu.Lock()
	defer p.mu.Unlock()
	dp, ok := p.leases[conn]
	if !ok {
		return nil
	}
	delete(p.leases, conn)
	return dp
}

// popIdle pops the most recent unexpired idle session, or returns nil when
// there is none. It fails with ErrEvicted if dp was retired while the caller
// waited for its slot.
func (p *ConnectionPool) popIdle(dp *devicePool) (Session, error) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	if dp.retired {
		return nil, ErrEvicted
	}
	now := p.opts.Clock.Now()
	for len(dp.idle) > 0 {
		n := len(dp.idle) - 1
		entry := dp.idle[n]
		dp.idle = dp.idle[:n]

		if p.opts.IdleTimeout > 0 && now.Sub(entry.returnedAt) > p.opts.IdleTimeout {
			_ = entry.conn.Close()
			continue
		}
		return entry.conn, nil
	}
	return nil, nil
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
