package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/ups_collector/models"
	"github.com/vpbank/ups_collector/pkg/upscollector/config"
	"github.com/vpbank/ups_collector/snmp/decoder"
)

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

// SNMPError is an error-status response from the agent that could not be
// recovered by dropping an OID.
type SNMPError struct {
	Device string
	Op     string
	Status gosnmp.SNMPError
	Index  uint8
}

func (e *SNMPError) Error() string {
	return fmt.Sprintf("poller: %s %s: agent returned %s (index %d)", e.Device, e.Op, e.Status, e.Index)
}

// TransportError wraps a failure below the SNMP layer: timeout, unreachable
// host, authentication or decoding failure inside gosnmp.
type TransportError struct {
	Device string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("poller: %s %s: %v", e.Device, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

// Client issues Get and GetBulk requests against one UPS. It borrows a
// session from the pool for the duration of each call; sessions that failed
// at transport level are discarded so the next call redials.
//
// A client is bound to the pool generation current when it was created. Once
// the device is evicted every call fails with ErrEvicted, so a replaced
// configuration is never served by the old client's sessions.
type Client struct {
	cfg    config.DeviceConfig
	pool   *ConnectionPool
	gen    uint64
	dec    *decoder.SNMPDecoder
	logger *slog.Logger
}

// NewClient creates a client for cfg that obtains sessions from pool.
func NewClient(cfg config.DeviceConfig, pool *ConnectionPool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Client{
		cfg:    cfg,
		pool:   pool,
		gen:    pool.Generation(cfg.Name),
		dec:    decoder.NewSNMPDecoder(logger),
		logger: logger.With("device", cfg.Name),
	}
}

// Config returns the device configuration the client was built with.
func (c *Client) Config() config.DeviceConfig { return c.cfg }

// Get fetches oids and returns their decoded values.
//
// All oids go out in one request unless there are more than gosnmp.MaxOids
// (60), the most gosnmp accepts in a single PDU; larger sets are sent in
// consecutive requests of at most that size and merged. The scalar catalog
// always fits in one request.
//
// When the agent answers with an error status pointing at one OID (error
// index N, 1-based), that OID is dropped and the request is repeated with
// the rest, until a response without error status arrives or nothing is
// left. An error status without an index, or any transport failure, aborts
// the call. oids is not modified.
func (c *Client) Get(ctx context.Context, oids []string) (models.Snapshot, error) {
	out := make(models.Snapshot, len(oids))
	if len(oids) == 0 {
		return out, nil
	}

	err := c.withSession(ctx, func(s Session) error {
		for start := 0; start < len(oids); start += maxOidsPerRequest {
			end := start + maxOidsPerRequest
			if end > len(oids) {
				end = len(oids)
			}
			batch := append([]string(nil), oids[start:end]...)
			got, err := c.getBatch(ctx, s, batch)
			if err != nil {
				return err
			}
			out.Merge(got)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getBatch(ctx context.Context, s Session, batch []string) (models.Snapshot, error) {
	for len(batch) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkt, err := s.Get(batch)
		if err != nil {
			return nil, &TransportError{Device: c.cfg.Name, Op: "get", Err: err}
		}
		if pkt.Error == gosnmp.NoError {
			return c.dec.Decode(pkt.Variables), nil
		}
		idx := int(pkt.ErrorIndex)
		if idx < 1 || idx > len(batch) {
			return nil, &SNMPError{Device: c.cfg.Name, Op: "get", Status: pkt.Error, Index: pkt.ErrorIndex}
		}
		c.logger.Debug("poller: dropping unsupported oid",
			"oid", batch[idx-1],
			"status", pkt.Error.String(),
			"remaining", len(batch)-1,
		)
		batch = append(batch[:idx-1], batch[idx:]...)
	}
	return models.Snapshot{}, nil
}

// GetBulk walks the table columns given as base OIDs and returns rows
// decoded rows, one per request round.
//
// Every round asks for the successor of each column cursor with
// non-repeaters 0 and max-repetitions 1 (GetNext on SNMPv1, which has no
// GetBulk PDU). The names returned by one round seed the next. start is the
// 1-based row index of the first row; values below 1 are treated as 1.
//
// Any error status or transport failure aborts the whole call.
func (c *Client) GetBulk(ctx context.Context, columns []string, rows, start int) ([]models.Snapshot, error) {
	if rows <= 0 {
		return nil, nil
	}
	parser, err := decoder.NewVarbindParser(columns)
	if err != nil {
		return nil, err
	}

	cursor := parser.Columns()
	if start > 1 {
		for i := range cursor {
			cursor[i] += "." + strconv.Itoa(start-1)
		}
	}

	result := make([]models.Snapshot, 0, rows)
	err = c.withSession(ctx, func(s Session) error {
		for r := 0; r < rows; r++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			pkt, err := c.nextRow(s, cursor)
			if err != nil {
				return &TransportError{Device: c.cfg.Name, Op: "getbulk", Err: err}
			}
			if pkt.Error != gosnmp.NoError {
				return &SNMPError{Device: c.cfg.Name, Op: "getbulk", Status: pkt.Error, Index: pkt.ErrorIndex}
			}
			row, next, err := c.dec.DecodeRow(parser, pkt.Variables)
			if err != nil {
				return fmt.Errorf("poller: %s getbulk round %d: %w", c.cfg.Name, r+1, err)
			}
			result = append(result, row)
			cursor = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("poller: table fetched", "columns", len(columns), "rows", len(result))
	return result, nil
}

func (c *Client) nextRow(s Session, cursor []string) (*gosnmp.SnmpPacket, error) {
	if c.cfg.Version == "1" {
		return s.GetNext(cursor)
	}
	return s.GetBulk(cursor, 0, 1)
}

// withSession borrows a session for fn. Transport failures discard the
// session; everything else returns it to the pool.
func (c *Client) withSession(ctx context.Context, fn func(Session) error) error {
	s, err := c.pool.get(ctx, c.cfg, c.gen)
	if err != nil {
		return fmt.Errorf("poller: %s: acquire session: %w", c.cfg.Name, err)
	}
	err = fn(s)
	var terr *TransportError
	if errors.As(err, &terr) {
		c.pool.Discard(c.cfg.Name, s)
		return err
	}
	c.pool.Put(c.cfg.Name, s)
	return err
}
