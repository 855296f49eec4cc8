// Package file delivers formatted UPS records as newline-delimited JSON to
// io.Writers: stdout, plain files or size-rotated files.
//
// Pipeline position:
//
//	format/json → transport/file
//
// WriterTransport sends everything to one destination. SplitWriterTransport
// keeps telemetry and alert events apart.
package file

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Transport interface
// ─────────────────────────────────────────────────────────────────────────────

// Transport is the pipeline contract for all transport implementations.
// Send delivers one pre-formatted message; Close releases the destinations
// the transport owns.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls WriterTransport behaviour.
type Config struct {
	// Writer is the destination.  nil defaults to os.Stdout.
	Writer io.Writer

	// Newline appended after each message.  Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// lineWriter
// ─────────────────────────────────────────────────────────────────────────────

// lineWriter writes whole records to one destination under a mutex so
// concurrent senders never interleave.
type lineWriter struct {
	mu   sync.Mutex
	kind string
	w    io.Writer
	nl   []byte
}

func newLineWriter(kind string, w, fallback io.Writer, newline string) *lineWriter {
	if w == nil {
		w = fallback
	}
	if newline == "" {
		newline = "\n"
	}
	return &lineWriter{kind: kind, w: w, nl: []byte(newline)}
}

func (lw *lineWriter) write(data []byte, logger *slog.Logger) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := lw.w.Write(data); err != nil {
		logger.Error("transport/file: write failed",
			"kind", lw.kind, "error", err.Error(), "bytes", len(data),
		)
		return fmt.Errorf("transport/file: %s write: %w", lw.kind, err)
	}
	if _, err := lw.w.Write(lw.nl); err != nil {
		logger.Error("transport/file: newline write failed",
			"kind", lw.kind, "error", err.Error(),
		)
		return fmt.Errorf("transport/file: %s write newline: %w", lw.kind, err)
	}

	logger.Debug("transport/file: sent message", "kind", lw.kind, "bytes", len(data))
	return nil
}

// closer returns the destination as an io.Closer when it is one the
// transport may close. The process's stdout and stderr never qualify.
func (lw *lineWriter) closer() (io.Closer, bool) {
	if lw.w == os.Stdout || lw.w == os.Stderr {
		return nil, false
	}
	c, ok := lw.w.(io.Closer)
	return c, ok
}

// ─────────────────────────────────────────────────────────────────────────────
// WriterTransport
// ─────────────────────────────────────────────────────────────────────────────

// WriterTransport implements Transport by writing every message to a single
// io.Writer. It is safe for concurrent use.
type WriterTransport struct {
	out    *lineWriter
	logger *slog.Logger
}

// New constructs a WriterTransport.
//
//   - cfg.Writer defaults to os.Stdout when nil.
//   - cfg.Newline defaults to "\n" when empty.
//   - logger defaults to a no-op writer when nil.
func New(cfg Config, logger *slog.Logger) *WriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &WriterTransport{
		out:    newLineWriter("record", cfg.Writer, os.Stdout, cfg.Newline),
		logger: logger,
	}
}

// Send writes data followed by the configured newline.
func (t *WriterTransport) Send(data []byte) error {
	return t.out.write(data, t.logger)
}

// Close closes the destination when it is an io.Closer such as a
// RotatingFile. Stdout and stderr are left open.
func (t *WriterTransport) Close() error {
	if c, ok := t.out.closer(); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("transport/file: close: %w", err)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
