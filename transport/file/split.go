package file

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
)

// ─────────────────────────────────────────────────────────────────────────────
// SplitConfig
// ─────────────────────────────────────────────────────────────────────────────

// SplitConfig controls SplitWriterTransport behaviour.
type SplitConfig struct {
	// TelemetryWriter receives refresh records.
	// nil defaults to os.Stdout.
	TelemetryWriter io.Writer

	// AlertWriter receives alert raise/dismiss events.
	// nil defaults to os.Stderr.
	AlertWriter io.Writer

	// Newline appended after each message.  Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// SplitWriterTransport
// ─────────────────────────────────────────────────────────────────────────────

// SplitWriterTransport implements Transport by routing each JSON message to
// one of two writers. Payloads carrying the "alert_info" key go to the alert
// writer; everything else is telemetry. It is safe for concurrent use and the
// two destinations are locked independently.
type SplitWriterTransport struct {
	telemetry *lineWriter
	alerts    *lineWriter
	logger    *slog.Logger
}

// alertMarker identifies alert payloads without unmarshalling them.
var alertMarker = []byte(`"alert_info"`)

// NewSplit constructs a SplitWriterTransport. Nil writers fall back to
// os.Stdout and os.Stderr; a nil logger is replaced by a no-op one.
func NewSplit(cfg SplitConfig, logger *slog.Logger) *SplitWriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SplitWriterTransport{
		telemetry: newLineWriter("telemetry", cfg.TelemetryWriter, os.Stdout, cfg.Newline),
		alerts:    newLineWriter("alert", cfg.AlertWriter, os.Stderr, cfg.Newline),
		logger:    logger,
	}
}

// Send routes data by content type.
func (st *SplitWriterTransport) Send(data []byte) error {
	if bytes.Contains(data, alertMarker) {
		return st.alerts.write(data, st.logger)
	}
	return st.telemetry.write(data, st.logger)
}

// Close closes both destinations that are io.Closers and reports every
// failure. A writer shared by both routes is closed once.
func (st *SplitWriterTransport) Close() error {
	var result *multierror.Error
	seen := make(map[io.Closer]bool, 2)
	for _, lw := range []*lineWriter{st.telemetry, st.alerts} {
		c, ok := lw.closer()
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
