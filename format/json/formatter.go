// Package json implements the JSON output formatter for the UPS collector.
//
// Pipeline position:
//
//	producer/entities → format/json → transport/file
//
// All json struct tags are declared on the model types themselves, so
// serialisation is a single json.Marshal call with optional indentation.
package json

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vpbank/ups_collector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Formatter interface
// ─────────────────────────────────────────────────────────────────────────────

// Formatter serialises telemetry records and alert events into byte slices.
type Formatter interface {
	FormatTelemetry(t *models.UPSTelemetry) ([]byte, error)
	FormatAlert(a *models.UPSAlert) ([]byte, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls JSONFormatter behaviour.
type Config struct {
	// PrettyPrint emits indented, human-readable JSON when true.
	PrettyPrint bool

	// Indent is the indent string used when PrettyPrint=true.
	// Defaults to two spaces when empty and PrettyPrint=true.
	Indent string
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONFormatter
// ─────────────────────────────────────────────────────────────────────────────

// JSONFormatter implements Formatter using encoding/json. It is safe for
// concurrent use; all fields are immutable after construction.
type JSONFormatter struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a JSONFormatter. If logger is nil, a no-op logger is
// substituted.
func New(cfg Config, logger *slog.Logger) *JSONFormatter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.PrettyPrint && cfg.Indent == "" {
		cfg.Indent = "  "
	}
	return &JSONFormatter{cfg: cfg, logger: logger}
}

// FormatTelemetry serialises one refresh record:
//
//	{
//	  "timestamp": "2026-03-01T12:00:00Z",
//	  "device": { "name": …, "host": …, "serial_number": …, … },
//	  "readings": [ { "unique_id": …, "name": …, "oid": …, "value": …, … } ],
//	  "binary_readings": [ { "unique_id": …, "on": false, … } ],
//	  "metadata": { "collector_id": …, "refresh_id": …, "poll_status": …, … }
//	}
func (f *JSONFormatter) FormatTelemetry(t *models.UPSTelemetry) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("format/json: telemetry must not be nil")
	}
	data, err := f.marshal(t)
	if err != nil {
		f.logger.Error("format/json: marshal failed",
			"device", t.Device.Name,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("format/json: marshal telemetry: %w", err)
	}

	f.logger.Debug("format/json: formatted telemetry",
		"collector_id", t.Metadata.CollectorID,
		"device", t.Device.Name,
		"reading_count", len(t.Readings),
		"bytes", len(data),
	)
	return data, nil
}

// FormatAlert serialises one alert event. Every alert payload carries the
// "alert_info" key, which transport/file uses for routing.
func (f *JSONFormatter) FormatAlert(a *models.UPSAlert) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("format/json: alert must not be nil")
	}
	data, err := f.marshal(a)
	if err != nil {
		f.logger.Error("format/json: marshal failed",
			"device", a.Device.Name,
			"alert", a.AlertInfo.ID,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("format/json: marshal alert: %w", err)
	}

	f.logger.Debug("format/json: formatted alert",
		"device", a.Device.Name,
		"action", a.AlertInfo.Action,
		"bytes", len(data),
	)
	return data, nil
}

func (f *JSONFormatter) marshal(v interface{}) ([]byte, error) {
	if f.cfg.PrettyPrint {
		return json.MarshalIndent(v, "", f.cfg.Indent)
	}
	return json.Marshal(v)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

// noopWriter discards all log output when no logger is provided.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
