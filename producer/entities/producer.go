// Package entities turns merged UPS snapshots into presentation-neutral
// telemetry records: sensor readings, binary problem indicators and the
// alerts raised or dismissed when an indicator changes.
package entities

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/vpbank/ups_collector/models"
)

// UniqueIDPrefix starts every reading and alert ID.
const UniqueIDPrefix = "eaton_ups"

// Poll statuses written into TelemetryMetadata.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ─────────────────────────────────────────────────────────────────────────────
// Producer interface
// ─────────────────────────────────────────────────────────────────────────────

// Producer converts coordinator output into telemetry records.
// Implementations must be safe for concurrent use.
type Producer interface {
	Produce(dev models.Device, snap models.Snapshot) (models.UPSTelemetry, []models.UPSAlert)
	Unavailable(dev models.Device, err error) models.UPSTelemetry
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds constructor options for EntityProducer.
type Config struct {
	// CollectorID is written into every TelemetryMetadata.
	CollectorID string

	// Clock stamps records. Defaults to the wall clock.
	Clock clock.Clock
}

// ─────────────────────────────────────────────────────────────────────────────
// EntityProducer — production implementation
// ─────────────────────────────────────────────────────────────────────────────

// EntityProducer is the production Producer implementation. Its only mutable
// state is the DeviceState tracker.
type EntityProducer struct {
	cfg    Config
	state  *DeviceState
	logger *slog.Logger
}

// New constructs an EntityProducer. Pass nil for a no-op logger.
func New(cfg Config, logger *slog.Logger) *EntityProducer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopProducerWriter{}, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &EntityProducer{
		cfg:    cfg,
		state:  NewDeviceState(),
		logger: logger,
	}
}

// State exposes the per-device tracker.
func (p *EntityProducer) State() *DeviceState { return p.state }

// Produce implements Producer.
//
// Identity fields of dev are filled from snap. Sensor readings follow the
// order of Sensors, per-phase ones expanded for phases 1..count where count
// is read from snap. Every binary sensor whose state changed since the last
// call for the same device yields one alert.
func (p *EntityProducer) Produce(dev models.Device, snap models.Snapshot) (models.UPSTelemetry, []models.UPSAlert) {
	now := p.cfg.Clock.Now().UTC()
	dev = withIdentity(dev, snap)

	inputCount := phaseCount(snap, models.InputTable)
	outputCount := phaseCount(snap, models.OutputTable)

	readings := make([]models.Reading, 0, len(Sensors)+int(inputCount)*3+int(outputCount)*4)
	for i := range Sensors {
		readings = append(readings, p.readings(&Sensors[i], dev, snap)...)
	}

	binary := make([]models.BinaryReading, 0, len(BinarySensors))
	for _, d := range BinarySensors {
		binary = append(binary, models.BinaryReading{
			UniqueID: uniqueID(dev, d.ValueOID),
			Name:     entityName(dev, d.Prefix, "", d.Suffix),
			OID:      d.ValueOID,
			On:       models.ParseYesNo(snap[d.ValueOID]) == models.Yes,
		})
	}

	p.state.mu.Lock()
	st := p.state.get(dev.Name)
	st.identity = dev
	st.lastSuccess = now
	var alerts []models.UPSAlert
	for i, b := range binary {
		action := st.transition(b.UniqueID, b.On)
		if action == "" {
			continue
		}
		d := BinarySensors[i]
		alerts = append(alerts, models.UPSAlert{
			Timestamp: now,
			Device:    dev,
			AlertInfo: models.AlertInfo{
				ID:     b.UniqueID,
				Action: action,
				Title:  b.Name,
				Message: fmt.Sprintf("%s %s detected for %s (%s)",
					d.Prefix, d.Suffix, displayName(dev), dev.Name),
				OID: b.OID,
			},
		})
	}
	p.state.mu.Unlock()

	p.logger.Debug("produce: assembled UPSTelemetry",
		"device", dev.Name,
		"readings", len(readings),
		"alerts", len(alerts),
	)

	return models.UPSTelemetry{
		Timestamp: now,
		Device:    dev,
		Readings:  readings,
		Binary:    binary,
		Metadata: models.TelemetryMetadata{
			CollectorID:      p.cfg.CollectorID,
			RefreshID:        uuid.NewString(),
			PollStatus:       StatusSuccess,
			Available:        true,
			LastSuccess:      now,
			InputPhaseCount:  inputCount,
			OutputPhaseCount: outputCount,
		},
	}, alerts
}

// Unavailable implements Producer. The record carries the last identity seen
// for the device and no readings. Raised alerts stay raised.
func (p *EntityProducer) Unavailable(dev models.Device, err error) models.UPSTelemetry {
	now := p.cfg.Clock.Now().UTC()

	md := models.TelemetryMetadata{
		CollectorID: p.cfg.CollectorID,
		RefreshID:   uuid.NewString(),
		PollStatus:  StatusError,
		Available:   false,
	}
	if err != nil {
		md.Error = err.Error()
	}

	p.state.mu.Lock()
	if st, ok := p.state.devices[dev.Name]; ok {
		dev = mergeIdentity(dev, st.identity)
		md.LastSuccess = st.lastSuccess
	}
	p.state.mu.Unlock()

	return models.UPSTelemetry{
		Timestamp: now,
		Device:    dev,
		Readings:  []models.Reading{},
		Metadata:  md,
	}
}

// readings expands one description. Scalar sensors yield one reading,
// per-phase sensors one per phase.
func (p *EntityProducer) readings(d *SensorDescription, dev models.Device, snap models.Snapshot) []models.Reading {
	if d.Table == nil {
		return []models.Reading{p.reading(d, dev, snap, d.ValueOID, "", 0)}
	}
	count := phaseCount(snap, *d.Table)
	out := make([]models.Reading, 0, count)
	for i := 1; i <= int(count); i++ {
		oid := models.PhaseOID(d.ValueOID, i)
		phase, ok := snap.Text(models.PhaseOID(d.NameOID, i))
		if !ok || strings.TrimSpace(phase) == "" {
			phase = strconv.Itoa(i)
		}
		out = append(out, p.reading(d, dev, snap, oid, phase, i))
	}
	return out
}

func (p *EntityProducer) reading(d *SensorDescription, dev models.Device, snap models.Snapshot, oid, phase string, index int) models.Reading {
	return models.Reading{
		UniqueID: uniqueID(dev, oid),
		Name:     entityName(dev, d.Prefix, phase, d.Suffix),
		OID:      oid,
		Value:    d.value(snap, oid),
		Unit:     d.Unit,
		Class:    d.Class,
		Category: d.Category,
		Enabled:  d.Enabled,
		Phase:    index,
	}
}

// phaseCount reads the row count of t from snap. Missing or negative counts
// read as 0.
func phaseCount(snap models.Snapshot, t models.PhaseTable) int64 {
	n, ok := snap.Int(t.CountOID)
	if !ok || n < 0 {
		return 0
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Naming
// ─────────────────────────────────────────────────────────────────────────────

// withIdentity fills the identity fields of dev from snap. The Eaton
// identity OIDs win; the UPS-MIB ones are used when the Eaton ones are
// absent.
func withIdentity(dev models.Device, snap models.Snapshot) models.Device {
	pick := func(oids ...string) string {
		for _, oid := range oids {
			if v, ok := snap.Text(oid); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	dev.ProductName = pick(models.OIDProductName, models.OIDProductNameUPSMIB)
	dev.PartNumber = pick(models.OIDPartNumber)
	dev.SerialNumber = pick(models.OIDSerialNumber, models.OIDSerialNumberUPSMIB)
	dev.FirmwareVersion = pick(models.OIDFirmwareVersion, models.OIDFirmwareVersionUPSM)
	return dev
}

// mergeIdentity copies identity fields from known into dev where dev has
// none.
func mergeIdentity(dev, known models.Device) models.Device {
	if dev.ProductName == "" {
		dev.ProductName = known.ProductName
	}
	if dev.PartNumber == "" {
		dev.PartNumber = known.PartNumber
	}
	if dev.SerialNumber == "" {
		dev.SerialNumber = known.SerialNumber
	}
	if dev.FirmwareVersion == "" {
		dev.FirmwareVersion = known.FirmwareVersion
	}
	return dev
}

// displayName is the product name, or the configured name before the
// identity is known.
func displayName(dev models.Device) string {
	if dev.ProductName != "" {
		return dev.ProductName
	}
	return dev.Name
}

// entityName builds "<product> <prefix> [<phase>] <suffix>".
func entityName(dev models.Device, prefix, phase, suffix string) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{displayName(dev), prefix, phase, suffix} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// uniqueID builds "eaton_ups_<serial>_<oid>". The configured device name
// stands in for a serial number the agent did not report.
func uniqueID(dev models.Device, oid string) string {
	serial := dev.SerialNumber
	if serial == "" {
		serial = dev.Name
	}
	return UniqueIDPrefix + "_" + serial + "_" + oid
}

// ─────────────────────────────────────────────────────────────────────────────
// noopProducerWriter — discards log output when no logger is provided
// ─────────────────────────────────────────────────────────────────────────────

type noopProducerWriter struct{}

func (noopProducerWriter) Write(p []byte) (int, error) { return len(p), nil }
