package entities_test

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpbank/ups_collector/models"
	"github.com/vpbank/ups_collector/producer/entities"
)

func newProducer() (*entities.EntityProducer, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return entities.New(entities.Config{CollectorID: "collector-1", Clock: mock}, nil), mock
}

func baseDevice() models.Device {
	return models.Device{Name: "ups-dc1", Host: "10.0.0.5", SNMPVersion: "3"}
}

// sampleSnapshot is a two-input-phase, one-output-phase 9PX.
func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		models.OIDProductName:     "Eaton 9PX",
		models.OIDPartNumber:      "9PX3000IRT2U",
		models.OIDSerialNumber:    "G118K08008",
		models.OIDFirmwareVersion: "INV: 01.14.0013",

		models.OIDBatteryVoltage:      int64(82),
		models.OIDBatteryCapacity:     int64(100),
		models.OIDBatteryAbmStatus:    int64(3),
		models.OIDBatteryLastReplaced: "07/15/2022",
		models.OIDBatteryRemaining:    int64(2940),
		models.OIDBatteryTestStatus:   int64(2),
		models.OIDBatteryFailure:      int64(2),
		models.OIDBatteryNotPresent:   int64(2),
		models.OIDBatteryAged:         int64(2),
		models.OIDBatteryLowCapacity:  int64(2),

		models.OIDInputNumPhases: int64(2),
		models.OIDInputSource:    int64(3),
		models.OIDInputStatus:    int64(2),
		models.PhaseOID(models.OIDInputVoltage, 1): int64(229),
		models.PhaseOID(models.OIDInputVoltage, 2): int64(231),
		models.PhaseOID(models.OIDInputWatts, 1):   int64(410),
		models.PhaseOID(models.OIDInputName, 1):    "L1",
		models.PhaseOID(models.OIDInputName, 2):    "L2",

		models.OIDOutputNumPhases: int64(1),
		models.OIDOutputSource:    int64(3),
		models.OIDOutputStatus:    int64(3),
		models.PhaseOID(models.OIDOutputVoltage, 1): int64(230),
		models.PhaseOID(models.OIDOutputLoad, 1):    int64(37),
	}
}

func findReading(t *testing.T, tel models.UPSTelemetry, oid string) models.Reading {
	t.Helper()
	for _, r := range tel.Readings {
		if r.OID == oid {
			return r
		}
	}
	t.Fatalf("no reading for %s", oid)
	return models.Reading{}
}

// ─────────────────────────────────────────────────────────────────────────────
// Produce
// ─────────────────────────────────────────────────────────────────────────────

func TestProduce_IdentityAndMetadata(t *testing.T) {
	p, mock := newProducer()
	tel, alerts := p.Produce(baseDevice(), sampleSnapshot())

	assert.Empty(t, alerts)
	assert.Equal(t, mock.Now().UTC(), tel.Timestamp)
	assert.Equal(t, models.Device{
		Name:            "ups-dc1",
		Host:            "10.0.0.5",
		SNMPVersion:     "3",
		ProductName:     "Eaton 9PX",
		PartNumber:      "9PX3000IRT2U",
		SerialNumber:    "G118K08008",
		FirmwareVersion: "INV: 01.14.0013",
	}, tel.Device)

	md := tel.Metadata
	assert.Equal(t, "collector-1", md.CollectorID)
	assert.Equal(t, entities.StatusSuccess, md.PollStatus)
	assert.True(t, md.Available)
	assert.Equal(t, int64(2), md.InputPhaseCount)
	assert.Equal(t, int64(1), md.OutputPhaseCount)
	_, err := uuid.Parse(md.RefreshID)
	assert.NoError(t, err)
}

func TestProduce_ReadingCount(t *testing.T) {
	p, _ := newProducer()
	tel, _ := p.Produce(baseDevice(), sampleSnapshot())

	// 10 scalar sensors + 2 input phases × 3 + 1 output phase × 4.
	assert.Len(t, tel.Readings, 10+6+4)
	assert.Len(t, tel.Binary, 4)
}

func TestProduce_NamesAndIDs(t *testing.T) {
	p, _ := newProducer()
	tel, _ := p.Produce(baseDevice(), sampleSnapshot())

	v := findReading(t, tel, models.OIDBatteryVoltage)
	assert.Equal(t, "Eaton 9PX Battery Voltage", v.Name)
	assert.Equal(t, "eaton_ups_G118K08008_"+models.OIDBatteryVoltage, v.UniqueID)
	assert.Equal(t, "V", v.Unit)
	assert.Equal(t, int64(82), v.Value)

	in2 := findReading(t, tel, models.PhaseOID(models.OIDInputVoltage, 2))
	assert.Equal(t, "Eaton 9PX Input L2 Voltage", in2.Name)
	assert.Equal(t, "eaton_ups_G118K08008_1.3.6.1.4.1.534.1.3.4.1.2.2", in2.UniqueID)
	assert.Equal(t, 2, in2.Phase)
	assert.False(t, in2.Enabled, "input voltage is hidden by default")

	// No name column for the output phase: the index stands in.
	load := findReading(t, tel, models.PhaseOID(models.OIDOutputLoad, 1))
	assert.Equal(t, "Eaton 9PX Output 1 Load", load.Name)
	assert.Equal(t, int64(37), load.Value)
}

func TestProduce_ValueConversion(t *testing.T) {
	p, _ := newProducer()
	tel, _ := p.Produce(baseDevice(), sampleSnapshot())

	assert.Equal(t, "floating", findReading(t, tel, models.OIDBatteryAbmStatus).Value)
	assert.Equal(t, "passed", findReading(t, tel, models.OIDBatteryTestStatus).Value)
	assert.Equal(t, "primary_utility", findReading(t, tel, models.OIDInputSource).Value)
	assert.Equal(t, "good", findReading(t, tel, models.OIDInputStatus).Value)
	assert.Equal(t, "2022-07-15", findReading(t, tel, models.OIDBatteryLastReplaced).Value)

	// Missing numbers default to 0.
	assert.Equal(t, float64(0), findReading(t, tel, models.PhaseOID(models.OIDInputWatts, 2)).Value)

	diag := findReading(t, tel, models.OIDBatteryTestStatus)
	assert.Equal(t, entities.CategoryDiagnostic, diag.Category)
}

func TestProduce_UnknownEnumAndBadDate(t *testing.T) {
	p, _ := newProducer()
	snap := sampleSnapshot()
	snap[models.OIDBatteryAbmStatus] = int64(42)
	snap[models.OIDBatteryLastReplaced] = "not a date"
	delete(snap, models.OIDOutputSource)

	tel, _ := p.Produce(baseDevice(), snap)
	assert.Equal(t, models.AbmUnknown.String(), findReading(t, tel, models.OIDBatteryAbmStatus).Value)
	assert.Nil(t, findReading(t, tel, models.OIDBatteryLastReplaced).Value)
	assert.Equal(t, models.OutputSourceUnknown.String(), findReading(t, tel, models.OIDOutputSource).Value)
}

func TestProduce_NoPhases(t *testing.T) {
	p, _ := newProducer()
	snap := sampleSnapshot()
	snap[models.OIDInputNumPhases] = int64(0)
	delete(snap, models.OIDOutputNumPhases)

	tel, _ := p.Produce(baseDevice(), snap)
	assert.Len(t, tel.Readings, 10)
	for _, r := range tel.Readings {
		assert.Zero(t, r.Phase)
	}
}

func TestProduce_HighPhaseCountNotTruncated(t *testing.T) {
	const n = models.UnusualPhaseCount + 2
	p, _ := newProducer()
	snap := sampleSnapshot()
	snap[models.OIDInputNumPhases] = int64(0)
	snap[models.OIDOutputNumPhases] = int64(n)

	tel, _ := p.Produce(baseDevice(), snap)
	assert.Len(t, tel.Readings, 10+4*n)
	assert.Equal(t, int64(n), tel.Metadata.OutputPhaseCount)
}

func TestProduce_NoIdentityFallsBackToConfiguredName(t *testing.T) {
	p, _ := newProducer()
	tel, _ := p.Produce(baseDevice(), models.Snapshot{models.OIDBatteryVoltage: int64(80)})

	v := findReading(t, tel, models.OIDBatteryVoltage)
	assert.Equal(t, "ups-dc1 Battery Voltage", v.Name)
	assert.Equal(t, "eaton_ups_ups-dc1_"+models.OIDBatteryVoltage, v.UniqueID)
}

func TestProduce_UPSMIBIdentityFallback(t *testing.T) {
	p, _ := newProducer()
	tel, _ := p.Produce(baseDevice(), models.Snapshot{
		models.OIDProductNameUPSMIB:  "Eaton 5PX",
		models.OIDSerialNumberUPSMIB: "S1",
	})
	assert.Equal(t, "Eaton 5PX", tel.Device.ProductName)
	assert.Equal(t, "S1", tel.Device.SerialNumber)
}

// ─────────────────────────────────────────────────────────────────────────────
// Alerts
// ─────────────────────────────────────────────────────────────────────────────

func TestProduce_AlertsAreEdgeTriggered(t *testing.T) {
	p, _ := newProducer()
	snap := sampleSnapshot()
	snap[models.OIDBatteryAged] = int64(1)

	tel, alerts := p.Produce(baseDevice(), snap)
	require.Len(t, alerts, 1)
	a := alerts[0].AlertInfo
	assert.Equal(t, models.AlertRaise, a.Action)
	assert.Equal(t, "eaton_ups_G118K08008_"+models.OIDBatteryAged, a.ID)
	assert.Equal(t, "Eaton 9PX Battery Aged", a.Title)
	assert.Equal(t, "Battery Aged detected for Eaton 9PX (ups-dc1)", a.Message)
	assert.Equal(t, 1, p.State().Raised("ups-dc1"))

	for _, b := range tel.Binary {
		assert.Equal(t, b.OID == models.OIDBatteryAged, b.On, b.Name)
	}

	// Still on: nothing new.
	_, alerts = p.Produce(baseDevice(), snap)
	assert.Empty(t, alerts)

	// Cleared: dismissed once.
	snap[models.OIDBatteryAged] = int64(2)
	_, alerts = p.Produce(baseDevice(), snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertDismiss, alerts[0].AlertInfo.Action)
	assert.Equal(t, 0, p.State().Raised("ups-dc1"))

	_, alerts = p.Produce(baseDevice(), snap)
	assert.Empty(t, alerts)
}

func TestProduce_AlertsPerDevice(t *testing.T) {
	p, _ := newProducer()
	snap := sampleSnapshot()
	snap[models.OIDBatteryFailure] = int64(1)

	_, a1 := p.Produce(baseDevice(), snap)
	other := baseDevice()
	other.Name = "ups-dc2"
	_, a2 := p.Produce(other, snap)

	assert.Len(t, a1, 1)
	assert.Len(t, a2, 1)

	p.State().Forget("ups-dc1")
	_, a1 = p.Produce(baseDevice(), snap)
	assert.Len(t, a1, 1, "forgotten device raises again")
}

// ─────────────────────────────────────────────────────────────────────────────
// Unavailable
// ─────────────────────────────────────────────────────────────────────────────

func TestUnavailable(t *testing.T) {
	p, mock := newProducer()
	p.Produce(baseDevice(), sampleSnapshot())
	success := mock.Now().UTC()

	mock.Add(time.Minute)
	tel := p.Unavailable(baseDevice(), errors.New("request timeout"))

	assert.False(t, tel.Metadata.Available)
	assert.Equal(t, entities.StatusError, tel.Metadata.PollStatus)
	assert.Equal(t, "request timeout", tel.Metadata.Error)
	assert.Equal(t, success, tel.Metadata.LastSuccess)
	assert.Equal(t, "G118K08008", tel.Device.SerialNumber, "last identity is carried")
	assert.Empty(t, tel.Readings)
	assert.Equal(t, mock.Now().UTC(), tel.Timestamp)
}

func TestUnavailable_NeverSeen(t *testing.T) {
	p, _ := newProducer()
	tel := p.Unavailable(baseDevice(), nil)

	assert.False(t, tel.Metadata.Available)
	assert.Empty(t, tel.Metadata.Error)
	assert.True(t, tel.Metadata.LastSuccess.IsZero())
	assert.Empty(t, tel.Device.ProductName)
}
