package entities

import (
	"fmt"
	"time"

	"github.com/vpbank/ups_collector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Value kinds
// ─────────────────────────────────────────────────────────────────────────────

type valueKind int

const (
	kindNumber valueKind = iota
	kindEnum
	kindDate
)

// lastReplacedLayout is the MM/DD/YYYY format the agent reports the battery
// replacement date in.
const lastReplacedLayout = "01/02/2006"

// Device classes and entity categories written into readings.
const (
	ClassVoltage  = "voltage"
	ClassCurrent  = "current"
	ClassPower    = "power"
	ClassBattery  = "battery"
	ClassEnum     = "enum"
	ClassDate     = "date"
	ClassDuration = "duration"
	ClassProblem  = "problem"

	CategoryDiagnostic = "diagnostic"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sensor descriptions
// ─────────────────────────────────────────────────────────────────────────────

// SensorDescription declares one reading derived from the snapshot.
type SensorDescription struct {
	Prefix string
	Suffix string
	// ValueOID is a scalar OID or, for per-phase sensors, a column template.
	ValueOID string
	// Table is set for per-phase sensors; one reading is produced for each
	// phase 1..count.
	Table *models.PhaseTable
	// NameOID is the column template holding the phase name.
	NameOID string

	Unit     string
	Class    string
	Category string
	// Enabled is false for readings hidden by default.
	Enabled bool

	kind  valueKind
	label func(interface{}) fmt.Stringer
}

// BinaryDescription declares one on/off problem indicator. It raises an
// alert while on.
type BinaryDescription struct {
	Prefix   string
	Suffix   string
	ValueOID string
	Class    string
}

func enumOf[T fmt.Stringer](parse func(interface{}) T) func(interface{}) fmt.Stringer {
	return func(raw interface{}) fmt.Stringer { return parse(raw) }
}

var (
	inputTable  = models.InputTable
	outputTable = models.OutputTable
)

// Sensors lists the scalar and per-phase sensors in emission order.
var Sensors = []SensorDescription{
	{Prefix: "Battery", Suffix: "Voltage", ValueOID: models.OIDBatteryVoltage,
		Unit: "V", Class: ClassVoltage, Enabled: true},
	{Prefix: "Battery", Suffix: "Capacity", ValueOID: models.OIDBatteryCapacity,
		Unit: "%", Class: ClassBattery, Enabled: true},
	{Prefix: "Battery", Suffix: "ABM Status", ValueOID: models.OIDBatteryAbmStatus,
		Class: ClassEnum, Enabled: true, kind: kindEnum, label: enumOf(models.ParseAbmStatus)},
	{Prefix: "Battery", Suffix: "Last Replaced", ValueOID: models.OIDBatteryLastReplaced,
		Class: ClassDate, Enabled: true, kind: kindDate},
	{Prefix: "Battery", Suffix: "Remaining", ValueOID: models.OIDBatteryRemaining,
		Unit: "s", Class: ClassDuration, Enabled: true},
	{Prefix: "Battery", Suffix: "Test Status", ValueOID: models.OIDBatteryTestStatus,
		Class: ClassEnum, Category: CategoryDiagnostic, Enabled: true,
		kind: kindEnum, label: enumOf(models.ParseBatteryTestStatus)},
	{Prefix: "Input", Suffix: "Source", ValueOID: models.OIDInputSource,
		Class: ClassEnum, Enabled: true, kind: kindEnum, label: enumOf(models.ParseInputSource)},
	{Prefix: "Input", Suffix: "Status", ValueOID: models.OIDInputStatus,
		Class: ClassEnum, Enabled: true, kind: kindEnum, label: enumOf(models.ParseInputStatus)},
	{Prefix: "Output", Suffix: "Source", ValueOID: models.OIDOutputSource,
		Class: ClassEnum, Enabled: true, kind: kindEnum, label: enumOf(models.ParseOutputSource)},
	{Prefix: "Output", Suffix: "Status", ValueOID: models.OIDOutputStatus,
		Class: ClassEnum, Enabled: true, kind: kindEnum, label: enumOf(models.ParseOutputStatus)},

	{Prefix: "Input", Suffix: "Voltage", ValueOID: models.OIDInputVoltage,
		Table: &inputTable, NameOID: models.OIDInputName, Unit: "V", Class: ClassVoltage},
	{Prefix: "Input", Suffix: "Current", ValueOID: models.OIDInputCurrent,
		Table: &inputTable, NameOID: models.OIDInputName, Unit: "A", Class: ClassCurrent},
	{Prefix: "Input", Suffix: "Watts", ValueOID: models.OIDInputWatts,
		Table: &inputTable, NameOID: models.OIDInputName, Unit: "W", Class: ClassPower, Enabled: true},

	{Prefix: "Output", Suffix: "Voltage", ValueOID: models.OIDOutputVoltage,
		Table: &outputTable, NameOID: models.OIDOutputName, Unit: "V", Class: ClassVoltage},
	{Prefix: "Output", Suffix: "Current", ValueOID: models.OIDOutputCurrent,
		Table: &outputTable, NameOID: models.OIDOutputName, Unit: "A", Class: ClassCurrent},
	{Prefix: "Output", Suffix: "Watts", ValueOID: models.OIDOutputWatts,
		Table: &outputTable, NameOID: models.OIDOutputName, Unit: "W", Class: ClassPower, Enabled: true},
	{Prefix: "Output", Suffix: "Load", ValueOID: models.OIDOutputLoad,
		Table: &outputTable, NameOID: models.OIDOutputName, Unit: "%", Enabled: true},
}

// BinarySensors lists the battery problem indicators.
var BinarySensors = []BinaryDescription{
	{Prefix: "Battery", Suffix: "Failure", ValueOID: models.OIDBatteryFailure, Class: ClassProblem},
	{Prefix: "Battery", Suffix: "Not Present", ValueOID: models.OIDBatteryNotPresent, Class: ClassProblem},
	{Prefix: "Battery", Suffix: "Aged", ValueOID: models.OIDBatteryAged, Class: ClassProblem},
	{Prefix: "Battery", Suffix: "Low Capacity", ValueOID: models.OIDBatteryLowCapacity, Class: ClassBattery},
}

// ─────────────────────────────────────────────────────────────────────────────
// Value conversion
// ─────────────────────────────────────────────────────────────────────────────

// value converts the snapshot value at oid according to d's kind. Missing
// numbers read as 0, missing enums as their unknown label, and a missing or
// malformed date as nil.
func (d *SensorDescription) value(snap models.Snapshot, oid string) interface{} {
	raw, ok := snap[oid]
	switch d.kind {
	case kindEnum:
		return d.label(raw).String()
	case kindDate:
		text, ok := snap.Text(oid)
		if !ok {
			return nil
		}
		t, err := time.Parse(lastReplacedLayout, text)
		if err != nil {
			return nil
		}
		return t.Format(time.DateOnly)
	default:
		if !ok {
			return float64(0)
		}
		switch raw.(type) {
		case int64, float64:
			return raw
		}
		if f, ok := snap.Float(oid); ok {
			return f
		}
		return float64(0)
	}
}
