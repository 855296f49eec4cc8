package models

import (
	"strconv"
	"strings"
)

// IndexPlaceholder is the token in a column template that is replaced with
// the 1-based phase index.
const IndexPlaceholder = "index"

// ─────────────────────────────────────────────────────────────────────────────
// OID catalog
// ─────────────────────────────────────────────────────────────────────────────

// Identity.
const (
	OIDSystemName          = "1.3.6.1.2.1.1.1.0"
	OIDProductName         = "1.3.6.1.4.1.534.1.1.2.0"
	OIDProductNameUPSMIB   = "1.3.6.1.2.1.33.1.1.2.0"
	OIDFirmwareVersion     = "1.3.6.1.4.1.534.1.1.3.0"
	OIDFirmwareVersionUPSM = "1.3.6.1.2.1.33.1.1.3.0"
	OIDPartNumber          = "1.3.6.1.4.1.534.1.1.5.0"
	OIDSerialNumber        = "1.3.6.1.4.1.534.1.1.6.0"
	OIDSerialNumberUPSMIB  = "1.3.6.1.2.1.33.1.1.5.0"
)

// Battery.
const (
	OIDBatteryRemaining    = "1.3.6.1.4.1.534.1.2.1.0"
	OIDBatteryVoltage      = "1.3.6.1.4.1.534.1.2.2.0"
	OIDBatteryCurrent      = "1.3.6.1.4.1.534.1.2.3.0"
	OIDBatteryCapacity     = "1.3.6.1.4.1.534.1.2.4.0"
	OIDBatteryAbmStatus    = "1.3.6.1.4.1.534.1.2.5.0"
	OIDBatteryLastReplaced = "1.3.6.1.4.1.534.1.2.6.0"
	OIDBatteryFailure      = "1.3.6.1.4.1.534.1.2.7.0"
	OIDBatteryNotPresent   = "1.3.6.1.4.1.534.1.2.8.0"
	OIDBatteryAged         = "1.3.6.1.4.1.534.1.2.9.0"
	OIDBatteryLowCapacity  = "1.3.6.1.4.1.534.1.2.10.0"
	OIDBatteryTestStatus   = "1.3.6.1.4.1.534.1.8.2.0"
)

// Input.
const (
	OIDInputNumPhases = "1.3.6.1.4.1.534.1.3.3.0"
	OIDInputPhase     = "1.3.6.1.4.1.534.1.3.4.1.1.index"
	OIDInputVoltage   = "1.3.6.1.4.1.534.1.3.4.1.2.index"
	OIDInputCurrent   = "1.3.6.1.4.1.534.1.3.4.1.3.index"
	OIDInputWatts     = "1.3.6.1.4.1.534.1.3.4.1.4.index"
	OIDInputName      = "1.3.6.1.4.1.534.1.3.4.1.6.index"
	OIDInputSource    = "1.3.6.1.4.1.534.1.3.5.0"
	OIDInputStatus    = "1.3.6.1.4.1.534.1.3.9.0"
)

// Output.
const (
	OIDOutputNumPhases = "1.3.6.1.4.1.534.1.4.3.0"
	OIDOutputPhase     = "1.3.6.1.4.1.534.1.4.4.1.1.index"
	OIDOutputVoltage   = "1.3.6.1.4.1.534.1.4.4.1.2.index"
	OIDOutputCurrent   = "1.3.6.1.4.1.534.1.4.4.1.3.index"
	OIDOutputWatts     = "1.3.6.1.4.1.534.1.4.4.1.4.index"
	OIDOutputName      = "1.3.6.1.4.1.534.1.4.4.1.6.index"
	OIDOutputLoad      = "1.3.6.1.4.1.534.1.4.4.1.8.index"
	OIDOutputSource    = "1.3.6.1.4.1.534.1.4.5.0"
	OIDOutputStatus    = "1.3.6.1.4.1.534.1.4.10.0"
)

// scalarCatalog is the ordered scalar set fetched on every refresh. Battery
// current is catalogued but not polled.
var scalarCatalog = []string{
	OIDProductName,
	OIDPartNumber,
	OIDSerialNumber,
	OIDFirmwareVersion,
	OIDInputNumPhases,
	OIDInputSource,
	OIDInputStatus,
	OIDOutputNumPhases,
	OIDOutputSource,
	OIDOutputStatus,
	OIDBatteryRemaining,
	OIDBatteryVoltage,
	OIDBatteryCapacity,
	OIDBatteryAbmStatus,
	OIDBatteryLastReplaced,
	OIDBatteryFailure,
	OIDBatteryNotPresent,
	OIDBatteryAged,
	OIDBatteryLowCapacity,
	OIDBatteryTestStatus,
}

// ScalarCatalog returns a copy of the scalar OIDs polled each cycle.
func ScalarCatalog() []string {
	return append([]string(nil), scalarCatalog...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Phase tables
// ─────────────────────────────────────────────────────────────────────────────

// UnusualPhaseCount is the largest phase count a known unit reports. Larger
// counts are logged but still read in full.
const UnusualPhaseCount = 16

// PhaseTable describes one per-phase table: the scalar holding its row count
// and the column templates fetched for each row.
type PhaseTable struct {
	Name     string
	CountOID string
	Columns  []string
}

// InputTable is the per-phase input table.
var InputTable = PhaseTable{
	Name:     "input",
	CountOID: OIDInputNumPhases,
	Columns: []string{
		OIDInputPhase,
		OIDInputVoltage,
		OIDInputCurrent,
		OIDInputWatts,
		OIDInputName,
	},
}

// OutputTable is the per-phase output table.
var OutputTable = PhaseTable{
	Name:     "output",
	CountOID: OIDOutputNumPhases,
	Columns: []string{
		OIDOutputPhase,
		OIDOutputVoltage,
		OIDOutputCurrent,
		OIDOutputWatts,
		OIDOutputName,
		OIDOutputLoad,
	},
}

// PhaseTables returns the tables the coordinator walks, input first.
func PhaseTables() []PhaseTable {
	return []PhaseTable{InputTable, OutputTable}
}

// ColumnOIDs returns the column base OIDs of t (templates without the index
// token), ready to be used as walk roots.
func (t PhaseTable) ColumnOIDs() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = ColumnOID(c)
	}
	return out
}

// ColumnOID strips the trailing ".index" token from a template.
func ColumnOID(template string) string {
	return strings.TrimSuffix(template, "."+IndexPlaceholder)
}

// PhaseOID substitutes index into template, e.g.
// PhaseOID(OIDInputVoltage, 2) = "1.3.6.1.4.1.534.1.3.4.1.2.2".
func PhaseOID(template string, index int) string {
	return strings.Replace(template, IndexPlaceholder, strconv.Itoa(index), 1)
}

// IsTemplate reports whether oid still carries the index token.
func IsTemplate(oid string) bool {
	return strings.HasSuffix(oid, "."+IndexPlaceholder)
}
