package models

import (
	"math"
	"strconv"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Closed enumerations
// ─────────────────────────────────────────────────────────────────────────────
//
// Every type below is backed by the integer code the agent reports. Codes
// outside the known set parse to the type's unknown variant.

// YesNo is the XUPS-MIB boolean used by the battery alarm scalars.
type YesNo int

const (
	YesNoUnknown YesNo = 0
	Yes          YesNo = 1
	No           YesNo = 2
)

var yesNoLabels = map[YesNo]string{
	YesNoUnknown: "unknown",
	Yes:          "yes",
	No:           "no",
}

func (v YesNo) String() string { return label(yesNoLabels, v, YesNoUnknown) }

// ParseYesNo converts a snapshot value to YesNo.
func ParseYesNo(raw interface{}) YesNo { return parse(raw, yesNoLabels, YesNoUnknown) }

// AbmStatus is the Advanced Battery Management charger state.
type AbmStatus int

const (
	AbmCharging     AbmStatus = 1
	AbmDischarging  AbmStatus = 2
	AbmFloating     AbmStatus = 3
	AbmResting      AbmStatus = 4
	AbmUnknown      AbmStatus = 5
	AbmDisconnected AbmStatus = 6
	AbmUnderTest    AbmStatus = 7
	AbmCheckBattery AbmStatus = 8
)

var abmStatusLabels = map[AbmStatus]string{
	AbmCharging:     "charging",
	AbmDischarging:  "discharging",
	AbmFloating:     "floating",
	AbmResting:      "resting",
	AbmUnknown:      "unknown",
	AbmDisconnected: "disconnected",
	AbmUnderTest:    "under_test",
	AbmCheckBattery: "check_battery",
}

func (v AbmStatus) String() string { return label(abmStatusLabels, v, AbmUnknown) }

// ParseAbmStatus converts a snapshot value to AbmStatus.
func ParseAbmStatus(raw interface{}) AbmStatus { return parse(raw, abmStatusLabels, AbmUnknown) }

// BatteryTestStatus is the result of the last battery self test.
type BatteryTestStatus int

const (
	BatteryTestUnknown      BatteryTestStatus = 1
	BatteryTestPassed       BatteryTestStatus = 2
	BatteryTestFailed       BatteryTestStatus = 3
	BatteryTestInProgress   BatteryTestStatus = 4
	BatteryTestNotSupported BatteryTestStatus = 5
	BatteryTestInhibited    BatteryTestStatus = 6
	BatteryTestScheduled    BatteryTestStatus = 7
)

var batteryTestStatusLabels = map[BatteryTestStatus]string{
	BatteryTestUnknown:      "unknown",
	BatteryTestPassed:       "passed",
	BatteryTestFailed:       "failed",
	BatteryTestInProgress:   "in_progress",
	BatteryTestNotSupported: "not_supported",
	BatteryTestInhibited:    "inhibited",
	BatteryTestScheduled:    "scheduled",
}

func (v BatteryTestStatus) String() string {
	return label(batteryTestStatusLabels, v, BatteryTestUnknown)
}

// ParseBatteryTestStatus converts a snapshot value to BatteryTestStatus.
func ParseBatteryTestStatus(raw interface{}) BatteryTestStatus {
	return parse(raw, batteryTestStatusLabels, BatteryTestUnknown)
}

// InputSource is the feed currently powering the UPS input.
type InputSource int

const (
	InputSourceUnknown          InputSource = 0
	InputSourceOther            InputSource = 1
	InputSourceNone             InputSource = 2
	InputSourcePrimaryUtility   InputSource = 3
	InputSourceBypassFeed       InputSource = 4
	InputSourceSecondaryUtility InputSource = 5
	InputSourceGenerator        InputSource = 6
	InputSourceFlywheel         InputSource = 7
	InputSourceFuelcell         InputSource = 8
)

var inputSourceLabels = map[InputSource]string{
	InputSourceUnknown:          "unknown",
	InputSourceOther:            "other",
	InputSourceNone:             "none",
	InputSourcePrimaryUtility:   "primary_utility",
	InputSourceBypassFeed:       "bypass_feed",
	InputSourceSecondaryUtility: "secondary_utility",
	InputSourceGenerator:        "generator",
	InputSourceFlywheel:         "flywheel",
	InputSourceFuelcell:         "fuelcell",
}

func (v InputSource) String() string { return label(inputSourceLabels, v, InputSourceUnknown) }

// ParseInputSource converts a snapshot value to InputSource.
func ParseInputSource(raw interface{}) InputSource {
	return parse(raw, inputSourceLabels, InputSourceUnknown)
}

// InputStatus is the utility quality as judged by the UPS.
type InputStatus int

const (
	InputStatusUnknown InputStatus = 0
	InputStatusBad     InputStatus = 1
	InputStatusGood    InputStatus = 2
)

var inputStatusLabels = map[InputStatus]string{
	InputStatusUnknown: "unknown",
	InputStatusBad:     "bad",
	InputStatusGood:    "good",
}

func (v InputStatus) String() string { return label(inputStatusLabels, v, InputStatusUnknown) }

// ParseInputStatus converts a snapshot value to InputStatus.
func ParseInputStatus(raw interface{}) InputStatus {
	return parse(raw, inputStatusLabels, InputStatusUnknown)
}

// OutputSource is the path currently feeding the load.
type OutputSource int

const (
	OutputSourceUnknown            OutputSource = 0
	OutputSourceOther              OutputSource = 1
	OutputSourceNone               OutputSource = 2
	OutputSourceNormal             OutputSource = 3
	OutputSourceBypass             OutputSource = 4
	OutputSourceBattery            OutputSource = 5
	OutputSourceBooster            OutputSource = 6
	OutputSourceReducer            OutputSource = 7
	OutputSourceParallelCapacity   OutputSource = 8
	OutputSourceParallelRedundant  OutputSource = 9
	OutputSourceHighEfficiencyMode OutputSource = 10
	OutputSourceMaintenanceBypass  OutputSource = 11
	OutputSourceESSMode            OutputSource = 12
)

var outputSourceLabels = map[OutputSource]string{
	OutputSourceUnknown:            "unknown",
	OutputSourceOther:              "other",
	OutputSourceNone:               "none",
	OutputSourceNormal:             "normal",
	OutputSourceBypass:             "bypass",
	OutputSourceBattery:            "battery",
	OutputSourceBooster:            "booster",
	OutputSourceReducer:            "reducer",
	OutputSourceParallelCapacity:   "parallel_capacity",
	OutputSourceParallelRedundant:  "parallel_redundant",
	OutputSourceHighEfficiencyMode: "high_efficiency_mode",
	OutputSourceMaintenanceBypass:  "maintenance_bypass",
	OutputSourceESSMode:            "ess_mode",
}

func (v OutputSource) String() string { return label(outputSourceLabels, v, OutputSourceUnknown) }

// ParseOutputSource converts a snapshot value to OutputSource.
func ParseOutputSource(raw interface{}) OutputSource {
	return parse(raw, outputSourceLabels, OutputSourceUnknown)
}

// OutputStatus describes whether the load is protected.
type OutputStatus int

const (
	OutputStatusUnknown           OutputStatus = 0
	OutputStatusPotPowered        OutputStatus = 1
	OutputStatusNotProtected      OutputStatus = 2
	OutputStatusProtected         OutputStatus = 3
	OutputStatusPoweredNoContinue OutputStatus = 4
)

var outputStatusLabels = map[OutputStatus]string{
	OutputStatusUnknown:           "unknown",
	OutputStatusPotPowered:        "output_pot_powered",
	OutputStatusNotProtected:      "output_not_protected",
	OutputStatusProtected:         "output_protected",
	OutputStatusPoweredNoContinue: "output_powered_no_continuity",
}

func (v OutputStatus) String() string { return label(outputStatusLabels, v, OutputStatusUnknown) }

// ParseOutputStatus converts a snapshot value to OutputStatus.
func ParseOutputStatus(raw interface{}) OutputStatus {
	return parse(raw, outputStatusLabels, OutputStatusUnknown)
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func label[T comparable](labels map[T]string, v, unknown T) string {
	if s, ok := labels[v]; ok {
		return s
	}
	return labels[unknown]
}

func parse[T ~int](raw interface{}, labels map[T]string, unknown T) T {
	code, ok := enumCode(raw)
	if !ok {
		return unknown
	}
	v := T(code)
	if _, known := labels[v]; !known {
		return unknown
	}
	return v
}

// enumCode extracts an integer code from a decoded value.
func enumCode(raw interface{}) (int64, bool) {
	switch x := raw.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if math.Trunc(x) != x {
			return 0, false
		}
		return int64(x), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return i, err == nil
	}
	return 0, false
}
