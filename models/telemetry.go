package models

import "time"

// UPSTelemetry is the record emitted for every refresh of one device. A
// failed refresh still produces a record, with Available=false and no
// readings, so consumers can mark the device's entities unavailable.
type UPSTelemetry struct {
	Timestamp time.Time         `json:"timestamp"`
	Device    Device            `json:"device"`
	Readings  []Reading         `json:"readings"`
	Binary    []BinaryReading   `json:"binary_readings,omitempty"`
	Metadata  TelemetryMetadata `json:"metadata"`
}

// Device carries identifying information about the polled UPS. Identity
// fields are filled from the snapshot once it has been fetched.
type Device struct {
	Name            string `json:"name"`
	Host            string `json:"host"`
	SNMPVersion     string `json:"snmp_version"` // "1" or "3"
	ProductName     string `json:"product_name,omitempty"`
	PartNumber      string `json:"part_number,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// Reading is one sensor value derived from the snapshot.
type Reading struct {
	UniqueID string      `json:"unique_id"`
	Name     string      `json:"name"`
	OID      string      `json:"oid"`
	Value    interface{} `json:"value"` // float64 | int64 | string
	Unit     string      `json:"unit,omitempty"`
	Class    string      `json:"device_class,omitempty"`
	Category string      `json:"entity_category,omitempty"` // "diagnostic" or empty
	Enabled  bool        `json:"enabled_by_default"`
	Phase    int         `json:"phase,omitempty"`
}

// BinaryReading is one on/off problem indicator.
type BinaryReading struct {
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
	OID      string `json:"oid"`
	On       bool   `json:"on"`
}

// TelemetryMetadata carries operational metadata about the refresh cycle.
type TelemetryMetadata struct {
	CollectorID      string    `json:"collector_id"`
	RefreshID        string    `json:"refresh_id"`
	PollStatus       string    `json:"poll_status"` // "success" | "error"
	Available        bool      `json:"available"`
	Error            string    `json:"error,omitempty"`
	LastSuccess      time.Time `json:"last_success,omitzero"`
	InputPhaseCount  int64     `json:"input_phase_count"`
	OutputPhaseCount int64     `json:"output_phase_count"`
}

// UPSAlert is a raise or dismiss event for a binary problem indicator.
type UPSAlert struct {
	Timestamp time.Time `json:"timestamp"`
	Device    Device    `json:"device"`
	AlertInfo AlertInfo `json:"alert_info"`
}

// AlertInfo carries the alert header fields.
type AlertInfo struct {
	ID      string `json:"id"`
	Action  string `json:"action"` // "raise" | "dismiss"
	Title   string `json:"title"`
	Message string `json:"message"`
	OID     string `json:"oid"`
}

// Alert actions.
const (
	AlertRaise   = "raise"
	AlertDismiss = "dismiss"
)
