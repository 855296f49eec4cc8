package config

import (
	"fmt"
	"strings"
)

// Protocol option names accepted in device files.
const (
	AuthNone   = "no auth"
	AuthSHA    = "sha"
	AuthSHA256 = "sha256"
	AuthSHA384 = "sha384"
	AuthSHA512 = "sha512"

	PrivNone   = "no priv"
	PrivAES    = "aes"
	PrivAES192 = "aes192"
	PrivAES256 = "aes256"
)

// DeviceConfig is the fully-resolved configuration for a single UPS.
// Optional fields that are zero-valued in the YAML are filled with hard-coded
// fallbacks during resolution.
type DeviceConfig struct {
	// Name is the device key from the YAML file. It identifies the device in
	// the registry, in logs and in every emitted record.
	Name string `validate:"required"`

	// Host is the management address of the UPS network card.
	Host string `validate:"required,hostname_rfc1123|ip"`

	// Port is the UDP port for SNMP requests (default 161).
	Port int `validate:"min=1,max=65535"`

	// PollInterval is the polling interval in seconds (default 60).
	PollInterval int `validate:"min=1"`

	// Timeout is the per-request timeout in milliseconds (default 10000).
	Timeout int `validate:"min=1"`

	// Retries is the number of transport retries on timeout (default 5).
	Retries int `validate:"min=0"`

	// Version is the SNMP version: "1" or "3".
	Version string `validate:"oneof=1 3"`

	// Community is the v1 community string.
	Community string

	// V3 holds the USM credentials (v3 only).
	V3 V3Credentials
}

// V3Credentials holds one set of SNMPv3 security parameters.
type V3Credentials struct {
	Username     string `yaml:"username"`
	AuthProtocol string `yaml:"auth_protocol" validate:"oneof='no auth' sha sha256 sha384 sha512"`
	AuthKey      string `yaml:"auth_key"`
	PrivProtocol string `yaml:"priv_protocol" validate:"oneof='no priv' aes aes192 aes256"`
	PrivKey      string `yaml:"priv_key"`
}

// HasAuth reports whether an authentication protocol is selected.
func (c V3Credentials) HasAuth() bool { return c.AuthProtocol != "" && c.AuthProtocol != AuthNone }

// HasPriv reports whether a privacy protocol is selected.
func (c V3Credentials) HasPriv() bool { return c.PrivProtocol != "" && c.PrivProtocol != PrivNone }

// Validate implements the cross-field rules the struct tags cannot express.
func (d *DeviceConfig) Validate() error {
	switch d.Version {
	case "1":
		if d.Community == "" {
			return fmt.Errorf("community is required for SNMP v1")
		}
	case "3":
		if d.V3.Username == "" {
			return fmt.Errorf("username is required for SNMP v3")
		}
		if d.V3.HasAuth() && d.V3.AuthKey == "" {
			return fmt.Errorf("auth_key is required for auth protocol %q", d.V3.AuthProtocol)
		}
		if d.V3.HasPriv() && !d.V3.HasAuth() {
			return fmt.Errorf("priv protocol %q requires an auth protocol", d.V3.PrivProtocol)
		}
		if d.V3.HasPriv() && d.V3.PrivKey == "" {
			return fmt.Errorf("priv_key is required for priv protocol %q", d.V3.PrivProtocol)
		}
	}
	return nil
}

// DeviceDefaults holds the global defaults merged into every device entry.
type DeviceDefaults struct {
	Port         int
	PollInterval int
	Timeout      int
	Retries      *int // nil = not set; 0 is a valid value
	Version      string
	Community    string
}

// rawDeviceEntry is the intermediate YAML-decoded form of a single device.
// It maps 1-to-1 with the device YAML schema.
type rawDeviceEntry struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	PollInterval int    `yaml:"poll_interval"`
	Timeout      int    `yaml:"timeout"`
	Retries      *int   `yaml:"retries"`
	Version      string `yaml:"version"`
	Community    string `yaml:"community"`
	Username     string `yaml:"username"`
	AuthProtocol string `yaml:"auth_protocol"`
	AuthKey      string `yaml:"auth_key"`
	PrivProtocol string `yaml:"priv_protocol"`
	PrivKey      string `yaml:"priv_key"`
}

// normaliseProtocol lower-cases a protocol name and maps the empty and
// underscore spellings onto the canonical "no auth" / "no priv".
func normaliseProtocol(s, none string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", strings.ReplaceAll(none, " ", ""), strings.ReplaceAll(none, " ", "_"):
		return none
	}
	return s
}
