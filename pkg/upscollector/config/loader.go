// Package config provides YAML configuration loading for the UPS collector.
//
// It reads two directory trees (driven by environment variables) and produces
// a LoadedConfig value that is used by the rest of the application.
//
//	UPS_DEVICE_DEFINITIONS_DIRECTORY_PATH → Devices map
//	UPS_DEFAULTS_DIRECTORY_PATH           → DeviceDefault
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Fallbacks applied when neither the device entry nor the defaults set a field.
const (
	DefaultPort         = 161
	DefaultPollInterval = 60
	DefaultTimeoutMs    = 10_000
	DefaultRetries      = 5
	DefaultVersion      = "1"
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the directory locations for every configuration tree.
type Paths struct {
	Devices  string // UPS_DEVICE_DEFINITIONS_DIRECTORY_PATH
	Defaults string // UPS_DEFAULTS_DIRECTORY_PATH
}

// PathsFromEnv reads each path from its environment variable, falling back to
// the documented default when the variable is unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Devices:  envOr("UPS_DEVICE_DEFINITIONS_DIRECTORY_PATH", "/etc/ups_collector/devices"),
		Defaults: envOr("UPS_DEFAULTS_DIRECTORY_PATH", "/etc/ups_collector/defaults"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ─────────────────────────────────────────────────────────────────────────────
// LoadedConfig
// ─────────────────────────────────────────────────────────────────────────────

// LoadedConfig is the fully parsed representation of all configuration trees.
type LoadedConfig struct {
	// Devices maps device name → resolved and validated DeviceConfig.
	Devices map[string]DeviceConfig

	// DeviceDefault is the merged global device default.
	DeviceDefault DeviceDefaults
}

// Names returns the device names in sorted order.
func (c *LoadedConfig) Names() []string {
	names := make([]string, 0, len(c.Devices))
	for n := range c.Devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

var validate = validator.New()

// Load reads all configuration directories specified by paths and returns a
// fully resolved LoadedConfig. Directory and validation errors are
// accumulated and returned together so that operators see all problems at
// once.
//
// If a directory does not exist, that section is skipped silently.
// Malformed YAML files are logged and skipped.
func Load(paths Paths, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	var errs *multierror.Error

	// 1. Device defaults ──────────────────────────────────────────────────
	defaults, err := loadDeviceDefaults(paths.Defaults, logger)
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	// 2. Devices ──────────────────────────────────────────────────────────
	devices, err := loadDevices(paths.Devices, defaults, logger)
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	// 3. Validation ───────────────────────────────────────────────────────
	names := make([]string, 0, len(devices))
	for n := range devices {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		dev := devices[name]
		if err := ValidateDevice(&dev); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("device %q: %w", name, err))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &LoadedConfig{
		Devices:       devices,
		DeviceDefault: defaults,
	}, nil
}

// ValidateDevice checks the struct tags of cfg and then its cross-field
// rules. Field errors are reported with their YAML-style names.
func ValidateDevice(cfg *DeviceConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		var merr *multierror.Error
		for _, e := range verrs {
			merr = multierror.Append(merr, fmt.Errorf("%s", formatFieldError(e)))
		}
		return merr.ErrorOrNil()
	}
	return cfg.Validate()
}

func formatFieldError(e validator.FieldError) string {
	field := toSnakeCase(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %q)", field, e.Param(), fmt.Sprint(e.Value()))
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + 'a' - 'A')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Device defaults
// ─────────────────────────────────────────────────────────────────────────────

type rawDefaults struct {
	Default rawDeviceEntry `yaml:"default"`
}

func loadDeviceDefaults(dir string, logger *slog.Logger) (DeviceDefaults, error) {
	var zero DeviceDefaults
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, fmt.Errorf("list defaults dir %q: %w", dir, err)
	}

	var merged DeviceDefaults
	for _, path := range files {
		var raw rawDefaults
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed defaults file", "file", path, "error", err.Error())
			continue
		}
		merged = mergeDefaults(merged, raw.Default)
		logger.Debug("config: loaded device defaults", "file", path)
	}
	return merged, nil
}

// mergeDefaults fills zero fields in dst with values from src. Earlier files
// win over later ones.
func mergeDefaults(dst DeviceDefaults, src rawDeviceEntry) DeviceDefaults {
	if dst.Port == 0 && src.Port != 0 {
		dst.Port = src.Port
	}
	if dst.PollInterval == 0 && src.PollInterval != 0 {
		dst.PollInterval = src.PollInterval
	}
	if dst.Timeout == 0 && src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if dst.Retries == nil && src.Retries != nil {
		r := *src.Retries
		dst.Retries = &r
	}
	if dst.Version == "" && src.Version != "" {
		dst.Version = src.Version
	}
	if dst.Community == "" && src.Community != "" {
		dst.Community = src.Community
	}
	return dst
}

// ─────────────────────────────────────────────────────────────────────────────
// Devices
// ─────────────────────────────────────────────────────────────────────────────

func loadDevices(dir string, defaults DeviceDefaults, logger *slog.Logger) (map[string]DeviceConfig, error) {
	result := make(map[string]DeviceConfig)
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("list devices dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw map[string]rawDeviceEntry
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed device file", "file", path, "error", err.Error())
			continue
		}
		for name, entry := range raw {
			if _, dup := result[name]; dup {
				logger.Warn("config: device redefined, later file wins", "device", name, "file", path)
			}
			result[name] = resolveDevice(name, entry, defaults)
		}
		logger.Debug("config: loaded device file", "file", path, "count", len(raw))
	}
	return result, nil
}

// resolveDevice merges a raw device entry with defaults, producing a
// fully-resolved DeviceConfig.
func resolveDevice(name string, e rawDeviceEntry, d DeviceDefaults) DeviceConfig {
	port := firstNonZero(e.Port, d.Port, DefaultPort)
	interval := firstNonZero(e.PollInterval, d.PollInterval, DefaultPollInterval)
	timeout := firstNonZero(e.Timeout, d.Timeout, DefaultTimeoutMs)

	retries := DefaultRetries
	if d.Retries != nil {
		retries = *d.Retries
	}
	if e.Retries != nil {
		retries = *e.Retries
	}

	version := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e.Version)), "v")
	if version == "" {
		version = strings.TrimPrefix(strings.ToLower(d.Version), "v")
	}
	if version == "" {
		version = DefaultVersion
	}

	community := e.Community
	if community == "" {
		community = d.Community
	}

	return DeviceConfig{
		Name:         name,
		Host:         strings.TrimSpace(e.Host),
		Port:         port,
		PollInterval: interval,
		Timeout:      timeout,
		Retries:      retries,
		Version:      version,
		Community:    community,
		V3: V3Credentials{
			Username:     e.Username,
			AuthProtocol: normaliseProtocol(e.AuthProtocol, AuthNone),
			AuthKey:      e.AuthKey,
			PrivProtocol: normaliseProtocol(e.PrivProtocol, PrivNone),
			PrivKey:      e.PrivKey,
		},
	}
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// decodeFile opens path and unmarshals the YAML content into out.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false)
	return dec.Decode(out)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
