package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/ups_collector/pkg/upscollector/config"
)

func tmpDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// ── PathsFromEnv ─────────────────────────────────────────────────────────────

func TestPathsFromEnv_Defaults(t *testing.T) {
	t.Setenv("UPS_DEVICE_DEFINITIONS_DIRECTORY_PATH", "")
	t.Setenv("UPS_DEFAULTS_DIRECTORY_PATH", "")

	p := config.PathsFromEnv()
	assert.Equal(t, "/etc/ups_collector/devices", p.Devices)
	assert.Equal(t, "/etc/ups_collector/defaults", p.Defaults)
}

func TestPathsFromEnv_Override(t *testing.T) {
	t.Setenv("UPS_DEVICE_DEFINITIONS_DIRECTORY_PATH", "/custom/devices")
	p := config.PathsFromEnv()
	assert.Equal(t, "/custom/devices", p.Devices)
}

// ── Device loading ────────────────────────────────────────────────────────────

var deviceYAML = `
ups-dc1:
  host: 192.0.2.10
  version: 1
  community: public

ups-dc2:
  host: ups-dc2.example.com
  port: 1161
  poll_interval: 30
  retries: 0
  version: 3
  username: monitor
  auth_protocol: sha256
  auth_key: authpassword
  priv_protocol: aes
  priv_key: privpassword
`

func TestLoad_DevicesWithFallbacks(t *testing.T) {
	paths := config.Paths{
		Devices:  tmpDir(t, map[string]string{"ups.yml": deviceYAML}),
		Defaults: filepath.Join(t.TempDir(), "missing"),
	}

	cfg, err := config.Load(paths, nil)
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, []string{"ups-dc1", "ups-dc2"}, cfg.Names())

	v1 := cfg.Devices["ups-dc1"]
	assert.Equal(t, "ups-dc1", v1.Name)
	assert.Equal(t, 161, v1.Port)
	assert.Equal(t, 60, v1.PollInterval)
	assert.Equal(t, 10000, v1.Timeout)
	assert.Equal(t, 5, v1.Retries)
	assert.Equal(t, "1", v1.Version)
	assert.Equal(t, "public", v1.Community)
	assert.Equal(t, config.AuthNone, v1.V3.AuthProtocol)
	assert.Equal(t, config.PrivNone, v1.V3.PrivProtocol)

	v3 := cfg.Devices["ups-dc2"]
	assert.Equal(t, 1161, v3.Port)
	assert.Equal(t, 30, v3.PollInterval)
	assert.Equal(t, 0, v3.Retries, "explicit zero retries must be kept")
	assert.Equal(t, "3", v3.Version)
	assert.Equal(t, "monitor", v3.V3.Username)
	assert.Equal(t, config.AuthSHA256, v3.V3.AuthProtocol)
	assert.Equal(t, config.PrivAES, v3.V3.PrivProtocol)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	paths := config.Paths{
		Devices: tmpDir(t, map[string]string{"ups.yaml": `
ups-lab:
  host: 192.0.2.20
`}),
		Defaults: tmpDir(t, map[string]string{"default.yml": `
default:
  port: 10161
  poll_interval: 120
  timeout: 3000
  version: "1"
  community: private
`}),
	}

	cfg, err := config.Load(paths, nil)
	require.NoError(t, err)

	d := cfg.Devices["ups-lab"]
	assert.Equal(t, 10161, d.Port)
	assert.Equal(t, 120, d.PollInterval)
	assert.Equal(t, 3000, d.Timeout)
	assert.Equal(t, "private", d.Community)
	assert.Equal(t, 10161, cfg.DeviceDefault.Port)
}

func TestLoad_DefaultZeroRetries(t *testing.T) {
	paths := config.Paths{
		Devices: tmpDir(t, map[string]string{"ups.yaml": `
ups-lab:
  host: 192.0.2.20
  community: public
ups-edge:
  host: 192.0.2.21
  community: public
  retries: 2
`}),
		Defaults: tmpDir(t, map[string]string{
			"a.yml": "default:\n  retries: 0\n",
			"b.yml": "default:\n  retries: 3\n",
		}),
	}

	cfg, err := config.Load(paths, nil)
	require.NoError(t, err)

	require.NotNil(t, cfg.DeviceDefault.Retries)
	assert.Equal(t, 0, *cfg.DeviceDefault.Retries, "earlier defaults file wins, zero included")
	assert.Equal(t, 0, cfg.Devices["ups-lab"].Retries)
	assert.Equal(t, 2, cfg.Devices["ups-edge"].Retries)
}

func TestLoad_MalformedFileSkipped(t *testing.T) {
	paths := config.Paths{
		Devices: tmpDir(t, map[string]string{
			"a.yml": deviceYAML,
			"b.yml": "ups-bad: [this is: not valid",
		}),
	}

	cfg, err := config.Load(paths, nil)
	require.NoError(t, err)
	assert.Len(t, cfg.Devices, 2)
}

func TestLoad_ValidationErrorsAccumulated(t *testing.T) {
	paths := config.Paths{
		Devices: tmpDir(t, map[string]string{"bad.yml": `
no-host:
  community: public
no-community:
  host: 192.0.2.30
bad-auth:
  host: 192.0.2.31
  version: 3
  username: monitor
  auth_protocol: md5
  auth_key: k
bad-version:
  host: 192.0.2.32
  version: 2c
  community: public
`}),
	}

	_, err := config.Load(paths, nil)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `device "no-host"`)
	assert.Contains(t, msg, "host is required")
	assert.Contains(t, msg, `device "no-community"`)
	assert.Contains(t, msg, "community is required")
	assert.Contains(t, msg, `device "bad-auth"`)
	assert.Contains(t, msg, "auth_protocol must be one of")
	assert.Contains(t, msg, `device "bad-version"`)
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidateDevice(t *testing.T) {
	base := func() config.DeviceConfig {
		return config.DeviceConfig{
			Name:         "ups",
			Host:         "192.0.2.10",
			Port:         161,
			PollInterval: 60,
			Timeout:      10000,
			Retries:      5,
			Version:      "3",
			V3: config.V3Credentials{
				Username:     "monitor",
				AuthProtocol: config.AuthSHA,
				AuthKey:      "authpassword",
				PrivProtocol: config.PrivAES256,
				PrivKey:      "privpassword",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.DeviceConfig)
		wantErr string
	}{
		{"valid v3", func(*config.DeviceConfig) {}, ""},
		{"missing auth key", func(d *config.DeviceConfig) { d.V3.AuthKey = "" }, "auth_key is required"},
		{"missing priv key", func(d *config.DeviceConfig) { d.V3.PrivKey = "" }, "priv_key is required"},
		{"priv without auth", func(d *config.DeviceConfig) {
			d.V3.AuthProtocol = config.AuthNone
			d.V3.AuthKey = ""
		}, "requires an auth protocol"},
		{"no auth no priv", func(d *config.DeviceConfig) {
			d.V3.AuthProtocol = config.AuthNone
			d.V3.PrivProtocol = config.PrivNone
		}, ""},
		{"port out of range", func(d *config.DeviceConfig) { d.Port = 70000 }, "port must be at most 65535"},
		{"missing username", func(d *config.DeviceConfig) { d.V3.Username = "" }, "username is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := base()
			tc.mutate(&d)
			err := config.ValidateDevice(&d)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
