package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
scan:
  max_apps: 5
  scan_dir: /data/downloads
advisor:
  enabled: true
  api_key: secret
  provider: claude
auth:
  api_keys: [alpha, beta]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scan.MaxApps)
	assert.Equal(t, "/data/downloads", cfg.Scan.ScanDir)
	assert.Equal(t, 15*time.Second, cfg.Scan.AdapterTimeout)
	assert.True(t, cfg.Advisor.Configured())
	assert.Equal(t, "claude", cfg.Advisor.Provider)
	assert.Equal(t, AdvisorGateSuspicious, cfg.Advisor.Gate)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Auth.APIKeys)
	assert.Equal(t, "0.0.0.0:8090", cfg.Server.HTTPAddr())
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.GRPCAddr())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "scan:\n  max_apps: 5\n")
	t.Setenv("APPGUARD_SCAN_MAX_APPS", "7")
	t.Setenv("APPGUARD_VIRUSTOTAL_ENABLED", "true")
	t.Setenv("APPGUARD_VIRUSTOTAL_API_KEY", "vt-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scan.MaxApps)
	assert.True(t, cfg.VirusTotal.Configured())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "no apps", body: "scan:\n  max_apps: 0\n", want: "scan.max_apps"},
		{name: "unknown gate", body: "advisor:\n  gate: sometimes\n", want: "advisor.gate"},
		{name: "unknown provider", body: "advisor:\n  provider: llama\n", want: "advisor.provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	t.Run("missing default file falls back to defaults", func(t *testing.T) {
		t.Setenv("APPGUARD_SQLITE_PATH", "/tmp/inventory.db")
		cfg, err := LoadOptional("")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/inventory.db", cfg.SQLite.Path)
		assert.Equal(t, 20, cfg.Scan.MaxApps)
	})

	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestAdapterConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  AdapterConfig
		want bool
	}{
		{name: "enabled with key", cfg: AdapterConfig{Enabled: true, APIKey: "k"}, want: true},
		{name: "disabled", cfg: AdapterConfig{APIKey: "k"}},
		{name: "blank key", cfg: AdapterConfig{Enabled: true, APIKey: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Configured())
		})
	}
}
