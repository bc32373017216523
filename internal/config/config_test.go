package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTOPILOT_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "@every 15s", cfg.SweepSchedule)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3.0, cfg.BrokerRequestsPerSecond)
	assert.False(t, cfg.Backup.Enabled())
	assert.Contains(t, cfg.DatabasePath(), "autopilot.db")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTOPILOT_DATA_DIR", t.TempDir())
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SWEEP_SCHEDULE", "@every 1m")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "5")
	t.Setenv("BACKUP_BUCKET", "snapshots")
	t.Setenv("LOG_PRETTY", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "@every 1m", cfg.SweepSchedule)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.LogPretty)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, "auto", cfg.Backup.Region)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 8080, BrokerRequestsPerSecond: 1, HTTPTimeout: time.Second, SweepSchedule: "@every 10s"}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"negative rate", func(c *Config) { c.BrokerRequestsPerSecond = -1 }, true},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, true},
		{"empty schedule", func(c *Config) { c.SweepSchedule = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
