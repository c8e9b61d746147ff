package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "MAIN", cfg.DefaultLobby)
	assert.False(t, cfg.FillBots)
	assert.False(t, cfg.StrictService)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, 30.0, cfg.ActionRate)
	assert.Equal(t, 60, cfg.ActionBurst)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.PingTimeout)
	assert.Equal(t, 64, cfg.OutboxSize)
	assert.True(t, cfg.Metrics)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEFENDER_ADDR", ":9999")
	t.Setenv("DEFENDER_FILL_BOTS", "true")
	t.Setenv("DEFENDER_WRITE_TIMEOUT", "750ms")
	t.Setenv("DEFENDER_ALLOWED_ORIGINS", "localhost:5173, example.com,")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.True(t, cfg.FillBots)
	assert.Equal(t, 750*time.Millisecond, cfg.WriteTimeout)
	assert.Equal(t, []string{"localhost:5173", "example.com"}, cfg.AllowedOrigins)
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defender.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default_lobby":"LAN","action_burst":5,"log_level":"debug"}`), 0o600))
	t.Setenv("DEFENDER_LOG_LEVEL", "warn")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "LAN", cfg.DefaultLobby)
	assert.Equal(t, 5, cfg.ActionBurst)
	assert.Equal(t, "warn", cfg.LogLevel, "env beats the file")
}

func TestLoad_FlagsWin(t *testing.T) {
	t.Setenv("DEFENDER_ADDR", ":1111")
	v := viper.New()
	v.Set("addr", ":2222")

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, ":2222", cfg.Addr)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load(viper.New(), "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Addr = " " }, "addr"},
		{"empty default lobby", func(c *Config) { c.DefaultLobby = "" }, "default_lobby"},
		{"zero rate", func(c *Config) { c.ActionRate = 0 }, "action_rate"},
		{"negative burst", func(c *Config) { c.ActionBurst = -1 }, "action_burst"},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }, "write_timeout"},
		{"zero ping interval", func(c *Config) { c.PingInterval = 0 }, "ping_interval"},
		{"negative ping timeout", func(c *Config) { c.PingTimeout = -time.Second }, "ping_timeout"},
		{"zero outbox", func(c *Config) { c.OutboxSize = 0 }, "outbox_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("every problem is reported", func(t *testing.T) {
		c := base
		c.Addr = ""
		c.OutboxSize = 0
		err := c.Validate()
		require.Error(t, err)
		assert.Len(t, multierr.Errors(errors.Unwrap(err)), 2)
	})

	t.Run("bad env duration fails load", func(t *testing.T) {
		t.Setenv("DEFENDER_PING_INTERVAL", "soon")
		_, err := Load(viper.New(), "")
		require.Error(t, err)
	})
}
