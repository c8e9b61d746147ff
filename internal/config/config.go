package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const EnvPrefix = "DEFENDER"

type Config struct {
	Addr           string        `mapstructure:"addr"`
	LogLevel       string        `mapstructure:"log_level"`
	LogDev         bool          `mapstructure:"log_dev"`
	DefaultLobby   string        `mapstructure:"default_lobby"`
	FillBots       bool          `mapstructure:"fill_bots"`
	StrictService  bool          `mapstructure:"strict_service"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ActionRate     float64       `mapstructure:"action_rate"`  // actions per second per connection
	ActionBurst    int           `mapstructure:"action_burst"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout"`
	OutboxSize     int           `mapstructure:"outbox_size"`
	Metrics        bool          `mapstructure:"metrics"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dev", false)
	v.SetDefault("default_lobby", "MAIN")
	v.SetDefault("fill_bots", false)
	v.SetDefault("strict_service", false)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("action_rate", 30.0)
	v.SetDefault("action_burst", 60)
	v.SetDefault("write_timeout", 3*time.Second)
	v.SetDefault("ping_interval", 30*time.Second)
	v.SetDefault("ping_timeout", 10*time.Second)
	v.SetDefault("outbox_size", 64)
	v.SetDefault("metrics", true)
}

// Load reads an optional .env file, then resolves every key from flags
// already bound to v, DEFENDER_* environment variables, the config file at
// path (if any) and the defaults, in that order of precedence.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedOrigins = trimList(cfg.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs error
	if strings.TrimSpace(c.Addr) == "" {
		errs = multierr.Append(errs, errors.New("addr must not be empty"))
	}
	if strings.TrimSpace(c.DefaultLobby) == "" {
		errs = multierr.Append(errs, errors.New("default_lobby must not be empty"))
	}
	if c.ActionRate <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("action_rate must be positive, got %v", c.ActionRate))
	}
	if c.ActionBurst <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("action_burst must be positive, got %d", c.ActionBurst))
	}
	if c.WriteTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("write_timeout must be positive, got %s", c.WriteTimeout))
	}
	if c.PingInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("ping_interval must be positive, got %s", c.PingInterval))
	}
	if c.PingTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("ping_timeout must be positive, got %s", c.PingTimeout))
	}
	if c.OutboxSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("outbox_size must be positive, got %d", c.OutboxSize))
	}
	if errs != nil {
		return fmt.Errorf("invalid config: %w", errs)
	}
	return nil
}

// trimList drops blanks left by comma-separated env values like "a, b,".
func trimList(in []string) []string {
	var out []string
	for _, part := range in {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
