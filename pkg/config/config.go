// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables win over file values; both are
// optional, so a bare binary starts with sane defaults.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
)

// Config is the full service configuration.
type Config struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	TemplatesDir string `mapstructure:"templates_dir"`
	AssetsDir    string `mapstructure:"assets_dir"`
	DBPath       string `mapstructure:"db_path"`

	JanitorSchedule string        `mapstructure:"janitor_schedule"`
	RunRetention    time.Duration `mapstructure:"run_retention"`

	Renderer model.RendererConfig `mapstructure:"renderer"`
	SMTP     model.SMTPConfig     `mapstructure:"smtp"`
}

// Load reads .env (if present), then the optional config file, then the
// environment, and returns the merged configuration.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("[CONFIG] Loaded environment from .env")
	}

	v := viper.New()
	v.SetEnvPrefix("RENDERER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("templates_dir", "templates")
	v.SetDefault("assets_dir", "assets")
	v.SetDefault("db_path", "runs.db")
	v.SetDefault("janitor_schedule", "0 */30 * * * *")
	v.SetDefault("run_retention", 720*time.Hour)
	v.SetDefault("renderer.backend", "chromium")
	v.SetDefault("renderer.timeout_ms", 30000)
	v.SetDefault("renderer.settle_ms", 800)
	v.SetDefault("renderer.device_scale_factor", 1.0)
	v.SetDefault("renderer.headless", true)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		log.Printf("[CONFIG] Loaded %s", configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err == nil {
			log.Printf("[CONFIG] Loaded %s", v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.TemplatesDir == "" {
		return fmt.Errorf("templates_dir is required")
	}

	switch c.Renderer.Backend {
	case "", "chromium", "playwright":
	default:
		return fmt.Errorf("unknown renderer backend %q (expected chromium or playwright)", c.Renderer.Backend)
	}

	if c.Renderer.TimeoutMS < 0 {
		return fmt.Errorf("renderer.timeout_ms must not be negative")
	}
	if c.Renderer.SettleMS < 0 {
		return fmt.Errorf("renderer.settle_ms must not be negative")
	}

	if c.JanitorSchedule != "" {
		if _, err := cronexpr.Parse(c.JanitorSchedule); err != nil {
			return fmt.Errorf("invalid janitor_schedule %q: %w", c.JanitorSchedule, err)
		}
	}
	if c.RunRetention < 0 {
		return fmt.Errorf("run_retention must not be negative")
	}

	if c.SMTP.Host != "" && c.SMTP.Port == 0 {
		return fmt.Errorf("smtp.port is required when smtp.host is set")
	}
	return nil
}

// SMTPConfigured reports whether document delivery over email is available.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}
