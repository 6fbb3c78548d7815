package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when neither --config nor FINSVIEW_CONFIG is set.
const DefaultPath = "config/finsview.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration shared by the TUI, the CLI and the
// dev server.
type Config struct {
	API     API     `yaml:"api"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
	Tracing Tracing `yaml:"tracing"`
	Poller  Poller  `yaml:"poller"`
	UI      UI      `yaml:"ui"`
	Server  Server  `yaml:"server"`
}

// API locates the backend.
type API struct {
	BaseURL         string        `yaml:"base_url"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Timeout         time.Duration `yaml:"timeout"`
	Retries         int           `yaml:"retries"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
}

// Storage holds paths for client-side persistence.
type Storage struct {
	DataDir       string        `yaml:"data_dir"`
	SQLitePath    string        `yaml:"sqlite_path"`
	PriceCacheTTL time.Duration `yaml:"price_cache_ttl"`
}

// Logging configures the application logger. File is only used by the TUI;
// empty means the dated default under /tmp.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Tracing toggles OpenTelemetry span export.
type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

// Poller controls analysis status polling.
type Poller struct {
	Interval time.Duration `yaml:"interval"`
}

// UI holds terminal UI settings.
type UI struct {
	PageSize int `yaml:"page_size"`
}

// Server holds the dev server listeners.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:         "http://localhost:8080/api",
			Timeout:         30 * time.Second,
			Retries:         3,
			RateLimitPerMin: 600,
		},
		Storage: Storage{
			DataDir:       "data",
			SQLitePath:    "data/finsview.db",
			PriceCacheTTL: 12 * time.Hour,
		},
		Logging: Logging{Level: "info", Format: "json"},
		Poller:  Poller{Interval: 2 * time.Second},
		UI:      UI{PageSize: 100},
		Server:  Server{Host: "127.0.0.1", Port: 8080, GRPCPort: 9090},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// ResolvePath picks the config path: flag value, then FINSVIEW_CONFIG, then
// DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("FINSVIEW_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at path on top of Default(), loads
// a .env file from the working directory if present, and then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FINSVIEW_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("FINSVIEW_API_USER"); v != "" {
		cfg.API.Username = v
	}
	if v := os.Getenv("FINSVIEW_API_PASSWORD"); v != "" {
		cfg.API.Password = v
	}

	if v := os.Getenv("FINSVIEW_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOG_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
}

// Validate rejects settings the clients cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.UI.PageSize <= 0 {
		return fmt.Errorf("ui.page_size must be positive, got %d", c.UI.PageSize)
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive, got %s", c.Poller.Interval)
	}
	if c.API.Retries < 1 {
		c.API.Retries = 1
	}
	return nil
}
