package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Scraping ScrapingConfig `yaml:"scraping"`
	Database DatabaseConfig `yaml:"database"`
}

type AppConfig struct {
	Name          string  `yaml:"name"`
	Env           string  `yaml:"env"`
	Debug         bool    `yaml:"debug"`
	Port          int     `yaml:"port"`
	LogLevel      string  `yaml:"log_level"`
	CacheTTLHours float64 `yaml:"cache_ttl_hours"`
}

type ScrapingConfig struct {
	Remapp RemappConfig `yaml:"remapp"`
}

type RemappConfig struct {
	ListURL        string            `yaml:"list_url"`
	DetailURL      string            `yaml:"detail_url"`
	LoginURL       string            `yaml:"login_url"`
	UserAgent      string            `yaml:"user_agent"`
	TimeoutSeconds float64           `yaml:"timeout_seconds"`
	OutputDir      string            `yaml:"output_dir"`
	EnvPath        string            `yaml:"env_path"`
	RateLimit      RateLimitConfig   `yaml:"rate_limit"`
	RetryPolicy    RetryPolicyConfig `yaml:"retry_policy"`
	PageScanLimit  int               `yaml:"page_scan_limit"`
	LogEvery       int               `yaml:"log_every"`

	UseLocalList    bool `yaml:"use_local_list"`
	IncrementalMode bool `yaml:"incremental_mode"`
	RehydrateOnly   bool `yaml:"rehydrate_only"`

	// Credentials only ever come from the environment or the .env file.
	Token    string `yaml:"-"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

type RateLimitConfig struct {
	// DetailSleepSeconds is the pause after each detail request.
	DetailSleepSeconds float64 `yaml:"detail_sleep_seconds"`
}

type RetryPolicyConfig struct {
	MaxRetries     int     `yaml:"max_retries"`
	BackoffSeconds float64 `yaml:"backoff_seconds"`
}

type DatabaseConfig struct {
	// Path of the SQLite mirror; empty disables it.
	Path string `yaml:"path"`
}

// DefaultConfigPath is read when OFFPLAN_CONFIG_PATH is not set and the file exists.
var DefaultConfigPath = filepath.Join("configs", "app.yaml")

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:          "offplan-sys",
			Env:           "development",
			Port:          3000,
			LogLevel:      "info",
			CacheTTLHours: 24,
		},
		Scraping: ScrapingConfig{
			Remapp: RemappConfig{
				ListURL:         "https://my.remapp.ae/api/project/public/list",
				DetailURL:       "https://my.remapp.ae/api/project/details",
				LoginURL:        "https://my.remapp.ae/api/login",
				UserAgent:       "Mozilla/5.0",
				TimeoutSeconds:  30,
				OutputDir:       "data",
				EnvPath:         ".env",
				RateLimit:       RateLimitConfig{DetailSleepSeconds: 0.5},
				RetryPolicy:     RetryPolicyConfig{MaxRetries: 5, BackoffSeconds: 5},
				PageScanLimit:   10,
				LogEvery:        50,
				UseLocalList:    true,
				IncrementalMode: true,
			},
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// the .env file and the process environment, in increasing precedence.
// Values already in the environment are not overridden by .env.
func LoadConfig() (*Config, error) {
	cfg := Default()

	path := os.Getenv("OFFPLAN_CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			path = DefaultConfigPath
		}
	}
	if path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if envPath := os.Getenv("REMAPP_ENV_PATH"); envPath != "" {
		cfg.Scraping.Remapp.EnvPath = envPath
	}
	if err := godotenv.Load(cfg.Scraping.Remapp.EnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", cfg.Scraping.Remapp.EnvPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	r := &cfg.Scraping.Remapp

	r.Token = os.Getenv("REMAPP_BEARER_TOKEN")
	r.Username = firstNonEmpty(os.Getenv("REMAPP_USERNAME"), os.Getenv("REMAPP_EMAIL"))
	r.Password = os.Getenv("REMAPP_PASSWORD")

	if v := os.Getenv("REMAPP_OUTPUT_DIR"); v != "" {
		r.OutputDir = v
	}
	if v := os.Getenv("OFFPLAN_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("OFFPLAN_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}

	if v, ok := os.LookupEnv("REMAPP_USE_LOCAL_LIST"); ok {
		r.UseLocalList = truthy(v)
	}
	if v, ok := os.LookupEnv("REMAPP_INCREMENTAL_MODE"); ok {
		r.IncrementalMode = truthy(v)
	}
	if v, ok := os.LookupEnv("REMAPP_REHYDRATE_ONLY"); ok {
		r.RehydrateOnly = truthy(v)
	}

	if v := os.Getenv("REMAPP_DETAIL_SLEEP_SECONDS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid REMAPP_DETAIL_SLEEP_SECONDS: %w", err)
		}
		r.RateLimit.DetailSleepSeconds = f
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.App.Port = port
	}
	return nil
}

// Validate rejects settings the scraper cannot run with.
func (c *Config) Validate() error {
	r := c.Scraping.Remapp
	switch {
	case r.OutputDir == "":
		return errors.New("config: scraping.remapp.output_dir is empty")
	case r.RetryPolicy.MaxRetries < 1:
		return errors.New("config: scraping.remapp.retry_policy.max_retries must be at least 1")
	case r.RetryPolicy.BackoffSeconds < 0 || r.RateLimit.DetailSleepSeconds < 0:
		return errors.New("config: sleep and backoff must not be negative")
	case r.PageScanLimit < 1:
		return errors.New("config: scraping.remapp.page_scan_limit must be at least 1")
	}
	return nil
}

// DetailSleep is the pacing pause after each detail request.
func (r RemappConfig) DetailSleep() time.Duration {
	return seconds(r.RateLimit.DetailSleepSeconds)
}

// Backoff is the first rate-limit wait.
func (r RemappConfig) Backoff() time.Duration {
	return seconds(r.RetryPolicy.BackoffSeconds)
}

// Timeout is the per-request HTTP timeout.
func (r RemappConfig) Timeout() time.Duration {
	return seconds(r.TimeoutSeconds)
}

// CacheTTL is the age after which served data is flagged stale.
func (a AppConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLHours * float64(time.Hour))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
