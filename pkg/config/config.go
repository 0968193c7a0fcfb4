package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "REDNOTE_"

// Config holds all configuration options for the rednote crawler
type Config struct {
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Crawl     CrawlConfig     `yaml:"crawl" json:"crawl"`
	Media     MediaConfig     `yaml:"media" json:"media"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	Selectors SelectorsConfig `yaml:"selectors" json:"selectors"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// BrowserConfig controls the Chrome instance
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	WindowWidth       int           `yaml:"window_width" json:"window_width"`
	WindowHeight      int           `yaml:"window_height" json:"window_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// SessionConfig controls cookie persistence and the login flow
type SessionConfig struct {
	// CookieStore is one of file, encrypted, keyring, redis
	CookieStore     string        `yaml:"cookie_store" json:"cookie_store"`
	CookiePath      string        `yaml:"cookie_path" json:"cookie_path"`
	Profile         string        `yaml:"profile" json:"profile"`
	LoginTimeout    time.Duration `yaml:"login_timeout" json:"login_timeout"`
	LoginAttempts   int           `yaml:"login_attempts" json:"login_attempts"`
	LoginRetryDelay time.Duration `yaml:"login_retry_delay" json:"login_retry_delay"`
	// LoginWaitMultiplier scales LoginTimeout for the wait on the scan confirmation
	LoginWaitMultiplier int    `yaml:"login_wait_multiplier" json:"login_wait_multiplier"`
	QRCodePath          string `yaml:"qr_code_path" json:"qr_code_path"`
}

// CrawlConfig controls feed pagination
type CrawlConfig struct {
	DefaultLimit   int           `yaml:"default_limit" json:"default_limit"`
	ElementTimeout time.Duration `yaml:"element_timeout" json:"element_timeout"`
	ScrollSteps    int           `yaml:"scroll_steps" json:"scroll_steps"`
	ScrollDelta    float64       `yaml:"scroll_delta" json:"scroll_delta"`
	ScrollPause    time.Duration `yaml:"scroll_pause" json:"scroll_pause"`
	// MaxIdleReloads ends a crawl after this many reloads without unseen items
	MaxIdleReloads int `yaml:"max_idle_reloads" json:"max_idle_reloads"`
	// HalfFeedPrefetch reloads once half of the current snapshot is consumed
	HalfFeedPrefetch bool `yaml:"half_feed_prefetch" json:"half_feed_prefetch"`
}

// MediaConfig controls image fetch-and-encode
type MediaConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig controls retries of navigation and media requests
type RetryConfig struct {
	Strategy     string        `yaml:"strategy" json:"strategy"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// RedisConfig is used by the redis cookie store
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// SelectorsConfig points at an optional selector override file
type SelectorsConfig struct {
	File    string `yaml:"file" json:"file"`
	Version string `yaml:"version" json:"version"`
}

// OutputConfig holds export settings
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	SaveImages    bool   `yaml:"save_images" json:"save_images"`
}

// MetricsConfig holds the prometheus listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			WindowWidth:       1280,
			WindowHeight:      900,
			NavigationTimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			CookieStore:         "file",
			CookiePath:          DefaultCookiePath(),
			Profile:             "default",
			LoginTimeout:        10 * time.Second,
			LoginAttempts:       3,
			LoginRetryDelay:     2 * time.Second,
			LoginWaitMultiplier: 6,
		},
		Crawl: CrawlConfig{
			DefaultLimit:     10,
			ElementTimeout:   30 * time.Second,
			ScrollSteps:      10,
			ScrollDelta:      120,
			ScrollPause:      time.Second,
			MaxIdleReloads:   30,
			HalfFeedPrefetch: true,
		},
		Media: MediaConfig{
			Timeout:           30 * time.Second,
			Concurrency:       3,
			RequestsPerMinute: 60,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			Strategy:     "exponential",
			MaxAttempts:  3,
			BaseDelay:    time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "rednote:cookies:",
		},
		Output: OutputConfig{
			BaseDirectory: "./notes",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     14,
		},
	}
}

// DefaultCookiePath is the per-user cookie jar location.
func DefaultCookiePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".mcp", "rednote", "cookies.json")
}

// AppDataDir returns the per-platform application data directory.
func AppDataDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "rednote")
		}
		return filepath.Join(home, "AppData", "Roaming", "rednote")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "rednote")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "rednote")
		}
		return filepath.Join(home, ".local", "share", "rednote")
	}
}

// LogDir is where rotated log files live.
func LogDir() string {
	return filepath.Join(AppDataDir(), "logs")
}

// LoadFromEnv loads configuration from REDNOTE_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(envPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	boolean("HEADLESS", &c.Browser.Headless)
	str("CHROME_PATH", &c.Browser.ExecPath)
	str("USER_AGENT", &c.Browser.UserAgent)
	str("COOKIE_STORE", &c.Session.CookieStore)
	str("COOKIE_PATH", &c.Session.CookiePath)
	str("PROFILE", &c.Session.Profile)
	duration("LOGIN_TIMEOUT", &c.Session.LoginTimeout)
	str("QR_CODE_PATH", &c.Session.QRCodePath)
	integer("DEFAULT_LIMIT", &c.Crawl.DefaultLimit)
	integer("MEDIA_CONCURRENCY", &c.Media.Concurrency)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	str("SELECTORS_FILE", &c.Selectors.File)
	str("OUTPUT_DIR", &c.Output.BaseDirectory)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		"rednote.yaml",
		"rednote.yml",
		filepath.Join(home, ".config", "rednote", "config.yaml"),
		filepath.Join(home, ".config", "rednote", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("browser navigation timeout must be positive"))
	}

	switch c.Session.CookieStore {
	case "file", "encrypted", "keyring", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cookie store %q", c.Session.CookieStore))
	}
	if c.Session.CookieStore != "keyring" && c.Session.CookieStore != "redis" && c.Session.CookiePath == "" {
		errs = append(errs, errors.New("cookie path is required"))
	}
	if c.Session.CookieStore == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis address is required for the redis cookie store"))
	}
	if c.Session.LoginTimeout <= 0 {
		errs = append(errs, errors.New("login timeout must be positive"))
	}
	if c.Session.LoginAttempts <= 0 {
		errs = append(errs, errors.New("login attempts must be positive"))
	}
	if c.Session.LoginWaitMultiplier <= 0 {
		errs = append(errs, errors.New("login wait multiplier must be positive"))
	}

	if c.Crawl.DefaultLimit <= 0 {
		errs = append(errs, errors.New("default limit must be positive"))
	}
	if c.Crawl.ElementTimeout <= 0 {
		errs = append(errs, errors.New("element timeout must be positive"))
	}
	if c.Crawl.ScrollSteps <= 0 {
		errs = append(errs, errors.New("scroll steps must be positive"))
	}
	if c.Crawl.MaxIdleReloads <= 0 {
		errs = append(errs, errors.New("max idle reloads must be positive"))
	}

	if c.Media.Concurrency <= 0 || c.Media.Concurrency > 10 {
		errs = append(errs, errors.New("media concurrency must be between 1 and 10"))
	}
	if c.Media.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("media requests per minute must be positive"))
	}

	switch c.Retry.Strategy {
	case "constant", "linear", "exponential":
	default:
		errs = append(errs, fmt.Errorf("unknown retry strategy %q", c.Retry.Strategy))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, errors.New("log format must be text or json"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["chrome-path"].(string); ok && v != "" {
		c.Browser.ExecPath = v
	}
	if v, ok := flags["cookie-store"].(string); ok && v != "" {
		c.Session.CookieStore = v
	}
	if v, ok := flags["cookie-path"].(string); ok && v != "" {
		c.Session.CookiePath = v
	}
	if v, ok := flags["profile"].(string); ok && v != "" {
		c.Session.Profile = v
	}
	if v, ok := flags["selectors"].(string); ok && v != "" {
		c.Selectors.File = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-format"].(string); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".rednote.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
