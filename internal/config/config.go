// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig holds the model endpoint and retry configuration.
type LLMConfig struct {
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	SiteURL        string        `yaml:"site_url"`  // sent as HTTP-Referer
	SiteName       string        `yaml:"site_name"` // sent as X-Title
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"` // total attempts per call
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
	Strategy       string        `yaml:"strategy"` // "plan" (default) or "sql"
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
}

// DBConfig holds the Postgres connection configuration.
type DBConfig struct {
	URL               string        `yaml:"url"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Name              string        `yaml:"name"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	StatementTimeout  time.Duration `yaml:"statement_timeout"`
	MaxConns          int32         `yaml:"max_conns"`
	ConnectRetries    int           `yaml:"connect_retries"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay"`
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from the
// individual POSTGRES_* settings.
func (d *DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// Config holds the configuration for the answer service, its HTTP API and CLI.
type Config struct {
	LLM LLMConfig `yaml:"llm"`
	DB  DBConfig  `yaml:"db"`

	VideosJSONPath string `yaml:"videos_json_path"` // dataset imported by "vidstats import"
	AuditDBPath    string `yaml:"audit_db_path"`    // SQLite answer log, empty disables
	ListenAddr     string `yaml:"listen_addr"`      // HTTP listen address (default ":8080")
	LogLevel       string `yaml:"log_level"`        // debug, info, warn, error (default "info")
	Env            string `yaml:"env"`              // "development" (default) or "production"
	MaxInflight    int64  `yaml:"max_inflight"`     // concurrent questions, 0 means unbounded

	// Rate limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`   // sustained requests per second (default 20)
	RateLimitBurst int     `yaml:"rate_limit_burst"` // burst capacity (default 40)

	// CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"` // default: ["*"]

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:          "qwen/qwen3-235b-a22b-thinking-2507",
			BaseURL:        "https://openrouter.ai/api/v1",
			Timeout:        90 * time.Second,
			MaxRetries:     4,
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  8 * time.Second,
			Strategy:       "plan",
		},
		DB: DBConfig{
			Host:              "localhost",
			Port:              5432,
			Name:              "videos",
			User:              "postgres",
			StatementTimeout:  20 * time.Second,
			MaxConns:          10,
			ConnectRetries:    30,
			ConnectRetryDelay: 2 * time.Second,
		},
		VideosJSONPath:     "videos.json",
		ListenAddr:         ":8080",
		LogLevel:           "info",
		MaxInflight:        16,
		RateLimitRPS:       20,
		RateLimitBurst:     40,
		CORSAllowedOrigins: []string{"*"},
	}
}

// LoadFromEnv loads configuration: defaults, then the optional YAML file
// named by CONFIG_FILE, then environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	e := envReader{cfg: cfg}

	// Model
	e.str("OPENROUTER_API_KEY", &cfg.LLM.APIKey)
	e.str("OPENROUTER_MODEL", &cfg.LLM.Model)
	e.str("OPENROUTER_SITE_URL", &cfg.LLM.SiteURL)
	e.str("OPENROUTER_SITE_NAME", &cfg.LLM.SiteName)
	e.str("LLM_BASE_URL", &cfg.LLM.BaseURL)
	e.seconds("LLM_TIMEOUT_SECONDS", &cfg.LLM.Timeout)
	e.integer("LLM_MAX_RETRIES", &cfg.LLM.MaxRetries)
	e.seconds("LLM_RETRY_BASE_DELAY_SECONDS", &cfg.LLM.RetryBaseDelay)
	e.seconds("LLM_RETRY_MAX_DELAY_SECONDS", &cfg.LLM.RetryMaxDelay)
	e.str("LLM_STRATEGY", &cfg.LLM.Strategy)
	e.float("LLM_RATE_LIMIT_RPS", &cfg.LLM.RateLimitRPS)

	// Database
	e.str("DATABASE_URL", &cfg.DB.URL)
	e.str("POSTGRES_HOST", &cfg.DB.Host)
	e.integer("POSTGRES_PORT", &cfg.DB.Port)
	e.str("POSTGRES_DB", &cfg.DB.Name)
	e.str("POSTGRES_USER", &cfg.DB.User)
	e.str("POSTGRES_PASSWORD", &cfg.DB.Password)
	e.duration("DB_STATEMENT_TIMEOUT", &cfg.DB.StatementTimeout)
	var maxConns int
	if e.integer("DB_MAX_CONNS", &maxConns) {
		cfg.DB.MaxConns = int32(maxConns) //nolint:gosec // bounded by Validate
	}
	e.integer("DB_CONNECT_RETRIES", &cfg.DB.ConnectRetries)
	e.seconds("DB_CONNECT_RETRY_DELAY_SECONDS", &cfg.DB.ConnectRetryDelay)

	// Service
	e.str("VIDEOS_JSON_PATH", &cfg.VideosJSONPath)
	e.str("AUDIT_DB_PATH", &cfg.AuditDBPath)
	e.str("LISTEN_ADDR", &cfg.ListenAddr)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("ENV", &cfg.Env)
	var inflight int
	if e.integer("MAX_INFLIGHT", &inflight) {
		cfg.MaxInflight = int64(inflight)
	}

	// Rate limiting
	e.float("RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	e.integer("RATE_LIMIT_BURST", &cfg.RateLimitBurst)

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	if cfg.LLM.APIKey == "" {
		cfg.Warnings = append(cfg.Warnings, "OPENROUTER_API_KEY is not set; only heuristically recognized questions can be answered")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays values from a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("LLM_MAX_RETRIES must be >= 1, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.RetryBaseDelay < 0 || c.LLM.RetryMaxDelay < c.LLM.RetryBaseDelay {
		return fmt.Errorf("retry delays must satisfy 0 <= base (%s) <= max (%s)", c.LLM.RetryBaseDelay, c.LLM.RetryMaxDelay)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be > 0")
	}
	switch strings.ToLower(c.LLM.Strategy) {
	case "", "plan", "sql":
	default:
		return fmt.Errorf("LLM_STRATEGY must be plan or sql, got %q", c.LLM.Strategy)
	}
	if c.DB.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1, got %d", c.DB.MaxConns)
	}
	if c.DB.ConnectRetries < 1 {
		return fmt.Errorf("DB_CONNECT_RETRIES must be >= 1, got %d", c.DB.ConnectRetries)
	}
	if c.MaxInflight < 0 {
		return fmt.Errorf("MAX_INFLIGHT must be >= 0, got %d", c.MaxInflight)
	}

	// Production mode: insecure defaults are fatal errors.
	if c.IsProduction() {
		if len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
			return fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}
	return nil
}

// envReader applies set environment variables and records a warning for
// each value that does not parse.
type envReader struct {
	cfg *Config
}

func (e envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e envReader) warn(key, value string) {
	e.cfg.Warnings = append(e.cfg.Warnings, fmt.Sprintf("ignoring invalid %s=%q", key, value))
}

func (e envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e envReader) integer(key string, dst *int) bool {
	v, ok := e.lookup(key)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.warn(key, v)
		return false
	}
	*dst = n
	return true
}

func (e envReader) float(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.warn(key, v)
		return
	}
	*dst = f
}

// seconds reads a possibly fractional number of seconds.
func (e envReader) seconds(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		e.warn(key, v)
		return
	}
	*dst = time.Duration(f * float64(time.Second))
}

// duration reads a Go duration ("20s") or a bare number of seconds.
func (e envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
		*dst = time.Duration(f * float64(time.Second))
		return
	}
	e.warn(key, v)
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
