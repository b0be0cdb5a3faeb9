package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadSection(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVar is the env binding declared by a field's tags.
type envVar struct {
	name     string
	alt      string
	def      string
	required bool
}

func envVarOf(f reflect.StructField) (envVar, bool) {
	v := envVar{
		name:     f.Tag.Get("env"),
		alt:      f.Tag.Get("envAlt"),
		def:      f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}
	return v, v.name != ""
}

// value returns the primary variable, then the alternate, then the default.
func (e envVar) value() (string, error) {
	if v := os.Getenv(e.name); v != "" {
		return v, nil
	}
	if e.alt != "" {
		if v := os.Getenv(e.alt); v != "" {
			return v, nil
		}
	}
	if e.required {
		return "", fmt.Errorf("required environment variable %s is not set", e.name)
	}
	return e.def, nil
}

// parsers convert an env value for each field type Config uses.
var parsers = map[reflect.Type]func(string) (any, error){
	reflect.TypeOf(""):               func(s string) (any, error) { return s, nil },
	reflect.TypeOf(0):                func(s string) (any, error) { return strconv.Atoi(s) },
	reflect.TypeOf(false):            func(s string) (any, error) { return strconv.ParseBool(s) },
	reflect.TypeOf(time.Duration(0)): func(s string) (any, error) { return time.ParseDuration(s) },
	reflect.TypeOf(int64(0)):         func(s string) (any, error) { return parseByteSize(s) },
	reflect.TypeOf([]string(nil)):    func(s string) (any, error) { return splitList(s), nil },
}

// loadSection fills every tagged field of a config section, recursing into
// nested sections.
func loadSection(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := loadSection(fv); err != nil {
				return err
			}
			continue
		}

		env, ok := envVarOf(field)
		if !ok {
			continue
		}
		raw, err := env.value()
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}

		parse, ok := parsers[field.Type]
		if !ok {
			return fmt.Errorf("%s: unsupported field type %s", env.name, field.Type)
		}
		parsed, err := parse(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", env.name, raw, err)
		}
		fv.Set(reflect.ValueOf(parsed))
	}
	return nil
}

// byteUnits are the suffixes accepted for sizes such as UPLOAD_MAX_FILE_SIZE.
// Longer suffixes come first so "MiB" is not read as "B".
var byteUnits = []struct {
	suffix string
	factor int64
}{
	{"GiB", 1 << 30}, {"MiB", 1 << 20}, {"KiB", 1 << 10},
	{"GB", 1e9}, {"MB", 1e6}, {"KB", 1e3},
	{"B", 1},
}

// parseByteSize accepts a plain byte count or a number with a unit: "1073741824",
// "512MiB", "2GB".
func parseByteSize(s string) (int64, error) {
	factor := int64(1)
	num := s
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			factor, num = u.factor, strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %w", err)
	}
	if n > 0 && n > (1<<63-1)/factor {
		return 0, fmt.Errorf("size %s overflows", s)
	}
	return n * factor, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlite":
		c.Database.Driver = strings.ToLower(c.Database.Driver)
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER (%q) must be one of: postgres, sqlite", c.Database.Driver))
	}
	if c.Database.Table == "" {
		errs = append(errs, "DB_TABLE must not be empty")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.DropTimeout <= 0 {
		errs = append(errs, "DB_DROP_TIMEOUT must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.UploadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	// Notify validation
	if c.Notify.WebhookURL != "" {
		if u, err := url.Parse(c.Notify.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "DISCORD_WEBHOOK must be an http(s) URL")
		}
	}
	if c.Notify.Retries < 0 {
		errs = append(errs, "NOTIFY_RETRIES must be non-negative")
	}
	if c.Notify.FailureThreshold <= 0 {
		errs = append(errs, "NOTIFY_FAILURE_THRESHOLD must be positive")
	}

	// Analysis validation
	if _, err := c.Analysis.ReportPeriods(); err != nil {
		errs = append(errs, fmt.Sprintf("ANALYSIS_PERIODS: %v", err))
	}
	if c.Analysis.ReportInterval < 0 {
		errs = append(errs, "ANALYSIS_REPORT_INTERVAL must be non-negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and webhooks are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {Driver: %q, URL: [MASKED], Table: %q, MaxConns: %d, MinConns: %d}, ",
		c.Database.Driver, c.Database.Table, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.Timeout))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Notify: {Enabled: %v}, ", c.Notify.WebhookURL != ""))
	b.WriteString(fmt.Sprintf("Analysis: {Periods: %v, ReportInterval: %s}, ",
		c.Analysis.Periods, c.Analysis.ReportInterval))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
