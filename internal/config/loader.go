package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it;
// tests pass a map-backed function instead of mutating the process env.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from the process environment.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup.
//
// Loading runs in two steps:
//  1. loadStruct walks every section of Config and fills each tagged field.
//  2. Validate checks cross-field rules and reports every failure at once.
//
// Returns an error if a required value is missing, a value does not parse
// for its field type, or validation fails.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct recursively populates struct fields from environment variables.
//
// For each field with an env tag the value is resolved in order:
//   - env: the primary variable name
//   - envAlt: a fallback name, read only when env is unset or blank
//   - default: used when both are unset
//
// A field tagged required:"true" fails instead of taking its default.
// Nested structs are walked; fields without an env tag are left alone.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		// Skip unexported fields
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv, lookup); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value := get(lookup, name)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = get(lookup, alt)
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fv, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}
	return nil
}

// get returns the trimmed value of key; unset and blank read the same.
func get(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

// setField sets a reflect.Value from a string based on its type.
// Durations use time.ParseDuration; string slices are comma-separated with
// empty items dropped.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

var (
	validLevels     = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats    = map[string]bool{"text": true, "json": true}
	validStrictness = map[string]bool{"basic": true, "strict": true, "max": true}
)

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.Database.URL == "" {
		add("DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		add("DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		add("DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		add("SERVER_READ_TIMEOUT and SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Import.MaxFileSize <= 0 {
		add("IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		add("IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		add("IMPORT_MAX_WAIT_TIME must be positive")
	}
	if !validStrictness[c.Import.DefaultAntiCheat] {
		add("IMPORT_DEFAULT_ANTI_CHEAT (%q) must be one of: basic, strict, max", c.Import.DefaultAntiCheat)
	}
	if c.Import.LookupConcurrency <= 0 {
		add("IMPORT_LOOKUP_CONCURRENCY must be positive")
	}

	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.ImportLimit <= 0) {
		add("RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		add("REQUIRE_API_KEY is true but API_KEYS is empty")
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if c.Seating.URL != "" && c.Seating.Timeout <= 0 {
		add("SEATGEN_TIMEOUT must be positive")
	}
	if c.Mail.SendGridKey != "" && c.Mail.FromAddress == "" {
		add("MAIL_FROM is required when SENDGRID_API_KEY is set")
	}
	if c.Reminder.Enabled && c.Reminder.Interval <= 0 {
		add("REMINDER_INTERVAL must be positive when reminders are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String renders the configuration for logging.
// Fields tagged secret:"true" print as [MASKED] when set and [UNSET] when empty,
// so the output is safe to log at startup.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	v := reflect.ValueOf(c).Elem()
	for i := 0; i < v.NumField(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		section := v.Field(i)
		fmt.Fprintf(&b, "%s: {", v.Type().Field(i).Name)
		for j := 0; j < section.NumField(); j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			f := section.Type().Field(j)
			val := section.Field(j)
			if f.Tag.Get("secret") == "true" {
				if val.IsZero() {
					fmt.Fprintf(&b, "%s: [UNSET]", f.Name)
				} else {
					fmt.Fprintf(&b, "%s: [MASKED]", f.Name)
				}
				continue
			}
			fmt.Fprintf(&b, "%s: %v", f.Name, val.Interface())
		}
		b.WriteString("}")
	}
	b.WriteString("}")
	return b.String()
}
