package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultSource              = SourceFirestore
	defaultSnapshotObject      = "delivery/snapshot.yaml"
	defaultSettingsCollection  = "delivery_settings"
	defaultCatalogCollection   = "delivery_items"
	defaultFirestoreDial       = 10 * time.Second
	defaultTimezone            = "UTC"
	defaultCutoffTime          = "14:00"
	defaultProcessingDays      = 1.0
	defaultSurchargeStacking   = "all"
	defaultRequestsPerSecond   = 20.0
	defaultRequestBurst        = 40
	defaultBreakerTimeout      = 30 * time.Second
	defaultBreakerFailures     = 5
	defaultBreakerHalfOpenCall = 1
)

// Source kinds for configuration and catalog data.
const (
	SourceFirestore = "firestore"
	SourceFile      = "file"
	SourceGCS       = "gcs"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Source     SourceConfig
	Firestore  FirestoreConfig
	Estimation EstimationConfig
	RateLimits RateLimitConfig
	Breaker    BreakerConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SourceConfig selects where the estimation snapshot and catalog are read from.
type SourceConfig struct {
	Kind         string
	SnapshotPath string
	Bucket       string
	Object       string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	SettingsCollection string
	CatalogCollection  string
	DialTimeout        time.Duration
}

// EstimationConfig holds the fallbacks applied when the stored settings leave a value unset.
type EstimationConfig struct {
	Timezone              string
	CutoffTime            string
	ProcessingDays        float64
	DefaultLeadTimeDays   int
	MaxVisibleStock       int
	SurchargeStacking     string
	FreeShippingThreshold string
}

// Location resolves the configured timezone, falling back to UTC.
func (c EstimationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil || strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	return loc
}

// RateLimitConfig controls per client request throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// BreakerConfig tunes the circuit breaker guarding remote snapshot loads.
type BreakerConfig struct {
	Timeout          time.Duration
	FailureThreshold uint32
	HalfOpenRequests uint32
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides
// and environment variables.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("config: context is required")
	}
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "DELIVERY_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "DELIVERY_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "DELIVERY_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "DELIVERY_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Source: SourceConfig{
			Kind:         strings.ToLower(stringWithDefault(lookup, "DELIVERY_SOURCE", defaultSource)),
			SnapshotPath: stringWithDefault(lookup, "DELIVERY_SNAPSHOT_PATH", ""),
			Bucket:       stringWithDefault(lookup, "DELIVERY_SNAPSHOT_BUCKET", ""),
			Object:       stringWithDefault(lookup, "DELIVERY_SNAPSHOT_OBJECT", defaultSnapshotObject),
		},
		Firestore: FirestoreConfig{
			ProjectID:          stringWithDefault(lookup, "DELIVERY_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:       stringWithDefault(lookup, "DELIVERY_FIRESTORE_EMULATOR_HOST", ""),
			SettingsCollection: stringWithDefault(lookup, "DELIVERY_FIRESTORE_SETTINGS_COLLECTION", defaultSettingsCollection),
			CatalogCollection:  stringWithDefault(lookup, "DELIVERY_FIRESTORE_CATALOG_COLLECTION", defaultCatalogCollection),
			DialTimeout:        durationWithDefault(lookup, "DELIVERY_FIRESTORE_DIAL_TIMEOUT", defaultFirestoreDial),
		},
		Estimation: EstimationConfig{
			Timezone:              stringWithDefault(lookup, "DELIVERY_TIMEZONE", defaultTimezone),
			CutoffTime:            stringWithDefault(lookup, "DELIVERY_CUTOFF_TIME", defaultCutoffTime),
			ProcessingDays:        floatWithDefault(lookup, "DELIVERY_PROCESSING_DAYS", defaultProcessingDays),
			DefaultLeadTimeDays:   intWithDefault(lookup, "DELIVERY_DEFAULT_LEAD_TIME_DAYS", 0),
			MaxVisibleStock:       intWithDefault(lookup, "DELIVERY_MAX_VISIBLE_STOCK", 0),
			SurchargeStacking:     strings.ToLower(stringWithDefault(lookup, "DELIVERY_SURCHARGE_STACKING", defaultSurchargeStacking)),
			FreeShippingThreshold: stringWithDefault(lookup, "DELIVERY_FREE_SHIPPING_THRESHOLD", ""),
		},
		RateLimits: RateLimitConfig{
			RequestsPerSecond: floatWithDefault(lookup, "DELIVERY_RATELIMIT_RPS", defaultRequestsPerSecond),
			Burst:             intWithDefault(lookup, "DELIVERY_RATELIMIT_BURST", defaultRequestBurst),
		},
		Breaker: BreakerConfig{
			Timeout:          durationWithDefault(lookup, "DELIVERY_BREAKER_TIMEOUT", defaultBreakerTimeout),
			FailureThreshold: uint32(intWithDefault(lookup, "DELIVERY_BREAKER_FAILURES", defaultBreakerFailures)),
			HalfOpenRequests: uint32(intWithDefault(lookup, "DELIVERY_BREAKER_HALF_OPEN_REQUESTS", defaultBreakerHalfOpenCall)),
		},
	}

	// Firestore project defaults to the ambient Google Cloud project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Source.Kind {
	case SourceFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
		if strings.TrimSpace(cfg.Firestore.SettingsCollection) == "" {
			missing = append(missing, "Firestore.SettingsCollection")
		}
		if strings.TrimSpace(cfg.Firestore.CatalogCollection) == "" {
			missing = append(missing, "Firestore.CatalogCollection")
		}
	case SourceFile:
		if strings.TrimSpace(cfg.Source.SnapshotPath) == "" {
			missing = append(missing, "Source.SnapshotPath")
		}
	case SourceGCS:
		if strings.TrimSpace(cfg.Source.Bucket) == "" {
			missing = append(missing, "Source.Bucket")
		}
		if strings.TrimSpace(cfg.Source.Object) == "" {
			missing = append(missing, "Source.Object")
		}
	default:
		missing = append(missing, "Source.Kind")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(cfg.Estimation.Timezone)); err != nil {
		missing = append(missing, "Estimation.Timezone")
	}
	if _, err := time.Parse("15:04", strings.TrimSpace(cfg.Estimation.CutoffTime)); err != nil {
		missing = append(missing, "Estimation.CutoffTime")
	}
	if cfg.Estimation.ProcessingDays < 0 {
		missing = append(missing, "Estimation.ProcessingDays")
	}
	if cfg.Estimation.DefaultLeadTimeDays < 0 {
		missing = append(missing, "Estimation.DefaultLeadTimeDays")
	}
	if cfg.Estimation.MaxVisibleStock < 0 {
		missing = append(missing, "Estimation.MaxVisibleStock")
	}
	switch cfg.Estimation.SurchargeStacking {
	case "all", "first_match", "smallest", "largest":
	default:
		missing = append(missing, "Estimation.SurchargeStacking")
	}
	if threshold := strings.TrimSpace(cfg.Estimation.FreeShippingThreshold); threshold != "" {
		if _, err := strconv.ParseFloat(threshold, 64); err != nil {
			missing = append(missing, "Estimation.FreeShippingThreshold")
		}
	}
	if cfg.RateLimits.RequestsPerSecond < 0 || cfg.RateLimits.Burst < 0 {
		missing = append(missing, "RateLimits")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
