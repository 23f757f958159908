package logpipe

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/lixenwraith/config"
)

// configPrefix is the TOML table holding pipeline settings
const configPrefix = "logpipe."

// Config holds all pipeline configuration values
type Config struct {
	// Filtering
	Level int64 `toml:"level"` // Global minimum level

	// Draining
	MaxRecordsPerFlush int64   `toml:"max_records_per_flush"` // Flush budget
	AutoFlush          bool    `toml:"auto_flush"`            // Update triggers flushes
	AutoFlushIntervalS float64 `toml:"auto_flush_interval_s"` // Seconds between auto flushes
	QueueCapacity      int64   `toml:"queue_capacity"`        // 0 = unbounded, otherwise oldest records beyond it are dropped

	// Locking and shutdown
	FlushLockTimeoutMs int64 `toml:"flush_lock_timeout_ms"` // Wait for the flush lock before skipping
	DisposeTimeoutMs   int64 `toml:"dispose_timeout_ms"`    // Wait for the flush lock on dispose
	DisposeDrainCycles int64 `toml:"dispose_drain_cycles"`  // Final flushes on dispose

	// Record limits
	MaxMessageLength int64 `toml:"max_message_length"` // Bytes, cut at a rune boundary
	MaxTagLength     int64 `toml:"max_tag_length"`     // Bytes, cut at a rune boundary

	// Telemetry and heartbeat
	PublishRecordEvents bool    `toml:"publish_record_events"` // Emit RecordReceived per accepted record
	HeartbeatIntervalS  float64 `toml:"heartbeat_interval_s"`  // 0 = disabled

	// Internal error handling
	InternalErrorsToStderr bool `toml:"internal_errors_to_stderr"` // Write internal errors to stderr
}

// defaultConfig is the single source for all configurable default values
var defaultConfig = Config{
	Level: LevelInfo,

	MaxRecordsPerFlush: 200,
	AutoFlush:          true,
	AutoFlushIntervalS: 0.1,
	QueueCapacity:      0,

	FlushLockTimeoutMs: 50,
	DisposeTimeoutMs:   1000,
	DisposeDrainCycles: defaultDisposeDrainCycles,

	MaxMessageLength: defaultMaxMessageLength,
	MaxTagLength:     defaultMaxTagLength,

	PublishRecordEvents: false,
	HeartbeatIntervalS:  0,

	InternalErrorsToStderr: false,
}

// DefaultConfig returns a copy of the default configuration
func DefaultConfig() *Config {
	copiedConfig := defaultConfig
	return &copiedConfig
}

// NewConfigFromFile loads configuration from the [logpipe] table of a TOML file.
// A missing file yields the defaults.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	loader := config.New()

	if err := loader.RegisterStruct(configPrefix, *cfg); err != nil {
		return nil, fmtErrorf("failed to register config struct: %w", err)
	}

	if err := loader.Load(path, nil); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmtErrorf("failed to load config from %s: %w", path, err)
	}

	if err := extractConfig(loader, configPrefix, cfg); err != nil {
		return nil, fmtErrorf("failed to extract config values: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewConfigFromDefaults creates a Config with default values and applies overrides keyed by toml name
func NewConfigFromDefaults(overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()

	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, fmtErrorf("failed to apply overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// extractConfig copies loaded values into cfg by toml tag
func extractConfig(loader *config.Config, prefix string, cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tomlTag := field.Tag.Get("toml")
		if tomlTag == "" {
			continue
		}

		val, found := loader.Get(prefix + tomlTag)
		if !found {
			continue
		}

		if err := setFieldValue(v.Field(i), val); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}

	return nil
}

// applyOverrides applies a map of overrides to the Config struct
func applyOverrides(cfg *Config, overrides map[string]any) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	fieldMap := make(map[string]reflect.Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tomlTag := t.Field(i).Tag.Get("toml"); tomlTag != "" {
			fieldMap[tomlTag] = v.Field(i)
		}
	}

	for key, value := range overrides {
		fieldValue, exists := fieldMap[key]
		if !exists {
			return fmt.Errorf("unknown config key: %s", key)
		}
		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return nil
}

// setFieldValue sets a reflect.Value with the numeric widening TOML decoders produce
func setFieldValue(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.Int64:
		switch v := value.(type) {
		case int64:
			field.SetInt(v)
		case int:
			field.SetInt(int64(v))
		case int32:
			field.SetInt(int64(v))
		default:
			return fmt.Errorf("expected int64, got %T", value)
		}

	case reflect.Float64:
		switch v := value.(type) {
		case float64:
			field.SetFloat(v)
		case int64:
			field.SetFloat(float64(v))
		case int:
			field.SetFloat(float64(v))
		default:
			return fmt.Errorf("expected float64, got %T", value)
		}

	case reflect.Bool:
		boolVal, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(boolVal)

	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

// Validate checks every field, wrapping failures in ErrValidation
func (c *Config) Validate() error {
	if c.MaxRecordsPerFlush <= 0 {
		return fmt.Errorf("%w: max_records_per_flush must be positive: %d", ErrValidation, c.MaxRecordsPerFlush)
	}

	if !finitePositive(c.AutoFlushIntervalS) {
		return fmt.Errorf("%w: auto_flush_interval_s must be positive: %v", ErrValidation, c.AutoFlushIntervalS)
	}

	if c.FlushLockTimeoutMs <= 0 || c.DisposeTimeoutMs <= 0 {
		return fmt.Errorf("%w: lock timeouts must be positive", ErrValidation)
	}

	if c.DisposeDrainCycles <= 0 {
		return fmt.Errorf("%w: dispose_drain_cycles must be positive: %d", ErrValidation, c.DisposeDrainCycles)
	}

	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue_capacity cannot be negative: %d", ErrValidation, c.QueueCapacity)
	}

	if c.MaxMessageLength <= 0 || c.MaxTagLength <= 0 {
		return fmt.Errorf("%w: record length limits must be positive", ErrValidation)
	}

	if c.HeartbeatIntervalS < 0 || math.IsNaN(c.HeartbeatIntervalS) || math.IsInf(c.HeartbeatIntervalS, 0) {
		return fmt.Errorf("%w: heartbeat_interval_s must be zero or positive: %v", ErrValidation, c.HeartbeatIntervalS)
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	copiedConfig := *c
	return &copiedConfig
}

func (c *Config) flushLockTimeout() time.Duration {
	return time.Duration(c.FlushLockTimeoutMs) * time.Millisecond
}

func (c *Config) disposeTimeout() time.Duration {
	return time.Duration(c.DisposeTimeoutMs) * time.Millisecond
}

func (c *Config) limits() recordLimits {
	return recordLimits{maxTag: int(c.MaxTagLength), maxMessage: int(c.MaxMessageLength)}
}

func finitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
