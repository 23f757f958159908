package logpipe

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ApplyConfigString applies "key=value" overrides to a copy of the manager's configuration
// and then applies the result. Nothing changes if any override is invalid.
//
// Example:
//
//	err := m.ApplyConfigString(
//	    "level=debug",
//	    "max_records_per_flush=500",
//	    "auto_flush_interval_s=0.05",
//	)
func (m *Manager) ApplyConfigString(overrides ...string) error {
	current := m.GetConfig()
	if current == nil {
		return ErrNotInitialized
	}
	cfg := current.Clone()

	var errs []error
	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := applyConfigField(cfg, key, value); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return combineConfigErrors(errs)
	}

	return m.ApplyConfig(cfg)
}

// combineConfigErrors combines multiple configuration errors into a single error
func combineConfigErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var sb strings.Builder
	sb.WriteString("logpipe: multiple configuration errors:")
	for i, err := range errs {
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, strings.TrimPrefix(err.Error(), "logpipe: ")))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.TrimPrefix(sb.String(), "logpipe: "))
}

// applyConfigField parses value into the field whose toml tag is key.
// The level key also accepts level names.
func applyConfigField(cfg *Config, key, value string) error {
	if key == "level" {
		if numVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			cfg.Level = numVal
			return nil
		}
		levelVal, err := Level(value)
		if err != nil {
			return fmtErrorf("invalid level value '%s': %w", value, err)
		}
		cfg.Level = levelVal
		return nil
	}

	field, ok := configFieldByTag(cfg, key)
	if !ok {
		return fmtErrorf("unknown configuration key '%s'", key)
	}

	switch field.Kind() {
	case reflect.Int64:
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmtErrorf("invalid integer value for %s '%s': %w", key, value, err)
		}
		field.SetInt(intVal)
	case reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmtErrorf("invalid float value for %s '%s': %w", key, value, err)
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmtErrorf("invalid boolean value for %s '%s': %w", key, value, err)
		}
		field.SetBool(boolVal)
	default:
		return fmtErrorf("unsupported field type for %s: %v", key, field.Kind())
	}

	return nil
}

func configFieldByTag(cfg *Config, tag string) (reflect.Value, bool) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
