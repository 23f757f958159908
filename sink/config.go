package sink

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/formatter"
)

// Sink types accepted in configuration files
const (
	TypeConsole = "console"
	TypeFile    = "file"
	TypeMemory  = "memory"
	TypeHTTP    = "http"
	TypeZerolog = "zerolog"
	TypeRedis   = "redis"
)

// Config describes one sink. Keys that don't apply to the type are ignored.
type Config struct {
	Type        string   `toml:"type"`
	Level       string   `toml:"level"` // level name or number, empty keeps the global level
	PinLevel    bool     `toml:"pin_level"`
	Format      string   `toml:"format"` // txt, json or raw for writer-based sinks
	IncludeTags []string `toml:"include_tags"`
	ExcludeTags []string `toml:"exclude_tags"`

	// console, zerolog
	Target string `toml:"target"`

	// file
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`

	// memory
	Capacity int `toml:"capacity"`

	// http, redis
	URL       string `toml:"url"`
	TimeoutMs int64  `toml:"timeout_ms"`

	// redis
	Addr   string `toml:"addr"`
	Stream string `toml:"stream"`
	MaxLen int64  `toml:"max_len"`
}

type configFile struct {
	Sinks []Config `toml:"sink"`
}

// LoadConfigs reads an array of [[sink]] tables from a TOML file
func LoadConfigs(path string) ([]Config, error) {
	var f configFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errorf("load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errorf("%w: unknown keys in %s: %s", logpipe.ErrValidation, path, strings.Join(keys, ", "))
	}
	return f.Sinks, nil
}

// Build creates a sink from its configuration
func Build(cfg Config) (logpipe.Sink, error) {
	if cfg.Format != "" && !formatter.Valid(cfg.Format) {
		return nil, errorf("%w: format %q", logpipe.ErrValidation, cfg.Format)
	}

	var (
		s   logpipe.Sink
		err error
	)
	switch strings.ToLower(cfg.Type) {
	case TypeConsole:
		s = NewConsole(cfg.Target, newFormatter(cfg.Format))
	case TypeFile:
		s, err = NewFile(FileOptions{
			Path:       cfg.Path,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, newFormatter(cfg.Format))
	case TypeMemory:
		s, err = NewMemory(cfg.Capacity)
	case TypeHTTP:
		s, err = NewHTTP(HTTPOptions{URL: cfg.URL, Timeout: millis(cfg.TimeoutMs)})
	case TypeZerolog:
		s = newZerologTo(consoleWriter(cfg.Target))
	case TypeRedis:
		s, err = NewRedis(RedisOptions{
			Addr:    cfg.Addr,
			Stream:  cfg.Stream,
			MaxLen:  cfg.MaxLen,
			Timeout: millis(cfg.TimeoutMs),
		})
	default:
		return nil, errorf("%w: %q", errUnknownType, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := applyCommon(s, cfg); err != nil {
		closeQuietly(s)
		return nil, err
	}
	return s, nil
}

// BuildAll creates every configured sink, closing those already built if one fails
func BuildAll(cfgs []Config) ([]logpipe.Sink, error) {
	sinks := make([]logpipe.Sink, 0, len(cfgs))
	for i, cfg := range cfgs {
		s, err := Build(cfg)
		if err != nil {
			for _, built := range sinks {
				closeQuietly(built)
			}
			return nil, errorf("sink %d (%s): %w", i, cfg.Type, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// Attach builds the configured sinks and hands them to b as owned sinks,
// so the Manager closes them on Dispose
func Attach(b *logpipe.Builder, cfgs []Config) error {
	if b == nil {
		return logpipe.ErrNullArgument
	}
	sinks, err := BuildAll(cfgs)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		b.OwnedSink(s)
	}
	return nil
}

// levelSetter is the part of SinkBase the factory needs
type levelSetter interface {
	PinLevel(level int64)
	SetTagFilter(include, exclude []string)
}

func applyCommon(s logpipe.Sink, cfg Config) error {
	base, ok := s.(levelSetter)
	if !ok {
		return nil
	}
	base.SetTagFilter(cfg.IncludeTags, cfg.ExcludeTags)

	if cfg.Level == "" {
		if cfg.PinLevel {
			return errorf("%w: pin_level needs a level", logpipe.ErrValidation)
		}
		return nil
	}
	// An unpinned level would be replaced by the manager's global level on attach
	if !cfg.PinLevel {
		return errorf("%w: level %q needs pin_level = true", logpipe.ErrValidation, cfg.Level)
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}
	base.PinLevel(level)
	return nil
}

// newZerologTo bridges to a plain zerolog logger on w. Write stamps each event
// with the record time, so the logger carries no timestamp hook of its own.
func newZerologTo(w io.Writer) *Zerolog {
	return NewZerolog(zerolog.New(w))
}

// parseLevel accepts a level name or a number
func parseLevel(s string) (int64, error) {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n, nil
	}
	return logpipe.Level(s)
}

func newFormatter(format string) *formatter.Formatter {
	f := formatter.New()
	if format != "" {
		f.Type(format)
	}
	return f
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func closeQuietly(s logpipe.Sink) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}
