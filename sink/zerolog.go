package sink

import (
	"github.com/rs/zerolog"

	"github.com/lixenwraith/logpipe"
)

// Zerolog forwards records to a zerolog.Logger, for hosts that already standardize on zerolog
type Zerolog struct {
	logpipe.SinkBase
	logger zerolog.Logger
}

// NewZerolog creates a bridge sink around logger
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

// Write emits one zerolog event
func (s *Zerolog) Write(r logpipe.Record) error {
	ev := s.logger.WithLevel(zerologLevel(r.Level))
	if ev == nil {
		return nil
	}
	ev = ev.Time(zerolog.TimestampFieldName, r.Timestamp)
	if r.Tag != "" {
		ev = ev.Str("tag", r.Tag)
	}
	if r.HasProperties() {
		ev = ev.Fields(map[string]any(r.Properties))
	}
	ev.Msg(r.Message)
	return nil
}

// WriteBatch emits one event per record
func (s *Zerolog) WriteBatch(records []logpipe.Record) error {
	for _, r := range records {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// zerologLevel maps a pipeline level to the nearest zerolog level at or below it
func zerologLevel(level int64) zerolog.Level {
	switch {
	case level == logpipe.LevelProc:
		return zerolog.InfoLevel
	case level >= logpipe.LevelError:
		return zerolog.ErrorLevel
	case level >= logpipe.LevelWarn:
		return zerolog.WarnLevel
	case level >= logpipe.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
