package logpipe

import (
	"maps"
	"reflect"
	"time"
)

// Properties holds optional structured key/value data attached to a record
type Properties map[string]any

// Record represents a single log event. It is copied by value and never mutated after creation.
type Record struct {
	Level      int64
	Tag        string
	Message    string
	Timestamp  time.Time
	Properties Properties // nil when no properties were attached
}

// recordLimits bounds tag and message sizes at record creation
type recordLimits struct {
	maxTag     int
	maxMessage int
}

var defaultLimits = recordLimits{
	maxTag:     defaultMaxTagLength,
	maxMessage: defaultMaxMessageLength,
}

// NewRecord creates a record stamped with the current time, using default size limits.
// The properties map is copied so later changes by the caller do not affect the record.
func NewRecord(level int64, tag, message string, props Properties) Record {
	return newRecord(level, tag, message, props, defaultLimits)
}

func newRecord(level int64, tag, message string, props Properties, limits recordLimits) Record {
	r := Record{
		Level:     level,
		Tag:       truncate(tag, limits.maxTag),
		Message:   truncate(message, limits.maxMessage),
		Timestamp: time.Now(),
	}
	if len(props) > 0 {
		r.Properties = maps.Clone(props)
	}
	return r
}

// HasProperties reports whether the record carries structured properties
func (r Record) HasProperties() bool {
	return len(r.Properties) > 0
}

// Equal compares level, tag, message and properties. Timestamp is informational and ignored.
func (r Record) Equal(other Record) bool {
	if r.Level != other.Level || r.Tag != other.Tag || r.Message != other.Message {
		return false
	}
	if len(r.Properties) == 0 && len(other.Properties) == 0 {
		return true
	}
	return reflect.DeepEqual(r.Properties, other.Properties)
}
