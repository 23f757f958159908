package logpipe

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRecord(t *testing.T) {
	before := time.Now()
	r := NewRecord(LevelWarn, "db", "slow query", nil)

	assert.Equal(t, LevelWarn, r.Level)
	assert.Equal(t, "db", r.Tag)
	assert.Equal(t, "slow query", r.Message)
	assert.False(t, r.Timestamp.Before(before))
	assert.Nil(t, r.Properties)
	assert.False(t, r.HasProperties())
}

func TestNewRecordCopiesProperties(t *testing.T) {
	props := Properties{"user": "alice", "attempt": 3}
	r := NewRecord(LevelInfo, "auth", "login", props)

	props["user"] = "mallory"
	props["extra"] = true

	assert.True(t, r.HasProperties())
	assert.Equal(t, "alice", r.Properties["user"])
	assert.NotContains(t, r.Properties, "extra")
}

func TestNewRecordEmptyPropertiesNormalized(t *testing.T) {
	r := NewRecord(LevelInfo, "t", "m", Properties{})
	assert.Nil(t, r.Properties)
}

func TestNewRecordTruncation(t *testing.T) {
	longTag := strings.Repeat("t", defaultMaxTagLength+10)
	longMsg := strings.Repeat("m", defaultMaxMessageLength+1)

	r := NewRecord(LevelInfo, longTag, longMsg, nil)
	assert.Len(t, r.Tag, defaultMaxTagLength)
	assert.Len(t, r.Message, defaultMaxMessageLength)

	// Multi-byte runes are never split
	r = newRecord(LevelInfo, "héllo", "日本語", nil, recordLimits{maxTag: 2, maxMessage: 4})
	assert.Equal(t, "h", r.Tag)
	assert.Equal(t, "日", r.Message)
}

func TestRecordEqual(t *testing.T) {
	a := NewRecord(LevelInfo, "t", "m", Properties{"k": 1})
	b := NewRecord(LevelInfo, "t", "m", Properties{"k": 1})
	b.Timestamp = a.Timestamp.Add(time.Hour)

	assert.True(t, a.Equal(b), "timestamp is ignored")

	c := NewRecord(LevelInfo, "t", "m", Properties{"k": 2})
	assert.False(t, a.Equal(c))

	d := NewRecord(LevelWarn, "t", "m", Properties{"k": 1})
	assert.False(t, a.Equal(d))

	empty := Record{Level: LevelInfo, Tag: "t", Message: "m", Properties: Properties{}}
	bare := Record{Level: LevelInfo, Tag: "t", Message: "m"}
	assert.True(t, empty.Equal(bare))
}

func TestLevelParsing(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"proc", LevelProc, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := Level(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelName(LevelDebug))
	assert.Equal(t, "INFO", LevelName(LevelInfo))
	assert.Equal(t, "WARN", LevelName(LevelWarn))
	assert.Equal(t, "ERROR", LevelName(LevelError))
	assert.Equal(t, "PROC", LevelName(LevelProc))
	assert.Equal(t, "LEVEL(3)", LevelName(3))
}

func TestParseKeyValue(t *testing.T) {
	key, value, err := parseKeyValue(" level = debug ")
	assert.NoError(t, err)
	assert.Equal(t, "level", key)
	assert.Equal(t, "debug", value)

	_, _, err = parseKeyValue("no-separator")
	assert.Error(t, err)

	_, _, err = parseKeyValue("=value")
	assert.Error(t, err)
}
