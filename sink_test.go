package logpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSinkBaseDefaults(t *testing.T) {
	var b SinkBase

	assert.True(t, b.Enabled())
	assert.Equal(t, int64(0), b.MinimumLevel())
	assert.False(t, b.LevelPinned())
	assert.True(t, b.ShouldProcess(NewRecord(LevelInfo, "any", "m", nil)))
}

func TestSinkBaseToggles(t *testing.T) {
	var b SinkBase

	b.SetEnabled(false)
	assert.False(t, b.Enabled())
	b.SetEnabled(true)
	assert.True(t, b.Enabled())

	b.SetMinimumLevel(LevelWarn)
	assert.Equal(t, LevelWarn, b.MinimumLevel())

	b.PinLevel(LevelError)
	assert.True(t, b.LevelPinned())
	assert.Equal(t, LevelError, b.MinimumLevel())
	b.UnpinLevel()
	assert.False(t, b.LevelPinned())
}

func TestSinkBaseTagFilter(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		tag     string
		want    bool
	}{
		{"no filter", nil, nil, "net", true},
		{"included", []string{"net", "db"}, nil, "db", true},
		{"not included", []string{"net"}, nil, "db", false},
		{"excluded", nil, []string{"noise"}, "noise", false},
		{"not excluded", nil, []string{"noise"}, "net", true},
		{"exclude wins", []string{"net"}, []string{"net"}, "net", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b SinkBase
			b.SetTagFilter(tt.include, tt.exclude)
			assert.Equal(t, tt.want, b.ShouldProcess(NewRecord(LevelInfo, tt.tag, "m", nil)))
		})
	}
}

func TestAcceptsLevelBoundary(t *testing.T) {
	s := newRecordingSink()
	s.SetMinimumLevel(LevelWarn)

	assert.True(t, accepts(s, NewRecord(LevelWarn, "t", "m", nil)), "boundary is inclusive")
	assert.True(t, accepts(s, NewRecord(LevelError, "t", "m", nil)))
	assert.False(t, accepts(s, NewRecord(LevelWarn-1, "t", "m", nil)))
}

func TestIsPinned(t *testing.T) {
	s := newRecordingSink()
	assert.False(t, isPinned(s))
	s.PinLevel(LevelDebug)
	assert.True(t, isPinned(s))
	assert.False(t, isPinned(&plainSink{}))
}

// plainSink implements Sink without LevelPinner
type plainSink struct{}

func (plainSink) Enabled() bool             { return true }
func (plainSink) MinimumLevel() int64       { return 0 }
func (plainSink) SetMinimumLevel(int64)     {}
func (plainSink) ShouldProcess(Record) bool { return true }
func (plainSink) Write(Record) error        { return nil }
func (plainSink) WriteBatch([]Record) error { return nil }
