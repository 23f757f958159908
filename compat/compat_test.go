package compat

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/formatter"
	"github.com/lixenwraith/logpipe/sink"
)

// createTestCompatBuilder creates a manual-flush debug pipeline backed by a memory sink
func createTestCompatBuilder(t *testing.T) (*Builder, *logpipe.Manager, *sink.Memory) {
	t.Helper()

	mem, err := sink.NewMemory(64)
	require.NoError(t, err)

	m, err := logpipe.NewBuilder().
		LevelString("debug").
		ManualFlush().
		Sink(mem).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Dispose() })

	return NewBuilder().WithManager(m), m, mem
}

// flushed drains the pipeline and returns what the memory sink holds
func flushed(t *testing.T, m *logpipe.Manager, mem *sink.Memory) []logpipe.Record {
	t.Helper()
	_, err := m.Flush()
	require.NoError(t, err)
	return mem.Records()
}

// TestCompatBuilder verifies the compatibility builder can be initialized correctly
func TestCompatBuilder(t *testing.T) {
	t.Run("with existing manager", func(t *testing.T) {
		builder, m, _ := createTestCompatBuilder(t)

		gnetAdapter, err := builder.BuildGnet()
		require.NoError(t, err)
		assert.Same(t, m, gnetAdapter.manager)

		got, err := builder.GetManager()
		require.NoError(t, err)
		assert.Same(t, m, got)
	})

	t.Run("with config and sinks", func(t *testing.T) {
		mem, err := sink.NewMemory(4)
		require.NoError(t, err)
		cfg := logpipe.DefaultConfig()
		cfg.AutoFlush = false

		builder := NewBuilder().WithConfig(cfg).WithSinks(mem)
		fasthttpAdapter, err := builder.BuildFastHTTP()
		require.NoError(t, err)

		m, err := builder.GetManager()
		require.NoError(t, err)
		defer m.Dispose()
		assert.Same(t, m, fasthttpAdapter.manager, "manager is created once and cached")
	})

	t.Run("errors", func(t *testing.T) {
		_, err := NewBuilder().WithManager(nil).BuildGnet()
		assert.Error(t, err)

		_, err = NewBuilder().BuildStructuredGnet()
		assert.ErrorIs(t, err, logpipe.ErrValidation, "a new manager needs a sink")
	})
}

// TestGnetAdapter tests the gnet adapter's levels, tag and fatal handling
func TestGnetAdapter(t *testing.T) {
	builder, m, mem := createTestCompatBuilder(t)

	var fatalMsg string
	adapter, err := builder.BuildGnet(WithFatalHandler(func(msg string) {
		fatalMsg = msg
	}))
	require.NoError(t, err)

	adapter.Debugf("gnet debug id=%d", 1)
	adapter.Infof("gnet info id=%d", 2)
	adapter.Warnf("gnet warn id=%d", 3)
	adapter.Errorf("gnet error id=%d", 4)
	adapter.Fatalf("gnet fatal id=%d", 5)

	// Fatalf flushed before calling the handler
	assert.Equal(t, "gnet fatal id=5", fatalMsg)
	assert.Equal(t, 5, mem.Len())
	assert.Equal(t, 0, m.Pending())

	expected := []struct {
		level int64
		msg   string
	}{
		{logpipe.LevelDebug, "gnet debug id=1"},
		{logpipe.LevelInfo, "gnet info id=2"},
		{logpipe.LevelWarn, "gnet warn id=3"},
		{logpipe.LevelError, "gnet error id=4"},
		{logpipe.LevelError, "gnet fatal id=5"},
	}
	records := mem.Records()
	require.Len(t, records, len(expected))
	for i, r := range records {
		assert.Equal(t, expected[i].level, r.Level)
		assert.Equal(t, expected[i].msg, r.Message)
		assert.Equal(t, "gnet", r.Tag)
	}
	assert.Nil(t, records[3].Properties)
	assert.Equal(t, logpipe.Properties{"fatal": true}, records[4].Properties)
}

// TestStructuredGnetAdapter tests key=value extraction into properties
func TestStructuredGnetAdapter(t *testing.T) {
	builder, m, mem := createTestCompatBuilder(t)

	adapter, err := builder.BuildStructuredGnet()
	require.NoError(t, err)

	adapter.Infof("request served status=%d client_ip=%s", 200, "127.0.0.1")
	adapter.Warnf("plain warning %s", "text")
	adapter.SetExtractFields(false)
	adapter.Errorf("raw status=%d", 500)

	records := flushed(t, m, mem)
	require.Len(t, records, 3)

	assert.Equal(t, logpipe.LevelInfo, records[0].Level)
	assert.Equal(t, "request served", records[0].Message)
	assert.Equal(t, logpipe.Properties{"status": 200, "client_ip": "127.0.0.1"}, records[0].Properties)

	assert.Equal(t, "plain warning text", records[1].Message)
	assert.Nil(t, records[1].Properties)

	assert.Equal(t, "raw status=500", records[2].Message)
	assert.Nil(t, records[2].Properties)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
		args   []any
		msg    string
		props  logpipe.Properties
	}{
		{"no pairs", "listening on %s", []any{":9000"}, "listening on :9000", nil},
		{"pairs only", "fd=%d", []any{7}, "fd=7", logpipe.Properties{"fd": 7}},
		{"colon separator", "closed conn: %v", []any{"eof"}, "closed", logpipe.Properties{"conn": "eof"}},
		{"trailing text", "accepted fd=%d in %dms", []any{3, 12}, "accepted in 12ms", logpipe.Properties{"fd": 3}},
		{"too few args", "a=%d b=%d", []any{1}, "a=1 b=%!d(MISSING)", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, props := parseFormat(tt.format, tt.args)
			assert.Equal(t, tt.msg, msg)
			assert.Equal(t, tt.props, props)
		})
	}
}

// TestFastHTTPAdapter tests the fasthttp adapter's level detection
func TestFastHTTPAdapter(t *testing.T) {
	builder, m, mem := createTestCompatBuilder(t)

	adapter, err := builder.BuildFastHTTP()
	require.NoError(t, err)

	testMessages := []string{
		"this is some informational message",
		"a debug message for the developers",
		"warning: something might be wrong",
		"an error occurred while processing",
	}
	for _, msg := range testMessages {
		adapter.Printf("%s", msg)
	}

	records := flushed(t, m, mem)
	expectedLevels := []int64{logpipe.LevelInfo, logpipe.LevelDebug, logpipe.LevelWarn, logpipe.LevelError}
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, expectedLevels[i], r.Level)
		assert.Equal(t, testMessages[i], r.Message)
		assert.Equal(t, "fasthttp", r.Tag)
	}
}

func TestFastHTTPAdapterOptions(t *testing.T) {
	builder, m, mem := createTestCompatBuilder(t)

	adapter, err := builder.BuildFastHTTP(
		WithDefaultLevel(logpipe.LevelWarn),
		WithLevelDetector(func(msg string) int64 {
			if msg == "boom" {
				return logpipe.LevelError
			}
			return logpipe.LevelInfo
		}),
	)
	require.NoError(t, err)

	adapter.Printf("ordinary")
	adapter.Printf("boom")

	records := flushed(t, m, mem)
	require.Len(t, records, 2)
	assert.Equal(t, logpipe.LevelWarn, records[0].Level, "info from the detector defers to the default")
	assert.Equal(t, logpipe.LevelError, records[1].Level)
}

// TestAdaptersToFile runs adapters against a JSON file sink end to end
func TestAdaptersToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	file, err := sink.NewFile(sink.FileOptions{Path: path}, formatter.New().Type(formatter.FormatJSON))
	require.NoError(t, err)

	m, err := logpipe.NewBuilder().ManualFlush().OwnedSink(file).Build()
	require.NoError(t, err)

	builder := NewBuilder().WithManager(m)
	gnetLogger, err := builder.BuildStructuredGnet()
	require.NoError(t, err)
	httpLogger, err := builder.BuildFastHTTP()
	require.NoError(t, err)

	gnetLogger.Infof("engine started addr=%s", "tcp://:9000")
	httpLogger.Printf("request failed: %s", "timeout")
	require.NoError(t, m.Dispose())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "line: %s", scanner.Text())
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)

	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "gnet", entries[0]["tag"])
	assert.Equal(t, "engine started", entries[0]["message"])
	assert.Equal(t, map[string]any{"addr": "tcp://:9000"}, entries[0]["fields"])

	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "fasthttp", entries[1]["tag"])
	assert.Equal(t, "request failed: timeout", entries[1]["message"])
}
