package formatter

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe"
)

var fixedTime = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func record(level int64, tag, message string, props logpipe.Properties) logpipe.Record {
	r := logpipe.NewRecord(level, tag, message, props)
	r.Timestamp = fixedTime
	return r
}

func TestFormatTxt(t *testing.T) {
	f := New().TimestampFormat(time.RFC3339)

	out := string(f.Format(record(logpipe.LevelWarn, "db", "slow query", nil)))
	assert.Equal(t, "2025-03-14T15:09:26Z WARN [db] slow query\n", out)

	out = string(f.Format(record(logpipe.LevelInfo, "http", "request", logpipe.Properties{
		"status": 200,
		"path":   "/api/v1",
		"agent":  "curl 8.0",
		"ok":     true,
		"dur":    1500 * time.Millisecond,
	})))
	assert.Equal(t, `2025-03-14T15:09:26Z INFO [http] request agent="curl 8.0" dur=1.5s ok=true path=/api/v1 status=200`+"\n", out)
}

func TestFormatTxtToggles(t *testing.T) {
	f := New().ShowTimestamp(false).ShowLevel(false).ShowTag(false)
	assert.Equal(t, "just the message\n", string(f.Format(record(logpipe.LevelInfo, "t", "just the message", nil))))

	f = New().ShowTimestamp(false)
	assert.Equal(t, "INFO untagged\n", string(f.Format(record(logpipe.LevelInfo, "", "untagged", nil))))
	assert.Equal(t, "LEVEL(3) [t] custom\n", string(f.Format(record(3, "t", "custom", nil))))
}

// TestFormatTxtSanitizes keeps control characters from breaking lines or reaching terminals
func TestFormatTxtSanitizes(t *testing.T) {
	f := New().ShowTimestamp(false).ShowLevel(false)

	out := string(f.Format(record(logpipe.LevelInfo, "t", "line1\nline2\x1b[31m", logpipe.Properties{
		"q": `say "hi"`,
	})))
	assert.Equal(t, `[t] line1<0a>line2<1b>[31m q="say \"hi\""`+"\n", out)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestFormatJSON(t *testing.T) {
	f := New().Type(FormatJSON).TimestampFormat(time.RFC3339)

	out := f.Format(record(logpipe.LevelError, "auth", "login \"failed\"\n", logpipe.Properties{
		"user":    "alice",
		"attempt": 3,
		"err":     errors.New("bad password"),
		"meta":    map[string]int{"a": 1},
		"missing": nil,
	}))
	require.True(t, strings.HasSuffix(string(out), "\n"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))

	assert.Equal(t, "2025-03-14T15:09:26Z", decoded["time"])
	assert.Equal(t, "ERROR", decoded["level"])
	assert.Equal(t, "auth", decoded["tag"])
	assert.Equal(t, "login \"failed\"\n", decoded["message"])

	fields, ok := decoded["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", fields["user"])
	assert.Equal(t, float64(3), fields["attempt"])
	assert.Equal(t, "bad password", fields["err"])
	assert.Equal(t, map[string]any{"a": float64(1)}, fields["meta"])
	assert.Nil(t, fields["missing"])
}

func TestFormatJSONWithoutProperties(t *testing.T) {
	f := New().Type(FormatJSON).ShowTimestamp(false)

	out := string(f.Format(record(logpipe.LevelInfo, "t", "m", nil)))
	assert.Equal(t, `{"level":"INFO","tag":"t","message":"m"}`+"\n", out)
}

func TestFormatJSONControlCharacters(t *testing.T) {
	f := New().Type(FormatJSON).ShowTimestamp(false).ShowLevel(false).ShowTag(false)

	out := f.Format(record(logpipe.LevelInfo, "", "a\x00b\tc", nil))
	assert.Equal(t, `{"message":"a\u0000b\tc"}`+"\n", string(out))
	assert.True(t, json.Valid(out))
}

func TestFormatRaw(t *testing.T) {
	f := New().Type(FormatRaw)

	out := string(f.Format(record(logpipe.LevelInfo, "t", "payload", logpipe.Properties{
		"a": "x y",
		"b": nil,
	})))
	assert.Equal(t, "payload x y nil\n", out)

	type point struct{ X, Y int }
	out = string(f.Format(record(logpipe.LevelInfo, "t", "dump", logpipe.Properties{"p": point{1, 2}})))
	assert.Contains(t, out, "X: (int) 1")
	assert.Contains(t, out, "Y: (int) 2")
}

func TestFormatUnknownTypeFallsBackToTxt(t *testing.T) {
	f := New().Type("xml").ShowTimestamp(false)
	assert.Equal(t, "INFO [t] m\n", string(f.Format(record(logpipe.LevelInfo, "t", "m", nil))))
	assert.False(t, Valid("xml"))
	assert.True(t, Valid(FormatJSON))
}

func TestFormatBufferReuse(t *testing.T) {
	f := New().ShowTimestamp(false)

	first := string(f.Format(record(logpipe.LevelInfo, "t", "first", nil)))
	second := string(f.Format(record(logpipe.LevelInfo, "t", "second", nil)))

	assert.Equal(t, "INFO [t] first\n", first)
	assert.Equal(t, "INFO [t] second\n", second)
}

func TestFormatJSONNonFiniteFloats(t *testing.T) {
	f := New().Type(FormatJSON).ShowTimestamp(false)

	out := f.Format(record(logpipe.LevelInfo, "t", "m", logpipe.Properties{
		"nan":  math.NaN(),
		"pos":  math.Inf(1),
		"neg":  float32(math.Inf(-1)),
		"fine": 1.25,
	}))
	require.True(t, json.Valid(out), string(out))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	fields := decoded["fields"].(map[string]any)
	assert.Equal(t, "NaN", fields["nan"])
	assert.Equal(t, "+Inf", fields["pos"])
	assert.Equal(t, "-Inf", fields["neg"])
	assert.Equal(t, 1.25, fields["fine"])

	// txt keeps the bare form
	txt := string(New().ShowTimestamp(false).Format(record(logpipe.LevelInfo, "t", "m", logpipe.Properties{"v": math.NaN()})))
	assert.Equal(t, "INFO [t] m v=NaN\n", txt)
}
