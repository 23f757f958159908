// Package formatter renders log records as txt, json or raw lines.
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/lixenwraith/logpipe"
)

// Supported output formats
const (
	FormatTxt  = "txt"
	FormatJSON = "json"
	FormatRaw  = "raw"
)

// Valid reports whether format is a supported output format
func Valid(format string) bool {
	switch format {
	case FormatTxt, FormatJSON, FormatRaw:
		return true
	}
	return false
}

// Formatter turns records into bytes. It reuses one buffer and is not safe for concurrent use;
// the slice returned by Format is only valid until the next call.
type Formatter struct {
	format          string
	timestampFormat string
	showTimestamp   bool
	showLevel       bool
	showTag         bool
	buf             []byte
	keys            []string
	dumper          *spew.ConfigState
}

// New creates a txt formatter showing timestamp, level and tag
func New() *Formatter {
	return &Formatter{
		format:          FormatTxt,
		timestampFormat: time.RFC3339Nano,
		showTimestamp:   true,
		showLevel:       true,
		showTag:         true,
		buf:             make([]byte, 0, 1024),
		dumper: &spew.ConfigState{
			Indent:                  " ",
			MaxDepth:                10,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		},
	}
}

// Type sets the output format, unknown values fall back to txt
func (f *Formatter) Type(format string) *Formatter {
	if !Valid(format) {
		format = FormatTxt
	}
	f.format = format
	return f
}

// TimestampFormat sets the timestamp layout
func (f *Formatter) TimestampFormat(layout string) *Formatter {
	if layout != "" {
		f.timestampFormat = layout
	}
	return f
}

// ShowTimestamp sets whether to include the timestamp
func (f *Formatter) ShowTimestamp(show bool) *Formatter {
	f.showTimestamp = show
	return f
}

// ShowLevel sets whether to include the level
func (f *Formatter) ShowLevel(show bool) *Formatter {
	f.showLevel = show
	return f
}

// ShowTag sets whether to include the tag
func (f *Formatter) ShowTag(show bool) *Formatter {
	f.showTag = show
	return f
}

// Format renders one newline-terminated record
func (f *Formatter) Format(r logpipe.Record) []byte {
	f.buf = f.buf[:0]
	switch f.format {
	case FormatJSON:
		f.formatJSON(r)
	case FormatRaw:
		f.formatRaw(r)
	default:
		f.formatTxt(r)
	}
	return f.buf
}

// sortedKeys returns the record's property keys in a stable order
func (f *Formatter) sortedKeys(props logpipe.Properties) []string {
	f.keys = f.keys[:0]
	for k := range props {
		f.keys = append(f.keys, k)
	}
	slices.Sort(f.keys)
	return f.keys
}

// formatTxt writes: time LEVEL [tag] message key=value ...
func (f *Formatter) formatTxt(r logpipe.Record) {
	needsSpace := false
	space := func() {
		if needsSpace {
			f.buf = append(f.buf, ' ')
		}
		needsSpace = true
	}

	if f.showTimestamp {
		space()
		f.buf = r.Timestamp.AppendFormat(f.buf, f.timestampFormat)
	}
	if f.showLevel {
		space()
		f.buf = append(f.buf, logpipe.LevelName(r.Level)...)
	}
	if f.showTag && r.Tag != "" {
		space()
		f.buf = append(f.buf, '[')
		f.buf = appendPrintable(f.buf, r.Tag)
		f.buf = append(f.buf, ']')
	}

	space()
	f.buf = appendPrintable(f.buf, r.Message)

	for _, k := range f.sortedKeys(r.Properties) {
		f.buf = append(f.buf, ' ')
		f.buf = appendPrintable(f.buf, k)
		f.buf = append(f.buf, '=')
		f.appendTxtValue(r.Properties[k])
	}

	f.buf = append(f.buf, '\n')
}

// formatJSON writes one JSON object per line
func (f *Formatter) formatJSON(r logpipe.Record) {
	f.buf = append(f.buf, '{')
	needsComma := false
	field := func(name string) {
		if needsComma {
			f.buf = append(f.buf, ',')
		}
		needsComma = true
		f.buf = append(f.buf, '"')
		f.buf = append(f.buf, name...)
		f.buf = append(f.buf, '"', ':')
	}

	if f.showTimestamp {
		field("time")
		f.buf = append(f.buf, '"')
		f.buf = r.Timestamp.AppendFormat(f.buf, f.timestampFormat)
		f.buf = append(f.buf, '"')
	}
	if f.showLevel {
		field("level")
		f.buf = appendJSONString(f.buf, logpipe.LevelName(r.Level))
	}
	if f.showTag {
		field("tag")
		f.buf = appendJSONString(f.buf, r.Tag)
	}

	field("message")
	f.buf = appendJSONString(f.buf, r.Message)

	if r.HasProperties() {
		field("fields")
		f.buf = append(f.buf, '{')
		for i, k := range f.sortedKeys(r.Properties) {
			if i > 0 {
				f.buf = append(f.buf, ',')
			}
			f.buf = appendJSONString(f.buf, k)
			f.buf = append(f.buf, ':')
			f.appendJSONValue(r.Properties[k])
		}
		f.buf = append(f.buf, '}')
	}

	f.buf = append(f.buf, '}', '\n')
}

// formatRaw writes the message and property values with no metadata or escaping
func (f *Formatter) formatRaw(r logpipe.Record) {
	f.buf = append(f.buf, r.Message...)
	for _, k := range f.sortedKeys(r.Properties) {
		f.buf = append(f.buf, ' ')
		f.appendRawValue(r.Properties[k])
	}
	f.buf = append(f.buf, '\n')
}

// appendTxtValue writes a property value, quoting strings that need it
func (f *Formatter) appendTxtValue(v any) {
	if f.appendScalar(v) {
		return
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	case time.Time:
		s = val.Format(f.timestampFormat)
	case error:
		s = val.Error()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprintf("%+v", val)
	}
	if needsQuotes(s) {
		f.buf = appendQuoted(f.buf, s)
		return
	}
	f.buf = append(f.buf, s...)
}

// appendJSONValue writes a property value as JSON
func (f *Formatter) appendJSONValue(v any) {
	if f.appendScalar(v) {
		return
	}
	switch val := v.(type) {
	case string:
		f.buf = appendJSONString(f.buf, val)
	case []byte:
		f.buf = appendJSONString(f.buf, string(val))
	case time.Time:
		f.buf = appendJSONString(f.buf, val.Format(f.timestampFormat))
	case error:
		f.buf = appendJSONString(f.buf, val.Error())
	case fmt.Stringer:
		f.buf = appendJSONString(f.buf, val.String())
	default:
		data, err := json.Marshal(val)
		if err != nil {
			f.buf = appendJSONString(f.buf, fmt.Sprintf("%+v", val))
			return
		}
		f.buf = append(f.buf, data...)
	}
}

// appendRawValue writes a property value unescaped, dumping complex values with spew
func (f *Formatter) appendRawValue(v any) {
	if f.appendScalar(v) {
		return
	}
	switch val := v.(type) {
	case string:
		f.buf = append(f.buf, val...)
	case []byte:
		f.buf = append(f.buf, val...)
	case time.Time:
		f.buf = val.AppendFormat(f.buf, f.timestampFormat)
	case error:
		f.buf = append(f.buf, val.Error()...)
	case fmt.Stringer:
		f.buf = append(f.buf, val.String()...)
	default:
		var b bytes.Buffer
		f.dumper.Fdump(&b, val)
		f.buf = append(f.buf, bytes.TrimSpace(b.Bytes())...)
	}
}

// appendFloat writes a float; in json NaN and infinities become strings
func (f *Formatter) appendFloat(v float64, bitSize int) {
	if f.format == FormatJSON && (math.IsNaN(v) || math.IsInf(v, 0)) {
		f.buf = append(f.buf, '"')
		f.buf = strconv.AppendFloat(f.buf, v, 'f', -1, bitSize)
		f.buf = append(f.buf, '"')
		return
	}
	f.buf = strconv.AppendFloat(f.buf, v, 'f', -1, bitSize)
}

// appendScalar writes numbers, booleans and nil, reporting whether v was one
func (f *Formatter) appendScalar(v any) bool {
	switch val := v.(type) {
	case nil:
		if f.format == FormatRaw {
			f.buf = append(f.buf, "nil"...)
		} else {
			f.buf = append(f.buf, "null"...)
		}
	case bool:
		f.buf = strconv.AppendBool(f.buf, val)
	case int:
		f.buf = strconv.AppendInt(f.buf, int64(val), 10)
	case int32:
		f.buf = strconv.AppendInt(f.buf, int64(val), 10)
	case int64:
		f.buf = strconv.AppendInt(f.buf, val, 10)
	case uint:
		f.buf = strconv.AppendUint(f.buf, uint64(val), 10)
	case uint32:
		f.buf = strconv.AppendUint(f.buf, uint64(val), 10)
	case uint64:
		f.buf = strconv.AppendUint(f.buf, val, 10)
	case float32:
		f.appendFloat(float64(val), 32)
	case float64:
		f.appendFloat(val, 64)
	case time.Duration:
		if f.format == FormatJSON {
			f.buf = strconv.AppendInt(f.buf, int64(val), 10)
		} else {
			f.buf = append(f.buf, val.String()...)
		}
	default:
		return false
	}
	return true
}
