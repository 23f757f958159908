package compat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/lixenwraith/logpipe"
)

var _ logging.Logger = (*StructuredGnetAdapter)(nil)

// keyValuePattern matches structured fragments like "key=%v" or "key: %d"
var keyValuePattern = regexp.MustCompile(`(\w+)\s*[:=]\s*%[vsdqxXeEfFgGpbcU]`)

// parseFormat splits a printf-style call into a message and properties.
// Calls with no key=verb fragments, or more fragments than args, become a plain message.
func parseFormat(format string, args []any) (string, logpipe.Properties) {
	matches := keyValuePattern.FindAllStringSubmatchIndex(format, -1)
	if len(matches) == 0 || len(matches) > len(args) {
		return fmt.Sprintf(format, args...), nil
	}

	props := make(logpipe.Properties, len(matches))
	var msg []string
	lastEnd := 0

	for i, match := range matches {
		if prefix := strings.TrimSpace(format[lastEnd:match[0]]); prefix != "" {
			msg = append(msg, prefix)
		}
		props[format[match[2]:match[3]]] = args[i]
		lastEnd = match[1]
	}

	// Whatever follows the last pair is formatted with the leftover args
	if lastEnd < len(format) {
		rest := format[lastEnd:]
		if remaining := args[len(matches):]; len(remaining) > 0 {
			rest = fmt.Sprintf(rest, remaining...)
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			msg = append(msg, rest)
		}
	}

	if len(msg) == 0 {
		return fmt.Sprintf(format, args...), props
	}
	return strings.Join(msg, " "), props
}

// StructuredGnetAdapter records key=value pairs found in gnet format strings as properties
type StructuredGnetAdapter struct {
	*GnetAdapter
	extractFields bool
}

// NewStructuredGnetAdapter creates a gnet adapter with structured field extraction
func NewStructuredGnetAdapter(m *logpipe.Manager, opts ...GnetOption) *StructuredGnetAdapter {
	return &StructuredGnetAdapter{
		GnetAdapter:   NewGnetAdapter(m, opts...),
		extractFields: true,
	}
}

// SetExtractFields toggles extraction; when off the adapter behaves like GnetAdapter
func (a *StructuredGnetAdapter) SetExtractFields(enabled bool) {
	a.extractFields = enabled
}

func (a *StructuredGnetAdapter) log(level int64, format string, args []any) {
	msg, props := parseFormat(format, args)
	a.manager.LogWithProperties(level, gnetTag, msg, props)
}

// Debugf logs with structured field extraction
func (a *StructuredGnetAdapter) Debugf(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Debugf(format, args...)
		return
	}
	a.log(logpipe.LevelDebug, format, args)
}

// Infof logs with structured field extraction
func (a *StructuredGnetAdapter) Infof(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Infof(format, args...)
		return
	}
	a.log(logpipe.LevelInfo, format, args)
}

// Warnf logs with structured field extraction
func (a *StructuredGnetAdapter) Warnf(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Warnf(format, args...)
		return
	}
	a.log(logpipe.LevelWarn, format, args)
}

// Errorf logs with structured field extraction
func (a *StructuredGnetAdapter) Errorf(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Errorf(format, args...)
		return
	}
	a.log(logpipe.LevelError, format, args)
}
