package formatter

import (
	"encoding/hex"
	"strconv"
	"unicode"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// appendPrintable copies s, hex-encoding non-printable runes as <xx> so control
// sequences cannot reach a terminal or split a line
func appendPrintable(dst []byte, s string) []byte {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			dst = append(dst, '<')
			dst = hex.AppendEncode(dst, []byte{s[i]})
			dst = append(dst, '>')
			i++
			continue
		}
		if strconv.IsPrint(r) {
			dst = append(dst, s[i:i+size]...)
		} else {
			dst = append(dst, '<')
			dst = hex.AppendEncode(dst, []byte(s[i:i+size]))
			dst = append(dst, '>')
		}
		i += size
	}
	return dst
}

// needsQuotes reports whether a txt value must be quoted to stay one token
func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return true
		}
		switch r {
		case '"', '\'', '\\', '=', '[', ']', '{', '}':
			return true
		}
	}
	return false
}

// appendQuoted writes s in double quotes with quotes and backslashes escaped
// and non-printable runes hex-encoded
func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c == '"' || c == '\\' {
			dst = append(dst, '\\', c)
			i++
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		dst = appendPrintable(dst, s[i:i+size])
		i += size
	}
	return append(dst, '"')
}

// appendJSONString writes s as a JSON string literal
func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= ' ' && c != '"' && c != '\\' && c < utf8.RuneSelf {
			start := i
			for i < len(s) && s[i] >= ' ' && s[i] != '"' && s[i] != '\\' && s[i] < utf8.RuneSelf {
				i++
			}
			dst = append(dst, s[start:i]...)
			continue
		}
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				dst = append(dst, `�`...)
			} else {
				dst = append(dst, s[i:i+size]...)
			}
			i += size
			continue
		}
		switch c {
		case '\\', '"':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		i++
	}
	return append(dst, '"')
}
