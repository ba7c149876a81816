package idbmigrate

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// DecodedValue is the recovered form of a source record value. Structured
// holds a JSON-shaped value (map, slice, string, float64, bool, nil); when
// recovery fails the original bytes are kept in Opaque, unchanged.
type DecodedValue struct {
	Structured any
	IsStruct   bool
	Opaque     []byte
}

// DecodeValue recovers a structured value from a serialized source blob.
// Priority order: whole-buffer JSON, then the first balanced {...} or [...]
// substring inside the buffer (the source serializer wraps JSON text in a
// binary envelope), then opaque bytes. It never fails; every decode problem
// degrades to Opaque.
func DecodeValue(raw []byte) DecodedValue {
	if !utf8.Valid(raw) {
		return opaqueValue(raw)
	}
	text := string(raw)

	if trimmed := strings.TrimSpace(text); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return DecodedValue{Structured: v, IsStruct: true}
		}
	}

	if sub, ok := balancedJSONSubstring(text); ok {
		var v any
		if err := json.Unmarshal([]byte(sub), &v); err == nil {
			return DecodedValue{Structured: v, IsStruct: true}
		}
	}

	return opaqueValue(raw)
}

func opaqueValue(raw []byte) DecodedValue {
	return DecodedValue{Opaque: append([]byte(nil), raw...)}
}

// balancedJSONSubstring finds the first {...} or [...] run whose brackets
// balance, skipping over string literals and escapes so that braces inside
// quoted text do not confuse the depth count. It is a recovery heuristic,
// not a JSON validator; the caller still parses the result strictly.
func balancedJSONSubstring(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
