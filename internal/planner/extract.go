package planner

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ExtractJSONObject decodes text as a JSON object. When text carries prose
// around the object, the first balanced {...} block is decoded instead.
// Numbers are kept as json.Number.
func ExtractJSONObject(text string) (map[string]interface{}, bool) {
	if obj, err := decodeObject(text); err == nil {
		return obj, true
	}
	block, ok := firstObject(text)
	if !ok {
		return nil, false
	}
	obj, err := decodeObject(block)
	if err != nil {
		return nil, false
	}
	return obj, true
}

// firstObject scans for the first balanced brace block, ignoring braces
// inside string literals.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeObject(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}
	var extra interface{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	return obj, nil
}
