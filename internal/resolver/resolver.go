// Package resolver substitutes {{dotted.path}} placeholders inside tool
// arguments with values produced by earlier plan steps.
package resolver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	tokenOpen  = "{{"
	tokenClose = "}}"
)

// Resolve returns a copy of value with every placeholder resolved against ctx.
//
// A string that is exactly one placeholder yields the referenced value with its
// type intact (nil when unresolved). Placeholders embedded in text are replaced
// by the string form of their value, or "" when unresolved, in one left-to-right
// pass. Maps and slices are walked element-wise; other values are returned as is.
func Resolve(value interface{}, ctx map[string]interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return resolveString(v, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = Resolve(item, ctx)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Resolve(item, ctx)
		}
		return out
	default:
		return value
	}
}

// ResolveArgs resolves a step's argument map. A nil map resolves to an empty one.
func ResolveArgs(args map[string]interface{}, ctx map[string]interface{}) map[string]interface{} {
	if args == nil {
		return map[string]interface{}{}
	}
	return Resolve(args, ctx).(map[string]interface{})
}

// Lookup walks path ("tool.field.sub") through ctx. Missing segments yield nil.
func Lookup(ctx map[string]interface{}, path string) interface{} {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	top, rest, nested := strings.Cut(path, ".")
	cur, ok := ctx[top]
	if !ok {
		return nil
	}
	if !nested {
		return cur
	}
	for _, part := range strings.Split(rest, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

// HasPlaceholder reports whether s contains at least one complete token.
func HasPlaceholder(s string) bool {
	i := strings.Index(s, tokenOpen)
	return i >= 0 && strings.Contains(s[i+len(tokenOpen):], tokenClose)
}

func resolveString(s string, ctx map[string]interface{}) interface{} {
	if key, ok := wholeToken(s); ok {
		return Lookup(ctx, key)
	}
	if !HasPlaceholder(s) {
		return s
	}

	var b strings.Builder
	rest := s
	for {
		i := strings.Index(rest, tokenOpen)
		if i < 0 {
			break
		}
		j := strings.Index(rest[i+len(tokenOpen):], tokenClose)
		if j < 0 {
			break
		}
		key := rest[i+len(tokenOpen) : i+len(tokenOpen)+j]
		b.WriteString(rest[:i])
		b.WriteString(Stringify(Lookup(ctx, key)))
		rest = rest[i+len(tokenOpen)+j+len(tokenClose):]
	}
	b.WriteString(rest)
	return b.String()
}

// wholeToken reports whether the trimmed string is a single placeholder.
func wholeToken(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, tokenOpen) || !strings.HasSuffix(t, tokenClose) || len(t) < len(tokenOpen)+len(tokenClose) {
		return "", false
	}
	inner := t[len(tokenOpen) : len(t)-len(tokenClose)]
	if strings.Contains(inner, tokenOpen) || strings.Contains(inner, tokenClose) {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// Stringify renders a resolved value for textual substitution.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
