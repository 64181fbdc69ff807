// Package toon implements the subset of the TOON line format the ranking
// pipeline exchanges with its answer provider: scalar fields rendered as
// "key: value" and sized lists rendered as "key[N]: v1,v2,...,vN".
package toon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Decode parses TOON text into a map. Each non-empty line must be either a
// scalar field ("key: value") or a sized list ("key[N]: v1,...,vN"). List
// values decode to []string, scalars to string. A declared size that does
// not match the number of comma-separated values is an error: the size
// header is the provider's own claim about its output and a mismatch means
// the line is malformed.
func Decode(text string) (map[string]any, error) {
	out := map[string]any{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, rest, ok := splitKey(line)
		if !ok {
			return nil, fmt.Errorf("toon: malformed line %q", clamp(line, 80))
		}
		name, size, sized, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		if !sized {
			out[name] = strings.TrimSpace(rest)
			continue
		}
		values := splitValues(rest)
		if len(values) != size {
			return nil, fmt.Errorf("toon: field %q declares %d values, found %d", name, size, len(values))
		}
		out[name] = values
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("toon: empty document")
	}
	return out, nil
}

// Encode renders a decoded-JSON-shaped value (map[string]any with string,
// number, bool or flat list values) as TOON text. It is the inverse of
// Decode for the subset this system emits; nested objects and list items
// containing commas are rejected rather than quoted.
func Encode(v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", fmt.Errorf("toon: top-level value must be an object, got %T", v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if err := validKey(k); err != nil {
			return "", err
		}
		switch val := m[k].(type) {
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				s, err := scalarString(k, item)
				if err != nil {
					return "", err
				}
				if strings.Contains(s, ",") {
					return "", fmt.Errorf("toon: list item in %q contains a comma", k)
				}
				items = append(items, s)
			}
			fmt.Fprintf(&b, "%s[%d]: %s\n", k, len(items), strings.Join(items, ","))
		case []string:
			for _, s := range val {
				if strings.Contains(s, ",") {
					return "", fmt.Errorf("toon: list item in %q contains a comma", k)
				}
			}
			fmt.Fprintf(&b, "%s[%d]: %s\n", k, len(val), strings.Join(val, ","))
		default:
			s, err := scalarString(k, val)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%s: %s\n", k, s)
		}
	}
	return b.String(), nil
}

func splitKey(line string) (key, rest string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func parseKey(key string) (name string, size int, sized bool, err error) {
	open := strings.Index(key, "[")
	if open < 0 {
		if err := validKey(key); err != nil {
			return "", 0, false, err
		}
		return key, 0, false, nil
	}
	if !strings.HasSuffix(key, "]") || open == 0 {
		return "", 0, false, fmt.Errorf("toon: malformed key %q", key)
	}
	name = key[:open]
	if err := validKey(name); err != nil {
		return "", 0, false, err
	}
	size, convErr := strconv.Atoi(key[open+1 : len(key)-1])
	if convErr != nil || size < 0 {
		return "", 0, false, fmt.Errorf("toon: malformed list size in key %q", key)
	}
	return name, size, true, nil
}

func splitValues(rest string) []string {
	if strings.TrimSpace(rest) == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		values = append(values, strings.TrimSpace(p))
	}
	return values
}

func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("toon: empty key")
	}
	for i, r := range key {
		alpha := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		digit := r >= '0' && r <= '9'
		if !alpha && !(digit && i > 0) {
			return fmt.Errorf("toon: invalid key %q", key)
		}
	}
	return nil
}

func scalarString(key string, v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("toon: unsupported value type %T for key %q", v, key)
	}
}

func clamp(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
