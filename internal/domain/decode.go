package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// decodeObject parses payload as a JSON object, keeping each field raw so that
// callers decide field by field what to accept.
func decodeObject(payload []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode object: payload is null")
	}
	return fields, nil
}

// decodeList accepts either a bare JSON array or an object wrapping one
// array under any of the given keys.
func decodeList(payload []byte, wrapperKeys ...string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}

	fields, err := decodeObject(trimmed)
	if err != nil {
		return nil, err
	}
	for _, key := range wrapperKeys {
		if raw, ok := fields[key]; ok {
			if items, ok := rawArray(raw); ok {
				return items, nil
			}
		}
	}
	return nil, fmt.Errorf("decode list: no array found")
}

func rawArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, false
	}
	return items, true
}

// stringField returns the trimmed string at key, or "" when it is absent or
// not a string.
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// numberField reads a number that may also arrive as a numeric string.
func numberField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func stringListField(fields map[string]json.RawMessage, key string) []string {
	items, ok := rawArray(fields[key])
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func errMissingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}
