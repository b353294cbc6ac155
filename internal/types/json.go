package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DecodeConfig deserializes an ExtractionConfig from JSON accepting both
// snake_case and camelCase field names. Surface layers in different languages
// send whichever casing is idiomatic for them; both must deserialize
// identically.
func DecodeConfig(data []byte) (*ExtractionConfig, error) {
	normalized, err := normalizeJSONKeys(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	var cfg ExtractionConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeJSONKeys rewrites every snake_case object key to camelCase,
// recursively. Values are untouched, so open-ended maps like
// Metadata.Additional keep their original keys.
func normalizeJSONKeys(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeValue(v))
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[snakeToCamel(k)] = normalizeValue(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}

func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
