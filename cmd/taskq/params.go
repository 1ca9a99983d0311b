package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseParams implements the --params parsing rule: a leading '{' means
// the whole string is a JSON object; otherwise it is a comma-separated
// list of k=v pairs, each value JSON-decoded if possible and left as a
// plain string otherwise.
func parseParams(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "{") {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		return m, nil
	}

	m := make(map[string]interface{})
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		m[k] = decodeValue(v)
	}
	return m, nil
}

func decodeValue(v string) interface{} {
	var decoded interface{}
	if err := json.Unmarshal([]byte(v), &decoded); err == nil {
		return decoded
	}
	return v
}
