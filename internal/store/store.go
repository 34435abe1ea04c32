package store

import (
	"encoding/json"
	"fmt"
)

// encodeNames serializes a table-name list for a TEXT column. A nil slice is
// stored as an empty JSON array so scans never see NULL.
func encodeNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("encode table list: %w", err)
	}
	return string(data), nil
}

func decodeNames(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("decode table list: %w", err)
	}
	return names, nil
}
