// Package db stores match cells in Postgres, SQLite or Turso.
//
// Every backend uses the same match_cells layout: one row per
// (entity_id, family, qualifier, version) with the value JSON encoded.
// All cells of one match are written in a single transaction.
package db

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Stored is one cell read back from a table
type Stored struct {
	Version int64
	Value   json.RawMessage
}

// Decode unmarshals the stored value into v
func (s Stored) Decode(v any) error {
	return json.Unmarshal(s.Value, v)
}

func encodeValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode cell value: %w", err)
	}
	return string(data), nil
}
