// Package snapshot defines the on-disk format for table backups: one
// newline-delimited JSON file per table, self-describing enough to restore a
// table subset from a full backup.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaVersion marks the current snapshot file layout.
const SchemaVersion = 1

// Header is the first line of every snapshot file.
type Header struct {
	Table         string   `json:"table"`
	SchemaVersion int      `json:"schema_version"`
	Columns       []string `json:"columns"`
	PrimaryKey    string   `json:"primary_key"`
	RowCount      int64    `json:"row_count"`
}

// Row is one table row keyed by column name. Values carry whatever the
// database returned; JSON round-tripping normalizes integers to float64,
// which SQLite accepts back without loss for the cataloged tables.
type Row map[string]any

// Encode serializes a header and row set. Row order is preserved.
func Encode(h Header, rows []Row) ([]byte, error) {
	h.SchemaVersion = SchemaVersion
	h.RowCount = int64(len(rows))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot file, validating the header before reading rows.
func Decode(data []byte) (Header, []Row, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return Header{}, nil, fmt.Errorf("empty snapshot file")
	}

	var h Header
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
		return Header{}, nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Table == "" {
		return Header{}, nil, fmt.Errorf("snapshot header missing table name")
	}
	if h.SchemaVersion != SchemaVersion {
		return Header{}, nil, fmt.Errorf("unsupported snapshot schema version %d", h.SchemaVersion)
	}

	var rows []Row
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return Header{}, nil, fmt.Errorf("decode row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return Header{}, nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return h, rows, nil
}
