package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AuditLog is an append-only structured record store, one JSON object per
// line. Appends are line-atomic: each record is a single buffered write
// terminated by a newline, so concurrent appenders never interleave partial
// records. Files left behind by an older array-based format are migrated via
// read-modify-write with an atomic replace.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

// NewAuditLog creates an audit log backed by the given file. The file is
// created on first append.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the backing file path.
func (l *AuditLog) Path() string { return l.path }

// Append writes one record to the log. The error is returned, never
// swallowed; the caller decides whether the job survives it. Ingest jobs
// always do, since the artifacts on disk are the authoritative evidence.
func (l *AuditLog) Append(record any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	line = append(line, '\n')

	if legacy, isLegacy := l.readLegacyArray(); isLegacy {
		return l.rewriteFromLegacy(legacy, line)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Records returns every record in the log as raw JSON documents, accepting
// both the line format and the legacy array format.
func (l *AuditLog) Records() ([]json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to decode legacy audit log: %w", err)
		}
		return records, nil
	}

	var records []json.RawMessage
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var raw json.RawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("corrupt audit log line: %w", err)
		}
		records = append(records, raw)
	}
	return records, nil
}

// readLegacyArray reports whether the current file holds the old
// whole-array format and, if so, returns its records.
func (l *AuditLog) readLegacyArray() ([]json.RawMessage, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, false
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, false
	}
	return records, true
}

// rewriteFromLegacy converts a legacy array file to line format plus the
// new record, replacing the file atomically so a crash mid-migration never
// loses prior entries.
func (l *AuditLog) rewriteFromLegacy(legacy []json.RawMessage, newLine []byte) error {
	var buf bytes.Buffer
	for _, rec := range legacy {
		buf.Write(rec)
		buf.WriteByte('\n')
	}
	buf.Write(newLine)

	if err := writeFileAtomic(l.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to migrate legacy audit log: %w", err)
	}
	return nil
}
