// Package exporter writes canonical tables as deterministic CSV snapshots
// with checksum sidecars.
package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"b3ingest/internal/checksum"
	"b3ingest/pkg/contracts/domain"
)

// WriteSnapshot serializes the table deterministically, writes it atomically
// to path, writes the checksum sidecar, and returns the digest. Re-exporting
// a logically equal table yields an identical file and digest.
func WriteSnapshot(t *domain.Table, path string) (string, error) {
	if t == nil {
		return "", fmt.Errorf("nothing to export: table is nil")
	}

	data := checksum.SerializeTable(t, checksum.Options{IncludeIndex: true})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	digest := checksum.SHA256Bytes(data)
	if err := os.WriteFile(path+".checksum", []byte(digest+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("snapshot written but sidecar failed: %w", err)
	}
	return digest, nil
}
