package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"b3ingest/internal/checksum"
)

// writeFileAtomic writes data to path without ever exposing a half-written
// file: the bytes go to a temp file in the destination directory first and
// are renamed into place once durable.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// writeArtifact persists one artifact atomically and, only once the main
// file is in place, writes its checksum sidecar. Returns the digest.
func writeArtifact(path string, data []byte) (string, error) {
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	digest := checksum.SHA256Bytes(data)
	if err := writeFileAtomic(path+".checksum", []byte(digest+"\n")); err != nil {
		return "", fmt.Errorf("artifact written but sidecar failed: %w", err)
	}
	return digest, nil
}
