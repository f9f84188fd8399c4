package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// writeRecording writes data to dir as <prefix>-<timestamp>.wav, adding a
// counter when that name is taken. The file only appears under its final
// name once fully written.
func writeRecording(dir, prefix string, now time.Time, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory: %w", err)
	}

	base := fmt.Sprintf("%s-%s", prefix, now.Format("20060102-150405"))
	path := filepath.Join(dir, base+".wav")
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.wav", base, i))
	}

	tmp, err := os.CreateTemp(dir, base+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", errors.Join(err, tmp.Close()))
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to move recording: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
