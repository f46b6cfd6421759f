package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"land-crawler/models"
)

// StatusFile keeps the latest run status in a JSON file that readers never see half-written.
type StatusFile struct {
	path string
}

func NewStatusFile(path string) (*StatusFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("status: create dir: %w", err)
	}
	return &StatusFile{path: path}, nil
}

func (s *StatusFile) Path() string { return s.path }

// WriteStatus replaces the file via a temp file and rename.
func (s *StatusFile) WriteStatus(_ context.Context, status models.RunStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("status: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".status-*.json")
	if err != nil {
		return fmt.Errorf("status: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("status: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("status: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("status: rename: %w", err)
	}
	return nil
}

// ReadStatus loads the last written status.
func (s *StatusFile) ReadStatus() (models.RunStatus, error) {
	var status models.RunStatus
	data, err := os.ReadFile(s.path)
	if err != nil {
		return status, fmt.Errorf("status: read: %w", err)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf("status: decode: %w", err)
	}
	return status, nil
}

func (s *StatusFile) Close() error { return nil }
