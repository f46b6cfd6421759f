package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"land-crawler/models"
)

// JSONWriter exports the full per-complex records, articles included.
type JSONWriter struct {
	path string
}

func NewJSONWriter(path string) (*JSONWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{path: path}, nil
}

func (j *JSONWriter) Path() string { return j.path }

// Write serialises results as an indented JSON array. Error records are kept.
func (j *JSONWriter) Write(results []models.TargetResult) error {
	if results == nil {
		results = []models.TargetResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("json: marshal: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", j.path, err)
	}
	return nil
}

func (j *JSONWriter) Close() error { return nil }
