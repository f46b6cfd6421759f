package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"land-crawler/models"
)

// utf8BOM lets spreadsheet tools detect the Hangul text correctly.
const utf8BOM = "\uFEFF"

var csvHeader = []string{
	"complex_no", "complex_name", "households", "dongs", "approved",
	"min_area", "max_area", "min_price", "max_price", "latitude", "longitude",
	"articles", "more_data", "attempts", "error", "crawled_at",
}

// CSVWriter writes one overview row per complex.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the BOM and header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}
	if _, err := f.WriteString(utf8BOM); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

func (c *CSVWriter) Write(results []models.TargetResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range results {
		if err := c.writer.Write(overviewRow(r)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

func overviewRow(r models.TargetResult) []string {
	row := make([]string, len(csvHeader))
	row[0] = string(r.Target)
	if o := r.Overview; o != nil {
		row[1] = o.ComplexName
		row[2] = o.TotalHouseHoldCount.String()
		row[3] = o.TotalDongCount.String()
		row[4] = string(o.UseApproveYmd)
		row[5] = o.MinArea.String()
		row[6] = o.MaxArea.String()
		row[7] = o.MinPriceByLetter
		row[8] = o.MaxPriceByLetter
		row[9] = o.Latitude.String()
		row[10] = o.Longitude.String()
	}
	if a := r.Articles; a != nil {
		row[11] = strconv.Itoa(len(a.Items))
		row[12] = strconv.FormatBool(a.MoreDataAvailable)
	}
	row[13] = strconv.Itoa(r.Attempts)
	row[14] = r.Error
	if !r.CrawledAt.IsZero() {
		row[15] = r.CrawledAt.Format(time.RFC3339)
	}
	return row
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
