// Package parser converts inbound payment-event files into canonical
// reconciliation batches. Three interchangeable formats are supported:
// delimited (CSV), fixed-width, and markup (XML). A failed record never
// aborts its batch; failures are reported per record as ErrorClass entries.
package parser

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"transaction-recon/internal/models"
)

// ErrNotFound is returned when the source path does not exist. Callers
// treat it as a no-op, not a failure.
var ErrNotFound = errors.New("source file not found")

// Format parses one file into a batch. The second return value lists
// per-record failures; a non-nil error means the whole file is unusable
// and no batch was produced.
type Format interface {
	Parse(path string) (*models.ReconciliationBatch, []models.ErrorClass, error)
}

// Registry selects a Format by file extension.
type Registry struct {
	formats map[string]Format
}

// NewRegistry returns a registry with the standard extension bindings.
func NewRegistry() *Registry {
	return &Registry{formats: map[string]Format{
		".csv": &Delimited{},
		".dat": &FixedWidth{},
		".xml": &Markup{},
	}}
}

// Register binds ext (with dot) to a format, replacing any existing binding.
func (r *Registry) Register(ext string, f Format) {
	r.formats[strings.ToLower(ext)] = f
}

// ForFile returns the format registered for the file's extension.
func (r *Registry) ForFile(path string) (Format, bool) {
	f, ok := r.formats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// systemFromPath derives the source system from the file's parent
// directory, per the <root>/<region>/<system>/<file> layout.
func systemFromPath(path string) string {
	return filepath.Base(filepath.Dir(path))
}

// regionFromPath derives the region from the parent-of-parent directory.
func regionFromPath(path string) string {
	return filepath.Base(filepath.Dir(filepath.Dir(path)))
}

// parseAmount parses a numeric field into its absolute value. An empty
// field is a present-but-null amount, not an error.
func parseAmount(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	abs := d.Abs()
	return &abs, nil
}

// parseTimestamp accepts the timestamp layouts seen across source systems.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "20060102150405"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp: " + raw)
}

func notFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
