package session

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/pkg/file"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var (
	// ErrNothingToExport is returned when the log has no records.
	ErrNothingToExport = errors.New("no session records to export")
	// ErrUnsupportedFormat is returned for an export format other than csv or json.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// csvHeader mirrors the columns of the results sheet.
var csvHeader = []string{"timestamp", "baseline", "peak", "dHR", "t_peak_s", "recov60", "verdict", "interpretation"}

// WriteCSV writes records as CSV with one decimal per measurement.
func WriteCSV(w io.Writer, records []models.SessionRecord) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Timestamp.Format(time.RFC3339),
			formatValue(r.Baseline),
			formatValue(r.Peak),
			formatValue(r.DeltaHR),
			formatValue(r.TPeakSeconds),
			formatValue(r.Recov60),
			string(r.Verdict),
			r.Interpretation,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFileName returns the default name for an export taken at t.
func ExportFileName(t time.Time, format string) string {
	return fmt.Sprintf("ortho_%s.%s", t.Format("20060102_1504"), format)
}

// Exporter writes session records to disk.
type Exporter struct {
	fileClient file.FileOperations
	dir        string
}

// NewExporter creates an Exporter that writes into dir.
func NewExporter(fileClient file.FileOperations, dir string) *Exporter {
	return &Exporter{fileClient: fileClient, dir: dir}
}

// Export writes records in the given format and returns the path written.
func (e *Exporter) Export(records []models.SessionRecord, format string, at time.Time) (string, error) {
	if len(records) == 0 {
		return "", ErrNothingToExport
	}

	if format != FormatCSV && format != FormatJSON {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := e.fileClient.EnsureDir(e.dir); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", e.dir, err)
	}

	path := filepath.Join(e.dir, ExportFileName(at, format))

	switch format {
	case FormatJSON:
		if err := e.fileClient.WriteJsonFile(path, records); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	case FormatCSV:
		err := e.fileClient.WriteAtomic(path, func(w io.Writer) error {
			return WriteCSV(w, records)
		})
		if err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	return path, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
}
