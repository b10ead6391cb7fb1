// Package export serializes result rows to the supported artifact formats:
// delimited CSV, a JSON envelope with export metadata, and an XLSX sheet.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"sirenscope/internal/csvio"
)

// Row is one flat output record, keyed by column name.
type Row map[string]string

// Format selects the artifact encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("unknown output format %q (want csv, json or xlsx)", s)
	}
}

// Metadata is the JSON envelope header describing one export run.
type Metadata struct {
	ExportID   string         `json:"export_id"`
	ExportedAt time.Time      `json:"exported_at"`
	Filters    map[string]any `json:"filters"`
	Total      int            `json:"total"`
}

// NewMetadata stamps an envelope for the given filter parameters.
func NewMetadata(filters map[string]any, total int) Metadata {
	return Metadata{
		ExportID:   uuid.NewString(),
		ExportedAt: time.Now().UTC(),
		Filters:    filters,
		Total:      total,
	}
}

// Writer writes result artifacts.
type Writer struct {
	Delimiter rune
	log       *zap.Logger
}

// NewWriter returns a writer using the given CSV delimiter.
func NewWriter(delim rune, log *zap.Logger) *Writer {
	if delim == 0 {
		delim = csvio.DefaultDelimiter
	}
	return &Writer{Delimiter: delim, log: log}
}

// Export writes rows under the given column order to path in the requested
// format, creating parent directories as needed. A zero-row CSV still gets a
// valid header-only file; a failed XLSX write falls back to CSV with a
// warning instead of failing the run.
func (w *Writer) Export(rows []Row, columns []string, format Format, path string, meta Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "create output directory for %s", path)
	}

	switch format {
	case FormatJSON:
		return w.writeJSON(rows, path, meta)
	case FormatXLSX:
		if err := w.writeXLSX(rows, columns, path); err != nil {
			fallback := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
			w.log.Warn("spreadsheet export failed, falling back to CSV",
				zap.Error(err), zap.String("path", fallback))
			return w.writeCSV(rows, columns, fallback)
		}
		return nil
	default:
		return w.writeCSV(rows, columns, path)
	}
}

func (w *Writer) writeCSV(rows []Row, columns []string, path string) error {
	var b strings.Builder
	b.WriteString(csvio.EncodeRow(columns, w.Delimiter))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(csvio.EncodeRow(cells(row, columns), w.Delimiter))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "write CSV %s", path)
	}
	return nil
}

func (w *Writer) writeJSON(rows []Row, path string, meta Metadata) error {
	if rows == nil {
		rows = []Row{}
	}
	envelope := struct {
		Metadata Metadata `json:"metadata"`
		Rows     []Row    `json:"rows"`
	}{Metadata: meta, Rows: rows}

	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode JSON export")
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "write JSON %s", path)
	}
	return nil
}

func (w *Writer) writeXLSX(rows []Row, columns []string, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return eris.Wrap(err, "write sheet header")
	}
	for i, row := range rows {
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrap(err, "sheet coordinates")
		}
		values := make([]any, len(columns))
		for j, c := range cells(row, columns) {
			values[j] = c
		}
		if err := f.SetSheetRow(sheet, anchor, &values); err != nil {
			return eris.Wrapf(err, "write sheet row %d", i+2)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "save spreadsheet %s", path)
	}
	return nil
}

func cells(row Row, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = row[c]
	}
	return out
}
