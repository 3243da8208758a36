// Package csvfile implements reading and writing of metaobject content
// export CSV files.
//
// The expected file format is a UTF-8 CSV with a header row containing at
// least the Type, Field, and Default content columns. Rows are exposed as
// column-name -> value maps while the header preserves the original column
// order, so the output file keeps the input column order with the
// Translated content column appended at the end when missing.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Well-known column names.
const (
	ColType              = "Type"
	ColField             = "Field"
	ColDefaultContent    = "Default content"
	ColTranslatedContent = "Translated content"
)

// requiredColumns must be present in the input header.
var requiredColumns = []string{ColType, ColField, ColDefaultContent}

// Row is one CSV record as a column-name -> value mapping.
type Row map[string]string

// File is a parsed CSV export held fully in memory.
type File struct {
	// Header is the column list in file order.
	Header []string
	// Rows are the records in file order.
	Rows []Row
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// ReadFile reads and parses a CSV export.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows; missing cells become ""

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading %s: no header row", path)
	}

	header := records[0]
	if len(header) > 0 {
		// Strip a UTF-8 BOM exported by spreadsheet tools.
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var missing []string
	for _, col := range requiredColumns {
		if !contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("reading %s: missing required columns: %s", path, strings.Join(missing, ", "))
	}

	file := &File{Header: header}
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		file.Rows = append(file.Rows, row)
	}

	return file, nil
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// EnsureColumn appends a column to the header if it is not already present.
func (f *File) EnsureColumn(name string) {
	if !contains(f.Header, name) {
		f.Header = append(f.Header, name)
	}
}

// WriteFile writes the file to path. Cells for header columns missing from
// a row are written empty.
func (f *File) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	w.UseCRLF = runtime.GOOS == "windows"

	if err := w.Write(f.Header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	record := make([]string, len(f.Header))
	for _, row := range f.Rows {
		for i, col := range f.Header {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
