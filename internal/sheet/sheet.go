// Package sheet decodes uploaded spreadsheets (CSV or XLSX) into rows keyed
// by header text, and writes the blank import template.
package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/ExamSeat/internal/core"
)

// Format is a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrEmpty is returned for files without a header and at least one data row.
	ErrEmpty = errors.New("empty file: no header or data rows")

	// ErrUnsupported is returned for file names with an unknown extension.
	ErrUnsupported = errors.New("unsupported file type")
)

// DecodeError reports a file that could not be parsed in its format.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == FormatXLSX {
		return "invalid spreadsheet: " + e.Err.Error()
	}
	return "invalid csv: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// headerScanDepth bounds how many leading rows are searched for the header.
const headerScanDepth = 20

// FormatOf picks the format from a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w %q: upload .csv or .xlsx", ErrUnsupported, filepath.Ext(name))
}

// Decode reads the file named name from r.
func Decode(name string, r io.Reader) ([]core.RawRow, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	var records [][]string
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		records, err = readCSV(r)
	}
	if err != nil {
		return nil, err
	}
	return toRows(records)
}

// readCSV decodes UTF-8 (BOM optional) or BOM-marked UTF-16 text. Invalid
// byte sequences become U+FFFD. The delimiter is a comma unless the first
// line has more semicolons or tabs.
func readCSV(r io.Reader) ([][]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	br := bufio.NewReader(decoded)

	peek, _ := br.Peek(4096)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(peek)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &DecodeError{Format: FormatCSV, Err: err}
	}
	return records, nil
}

func sniffDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	best, bestCount := ',', bytes.Count(sample, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(sample, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// readXLSX reads the first worksheet with raw cell values, so dates and
// times arrive as serial numbers and day fractions.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &DecodeError{Format: FormatXLSX, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Format: FormatXLSX, Err: err}
	}
	return rows, nil
}

// toRows locates the header and keys every following record by it.
// Columns with a blank header are dropped; short records get "" cells.
func toRows(records [][]string) ([]core.RawRow, error) {
	h := findHeader(records)
	if h < 0 {
		return nil, ErrEmpty
	}
	header := make([]string, len(records[h]))
	for i, cell := range records[h] {
		header[i] = strings.TrimSpace(cell)
	}

	// Columns whose headers normalize to the same key share the name of the
	// leftmost one; its value wins unless blank.
	canonical := make(map[string]string, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		key := core.HeaderKey(name)
		if first, ok := canonical[key]; ok {
			header[i] = first
			continue
		}
		canonical[key] = name
	}

	rows := make([]core.RawRow, 0, len(records)-h-1)
	for _, rec := range records[h+1:] {
		row := make(core.RawRow, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			if prev, _ := row[name].(string); strings.TrimSpace(prev) != "" {
				continue
			}
			row[name] = cell
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

// findHeader returns the index of the first row naming at least two
// required columns, else the first non-empty row, else -1.
func findHeader(records [][]string) int {
	required := make(map[string]bool, len(core.RequiredColumns))
	for _, c := range core.RequiredColumns {
		required[c] = true
	}
	first := -1
	for i, rec := range records {
		if i >= headerScanDepth {
			break
		}
		if isEmptyRecord(rec) {
			continue
		}
		if first < 0 {
			first = i
		}
		hits := 0
		for _, cell := range rec {
			if required[core.HeaderKey(cell)] {
				hits++
			}
		}
		if hits >= 2 {
			return i
		}
	}
	return first
}

func isEmptyRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
