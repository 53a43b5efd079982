// Package input reads the CSV files that drive batch runs. Console exports are often
// GBK encoded; UTF-8 (with or without BOM) is tried first.
package input

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Column names of the input contracts.
const (
	ColInstanceID = "ID_cvm"
	ColCVMName    = "cvm_name"
	ColDataDiskID = "ID_dataDisk"
	ColImageID    = "ImageId"
	ColDiskID     = "ID"
	ColSnapshotID = "SnapshotId"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMissingColumn is matched by every *MissingColumnError.
var ErrMissingColumn = errors.New("missing required column")

// MissingColumnError names the required columns absent from a header.
type MissingColumnError struct {
	Missing []string
	Header  []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %s (found: %s)", ErrMissingColumn, strings.Join(e.Missing, ", "), strings.Join(e.Header, ", "))
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// Table is a decoded CSV with a header row.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadTable decodes r into a Table. Header names are trimmed; short rows are padded.
func ReadTable(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	text, err := decode(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("csv is empty: a header row is required")
	}

	t := &Table{index: make(map[string]int)}
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		t.Header = append(t.Header, h)
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	for _, rec := range records[1:] {
		if len(rec) < len(t.Header) {
			rec = append(rec, make([]string, len(t.Header)-len(rec))...)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// decode returns raw as UTF-8 text, converting from GBK when raw is not valid UTF-8.
func decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("decoding csv as GBK: %w", err)
	}
	return string(out), nil
}

// Require checks that every named column is present.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnError{Missing: missing, Header: t.Header}
	}
	return nil
}

// Get returns the trimmed cell of row in column col ("" when the column is absent).
func (t *Table) Get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Column returns the non-empty values of col, deduplicated in first-seen order.
func (t *Table) Column(col string) ([]string, error) {
	if err := t.Require(col); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		v := t.Get(row, col)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}
