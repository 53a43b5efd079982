package report

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// RecordsHeader is the header of the results CSV.
var RecordsHeader = []string{"target_id", "status", "error_message", "request_id", "timestamp"}

// Mapping CSV headers per operation.
var (
	ImageMappingHeader    = [2]string{"InstanceId", "ImageId"}
	SnapshotMappingHeader = [2]string{"DiskId", "SnapshotId"}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newCSVWriter writes a UTF-8 BOM first so spreadsheet apps pick the right encoding.
func newCSVWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := w.Write(utf8BOM); err != nil {
		return nil, err
	}
	return csv.NewWriter(w), nil
}

// WriteRecordsCSV writes one row per record.
func WriteRecordsCSV(w io.Writer, records []core.Record) error {
	cw, err := newCSVWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(RecordsHeader); err != nil {
		return err
	}
	for _, r := range records {
		ts := ""
		if !r.Timestamp.IsZero() {
			ts = r.Timestamp.Format(time.RFC3339)
		}
		if err := cw.Write([]string{r.TargetID, string(r.Status), r.ErrorMessage, r.RequestID, ts}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRecordsCSV parses a file written by WriteRecordsCSV.
func ReadRecordsCSV(r io.Reader) ([]core.Record, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing results csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("results csv is empty")
	}
	if len(rows[0]) < len(RecordsHeader) || rows[0][0] != RecordsHeader[0] || rows[0][1] != RecordsHeader[1] {
		return nil, fmt.Errorf("unexpected results header %v", rows[0])
	}

	records := make([]core.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < len(RecordsHeader) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+2, len(RecordsHeader), len(row))
		}
		rec := core.Record{
			TargetID:     row[0],
			Status:       core.Status(row[1]),
			ErrorMessage: row[2],
			RequestID:    row[3],
		}
		if row[4] != "" {
			ts, err := time.Parse(time.RFC3339, row[4])
			if err != nil {
				return nil, fmt.Errorf("row %d: bad timestamp: %w", i+2, err)
			}
			rec.Timestamp = ts
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteMappingsCSV writes source to created id pairs under header.
func WriteMappingsCSV(w io.Writer, header [2]string, mappings []core.Mapping) error {
	cw, err := newCSVWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(header[:]); err != nil {
		return err
	}
	for _, m := range mappings {
		if err := cw.Write([]string{m.SourceID, m.CreatedID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatisticsCSV writes counts with percentages, then the failure message table.
func WriteStatisticsCSV(w io.Writer, s Summary) error {
	cw, err := newCSVWriter(w)
	if err != nil {
		return err
	}
	rows := [][]string{
		{"metric", "count", "percentage"},
		{"total", strconv.Itoa(s.Total), FormatPercent(100)},
		{"success", strconv.Itoa(s.Success), FormatPercent(s.Percent(core.StatusSuccess))},
		{"failure", strconv.Itoa(s.Failure), FormatPercent(s.Percent(core.StatusFailure))},
		{"parse_error", strconv.Itoa(s.ParseError), FormatPercent(s.Percent(core.StatusParseError))},
	}
	if s.Total == 0 {
		rows[1][2] = FormatPercent(0)
	}
	if len(s.Errors) > 0 {
		rows = append(rows, []string{}, []string{"error_message", "count", "share_of_failures"})
		for _, e := range s.Errors {
			rows = append(rows, []string{e.Message, strconv.Itoa(e.Count), FormatPercent(s.Share(e))})
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// FormatPercent renders a percentage with one decimal.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}
