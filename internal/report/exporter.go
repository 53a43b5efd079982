package report

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/xiansir-zhe/cloud-tool/internal/artifact"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// Artifact file names.
const (
	ResultsFile         = "results.csv"
	StatisticsFile      = "statistics.csv"
	SpreadsheetFile     = "results.xlsx"
	ImageMappingFile    = "image_ids.csv"
	SnapshotMappingFile = "snapshot_info.csv"
	ResponseLogFile     = "responses.log"
)

// Bundle is what one export produced.
type Bundle struct {
	RunID     string            `json:"run_id"`
	Summary   Summary           `json:"summary"`
	Artifacts []artifact.Record `json:"artifacts"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// Exporter writes run results into the artifact store.
type Exporter struct {
	store  *artifact.Store
	sheet  SpreadsheetWriter
	logger zerolog.Logger

	sheetWarn sync.Once
}

// NewExporter creates an exporter. A nil sheet disables the spreadsheet output.
func NewExporter(store *artifact.Store, sheet SpreadsheetWriter, logger zerolog.Logger) *Exporter {
	return &Exporter{store: store, sheet: sheet, logger: logger}
}

// Export stores the results CSV, statistics, id mapping and spreadsheet of run.
// The spreadsheet is best effort: when it cannot be produced the first failure is
// reported once per Exporter and the CSV outputs are still delivered.
func (e *Exporter) Export(run *core.RunResult) (*Bundle, error) {
	summary := Summarize(run.Records)
	b := &Bundle{RunID: run.ID, Summary: summary}

	var buf bytes.Buffer
	if err := WriteRecordsCSV(&buf, run.Records); err != nil {
		return nil, fmt.Errorf("rendering results: %w", err)
	}
	if err := e.put(b, run.ID, ResultsFile, artifact.KindResults, &buf); err != nil {
		return nil, err
	}

	buf.Reset()
	if err := WriteStatisticsCSV(&buf, summary); err != nil {
		return nil, fmt.Errorf("rendering statistics: %w", err)
	}
	if err := e.put(b, run.ID, StatisticsFile, artifact.KindStatistics, &buf); err != nil {
		return nil, err
	}

	if name, header, ok := mappingFor(run.Operation); ok && len(run.Mappings) > 0 {
		buf.Reset()
		if err := WriteMappingsCSV(&buf, header, run.Mappings); err != nil {
			return nil, fmt.Errorf("rendering id mapping: %w", err)
		}
		if err := e.put(b, run.ID, name, artifact.KindMapping, &buf); err != nil {
			return nil, err
		}
	}

	if err := e.spreadsheet(b, run); err != nil {
		e.sheetWarn.Do(func() {
			msg := fmt.Sprintf("spreadsheet output skipped: %v", err)
			b.Warnings = append(b.Warnings, msg)
			e.logger.Warn().Err(err).Msg("spreadsheet output skipped, CSV files are still written")
		})
	}

	return b, nil
}

func (e *Exporter) spreadsheet(b *Bundle, run *core.RunResult) error {
	if e.sheet == nil {
		return ErrSpreadsheetUnavailable
	}
	var buf bytes.Buffer
	if err := e.sheet.WriteSpreadsheet(&buf, run.Records); err != nil {
		return err
	}
	return e.put(b, run.ID, SpreadsheetFile, artifact.KindSpreadsheet, &buf)
}

// StoreResponseLog records the raw response log of a run read from r.
func (e *Exporter) StoreResponseLog(b *Bundle, r io.Reader) error {
	return e.put(b, b.RunID, ResponseLogFile, artifact.KindResponseLog, r)
}

func (e *Exporter) put(b *Bundle, runID, name string, kind artifact.Kind, r io.Reader) error {
	rec, err := e.store.CreateFromReader(artifact.CreateInput{RunID: runID, Name: name, Kind: kind}, r)
	if err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	b.Artifacts = append(b.Artifacts, *rec)
	return nil
}

func mappingFor(op core.Operation) (string, [2]string, bool) {
	switch op {
	case core.OpCreateImage:
		return ImageMappingFile, ImageMappingHeader, true
	case core.OpCreateSnapshot:
		return SnapshotMappingFile, SnapshotMappingHeader, true
	}
	return "", [2]string{}, false
}
