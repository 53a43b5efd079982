// Package report aggregates run records and writes them as CSV and spreadsheet files.
package report

import (
	"sort"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// ErrorCount is one row of the failure message frequency table.
type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Summary is the aggregate of a run.
type Summary struct {
	Total      int          `json:"total"`
	Success    int          `json:"success"`
	Failure    int          `json:"failure"`
	ParseError int          `json:"parse_error"`
	Errors     []ErrorCount `json:"errors,omitempty"`
}

// Summarize counts records per status and tallies failure messages.
// The table is ordered by count, ties keep first-seen order.
func Summarize(records []core.Record) Summary {
	s := Summary{Total: len(records)}
	pos := make(map[string]int)
	for _, r := range records {
		switch r.Status {
		case core.StatusSuccess:
			s.Success++
		case core.StatusFailure:
			s.Failure++
			msg := r.ErrorMessage
			if i, ok := pos[msg]; ok {
				s.Errors[i].Count++
			} else {
				pos[msg] = len(s.Errors)
				s.Errors = append(s.Errors, ErrorCount{Message: msg, Count: 1})
			}
		case core.StatusParseError:
			s.ParseError++
		}
	}
	sort.SliceStable(s.Errors, func(i, j int) bool { return s.Errors[i].Count > s.Errors[j].Count })
	return s
}

// Empty reports whether there is nothing to summarize.
func (s Summary) Empty() bool { return s.Total == 0 }

// Count returns the number of records with status.
func (s Summary) Count(status core.Status) int {
	switch status {
	case core.StatusSuccess:
		return s.Success
	case core.StatusFailure:
		return s.Failure
	case core.StatusParseError:
		return s.ParseError
	}
	return 0
}

// Percent is the share of records with status, 0 when there are no records.
func (s Summary) Percent(status core.Status) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Count(status)) * 100 / float64(s.Total)
}

// Share is the share of failures carrying e's message.
func (s Summary) Share(e ErrorCount) float64 {
	if s.Failure == 0 {
		return 0
	}
	return float64(e.Count) * 100 / float64(s.Failure)
}
