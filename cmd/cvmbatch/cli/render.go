package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xiansir-zhe/cloud-tool/internal/artifact"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/report"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func printRecords(w io.Writer, records []core.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSTATUS\tREQUEST ID\tERROR\tTIME")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.TargetID, r.Status, r.RequestID, r.ErrorMessage, r.Timestamp.Local().Format(time.DateTime))
	}
	tw.Flush()
}

func printMappings(w io.Writer, op core.Operation, mappings []core.Mapping) {
	if len(mappings) == 0 {
		return
	}
	header := report.ImageMappingHeader
	if op == core.OpCreateSnapshot {
		header = report.SnapshotMappingHeader
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", header[0], header[1])
	for _, m := range mappings {
		fmt.Fprintf(tw, "%s\t%s\n", m.SourceID, m.CreatedID)
	}
	tw.Flush()
}

// renderSummary draws the run totals with percentages. An empty run is reported as such.
func renderSummary(s report.Summary) string {
	if s.Empty() {
		return boxStyle.Render(titleStyle.Render("Summary") + "\n" + mutedStyle.Render("0 items processed"))
	}

	body := titleStyle.Render("Summary") + "\n" +
		fmt.Sprintf("Total:    %d\n", s.Total) +
		successStyle.Render(fmt.Sprintf("Success:  %d (%s)", s.Success, report.FormatPercent(s.Percent(core.StatusSuccess)))) + "\n" +
		failureStyle.Render(fmt.Sprintf("Failure:  %d (%s)", s.Failure, report.FormatPercent(s.Percent(core.StatusFailure))))
	if s.ParseError > 0 {
		body += "\n" + warningStyle.Render(fmt.Sprintf("Parse:    %d (%s)", s.ParseError, report.FormatPercent(s.Percent(core.StatusParseError))))
	}
	for _, e := range s.Errors {
		body += "\n" + mutedStyle.Render(fmt.Sprintf("  %dx %s", e.Count, e.Message))
	}
	return boxStyle.Render(body)
}

func printArtifacts(w io.Writer, root string, recs []artifact.Record) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render("Artifacts"))
	for _, r := range recs {
		fmt.Fprintf(w, "  %s %s\n", filepath.Join(root, r.RunID, r.Name), mutedStyle.Render(fmt.Sprintf("(%d bytes)", r.ByteSize)))
	}
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintln(w, warningStyle.Render("warning: "+msg))
	}
}
