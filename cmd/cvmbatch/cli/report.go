package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/report"
	"github.com/xiansir-zhe/cloud-tool/internal/responselog"
)

// RegisterReportCommands adds offline report commands.
func RegisterReportCommands(root *cobra.Command) {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize result files and response logs",
	}
	reportCmd.AddCommand(newReportSummarizeCmd())
	reportCmd.AddCommand(newReportStatsCmd())
	root.AddCommand(reportCmd)
}

func newReportSummarizeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "summarize <results.csv>",
		Short: "Summarize an exported results CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(args[0], report.ReadRecordsCSV)
			if err != nil {
				return err
			}
			summary := report.Summarize(records)
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))

			if out == "" {
				return nil
			}
			if err := writeFile(out, func(w io.Writer) error { return report.WriteStatisticsCSV(w, summary) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "statistics written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the statistics CSV to this path")
	return cmd
}

func newReportStatsCmd() *cobra.Command {
	var (
		results string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "stats <responses.log>",
		Short: "Rebuild per-item results and statistics from a raw response log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(args[0], responselog.Parse)
			if err != nil {
				return err
			}
			responselog.Stamp(records, time.Now().UTC())
			summary := report.Summarize(records)

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderSummary(summary))

			if results != "" {
				if err := writeFile(results, func(f io.Writer) error { return report.WriteRecordsCSV(f, records) }); err != nil {
					return err
				}
				fmt.Fprintf(w, "results written to %s\n", results)
			}
			if out != "" {
				if err := writeFile(out, func(f io.Writer) error { return report.WriteStatisticsCSV(f, summary) }); err != nil {
					return err
				}
				fmt.Fprintf(w, "statistics written to %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&results, "results", report.ResultsFile, "Per-item results CSV path (empty to skip)")
	cmd.Flags().StringVarP(&out, "out", "o", report.StatisticsFile, "Statistics CSV path (empty to skip)")
	return cmd
}

func readRecords(path string, read func(io.Reader) ([]core.Record, error)) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}

// writeFile creates path and hands it to render, closing it either way.
func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
