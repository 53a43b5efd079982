package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/console"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/input"
)

// RegisterInstanceCommands adds instance power commands.
func RegisterInstanceCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"ins"},
		Short:   "Stop or start CVM instances listed in a CSV",
	}
	cmd.AddCommand(newBatchCmd("stop", core.OpStopInstances, "Soft-stop instances, keeping them charged"))
	cmd.AddCommand(newBatchCmd("start", core.OpStartInstances, "Start instances"))
	root.AddCommand(cmd)
}

// RegisterImageCommands adds image commands.
func RegisterImageCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "images",
		Aliases: []string{"img"},
		Short:   "Create or delete custom images",
	}
	cmd.AddCommand(newBatchCmd("create", core.OpCreateImage,
		"Create one image per instance, including its data disks"))
	cmd.AddCommand(newBatchCmd("delete", core.OpDeleteImage,
		"Delete images and their bound snapshots (gated)"))
	root.AddCommand(cmd)
}

// RegisterSnapshotCommands adds snapshot commands.
func RegisterSnapshotCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snap"},
		Short:   "Create or delete CBS snapshots",
	}
	cmd.AddCommand(newBatchCmd("create", core.OpCreateSnapshot,
		"Snapshot each disk as <disk>_last_snapshot"))
	cmd.AddCommand(newBatchCmd("delete", core.OpDeleteSnapshot, "Delete snapshots (gated)"))
	root.AddCommand(cmd)
}

func newBatchCmd(use string, op core.Operation, short string) *cobra.Command {
	var (
		file        string
		requestFile string
		accountID   string
		region      string
		workers     int
		secret      string
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  fmt.Sprintf("%s.\n\nRequired CSV columns: %s", short, strings.Join(input.RequiredColumns(op), ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			csvData, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			requestText, err := readText(requestFile)
			if err != nil {
				return err
			}
			if op.Destructive() && secret == "" {
				if secret, err = promptSecret("Access gate secret: "); err != nil {
					return err
				}
			}

			cfg, engine, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			svc := console.NewService(engine, cfg)
			res, err := svc.RunBatch(ctx, console.BatchRequest{
				Operation:   string(op),
				RequestText: requestText,
				AccountID:   accountID,
				Region:      region,
				Secret:      secret,
				CSV:         csvData,
				Workers:     workers,
				Operator:    "cli",
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !quiet {
				printRecords(out, res.Records)
				fmt.Fprintln(out)
				printMappings(out, op, res.Mappings)
			}
			fmt.Fprintln(out, renderSummary(res.Summary))
			printWarnings(out, res.Warnings)
			printArtifacts(out, engine.Artifacts.Root(), res.Artifacts)
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("run %s finished in %s", res.RunID, res.Duration)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file listing the targets")
	cmd.Flags().StringVarP(&requestFile, "request-file", "r", "-", "File holding the copied browser request (- for stdin)")
	cmd.Flags().StringVar(&accountID, "account", "", "Account id (uin); defaults to the configured account")
	if op.Plane() == core.PlaneCompute {
		cmd.Flags().StringVar(&region, "region", "", "Region, e.g. ap-guangzhou; defaults to the configured region")
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent calls; defaults to the configured workers")
	if op.Destructive() {
		cmd.Flags().StringVar(&secret, "secret", "", "Access gate secret (prompted when omitted)")
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the summary")
	cmd.MarkFlagRequired("file")

	return cmd
}
