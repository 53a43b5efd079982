package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/artifact"
)

// RegisterArtifactCommands adds commands over the stored run outputs.
func RegisterArtifactCommands(root *cobra.Command) {
	artCmd := &cobra.Command{
		Use:     "artifacts",
		Aliases: []string{"art"},
		Short:   "Inspect the files stored for past runs",
	}

	artCmd.AddCommand(newArtifactListCmd())
	artCmd.AddCommand(newArtifactVerifyCmd())
	artCmd.AddCommand(newArtifactShowCmd())

	root.AddCommand(artCmd)
}

// loadArtifactStore opens the reports directory without touching the databases.
func loadArtifactStore() (*artifact.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return artifact.NewStore(cfg.ReportsDir), nil
}

func newArtifactListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [run-id]",
		Short: "List runs, or the artifacts of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadArtifactStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				recs, err := store.List(args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tKIND\tSIZE\tSHA256\tCREATED")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						r.Name, r.Kind, r.ByteSize, r.ContentHash[:12], r.CreatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			}

			runs, err := store.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tFILES")
			for _, id := range runs {
				recs, err := store.List(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\n", id, len(recs))
			}
			return w.Flush()
		},
	}
}

func newArtifactVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Check every file of a run against its recorded hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadArtifactStore()
			if err != nil {
				return err
			}

			valid, invalid, err := store.VerifyIntegrity(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, msg := range invalid {
				fmt.Fprintln(out, failureStyle.Render("  "+msg))
			}
			if len(invalid) > 0 {
				return fmt.Errorf("run %s: %d of %d artifacts failed verification", args[0], len(invalid), valid+len(invalid))
			}
			fmt.Fprintf(out, "run %s: %d artifacts intact\n", args[0], valid)
			return nil
		},
	}
}

func newArtifactShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id> <name>",
		Short: "Print a stored artifact after checking its hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadArtifactStore()
			if err != nil {
				return err
			}

			rec, err := store.Get(args[0], args[1])
			if err != nil {
				return err
			}
			data, err := store.ReadContent(rec)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
