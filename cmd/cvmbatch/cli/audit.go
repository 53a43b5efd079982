package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/audit"
)

// RegisterAuditCommands adds audit log commands.
func RegisterAuditCommands(root *cobra.Command) {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}
	auditCmd.AddCommand(newAuditVerifyCmd())
	auditCmd.AddCommand(newAuditLogCmd())
	root.AddCommand(auditCmd)
}

func newAuditVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit log hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			valid, count, err := audit.Verify(engine.AuditDB)
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("audit chain broken after %d valid entries", count)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "audit chain intact (%d entries)\n", count)
			return nil
		},
	}
}

func newAuditLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("--limit must be positive")
			}
			_, engine, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			entries, err := audit.Recent(engine.AuditDB, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit entries.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tEVENT\tOPERATOR\tRUN\tDETAIL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format(time.DateTime), e.EventType, e.Operator, e.RunID, e.Detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	return cmd
}
