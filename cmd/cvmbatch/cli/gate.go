package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/gate"
)

// RegisterGateCommands adds access gate commands.
func RegisterGateCommands(root *cobra.Command) {
	gateCmd := &cobra.Command{
		Use:   "gate",
		Short: "Check or rotate the access gate secret for delete operations",
	}
	gateCmd.AddCommand(newGateCheckCmd())
	gateCmd.AddCommand(newGateRotateCmd())
	root.AddCommand(gateCmd)
}

func newGateCheckCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a secret against the access gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				var err error
				if secret, err = promptSecret("Secret: "); err != nil {
					return err
				}
			}
			_, engine, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if !engine.Gate.Authorize(secret) {
				return errors.New("access gate: denied")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "access gate: %s for %s\n", successStyle.Render("authorized"), engine.Gate.Username())
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Secret to check (prompted when omitted)")
	return cmd
}

func newGateRotateCmd() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the access gate secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if current == "" {
				if current, err = promptSecret("Current secret: "); err != nil {
					return err
				}
			}
			if next == "" {
				if next, err = promptSecret("New secret: "); err != nil {
					return err
				}
				confirm, err := promptSecret("Confirm new secret: ")
				if err != nil {
					return err
				}
				if confirm != next {
					return errors.New("secrets do not match")
				}
			}

			_, engine, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Gate.Rotate(current, next); err != nil {
				if errors.Is(err, gate.ErrWrongSecret) {
					return fmt.Errorf("rotation refused: %w", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "access gate secret rotated")
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "Current secret (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "New secret (prompted when omitted)")
	return cmd
}
