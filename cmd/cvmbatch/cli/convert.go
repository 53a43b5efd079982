package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/convert"
)

// RegisterConvertCommands adds file conversion commands.
func RegisterConvertCommands(root *cobra.Command) {
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert console exports",
	}
	convertCmd.AddCommand(newConvertInstancesCmd())
	root.AddCommand(convertCmd)
}

func newConvertInstancesCmd() *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "instances <export.csv>",
		Short: "Turn a console instance export into a JSON or YAML instance list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := convert.ParseFormat(format)
			if err != nil {
				return err
			}

			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			instances, err := convert.ReadInstances(in)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return convert.Write(cmd.OutOrStdout(), instances, f)
			}
			w, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := convert.Write(w, instances, f); err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d instances written to %s\n", len(instances), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	return cmd
}
