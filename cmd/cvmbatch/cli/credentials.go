package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/credentials"
	"github.com/xiansir-zhe/cloud-tool/internal/logging"
)

// RegisterCredentialCommands adds credential inspection commands.
func RegisterCredentialCommands(root *cobra.Command) {
	credCmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Inspect session credentials in a copied browser request",
	}
	credCmd.AddCommand(newCredentialExtractCmd())
	root.AddCommand(credCmd)
}

func newCredentialExtractCmd() *cobra.Command {
	var (
		requestFile string
		show        bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Report whether the cookie and CSRF token can be found",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(requestFile)
			if err != nil {
				return err
			}
			creds := credentials.Extract(text)

			out := cmd.OutOrStdout()
			render := func(name string, found bool, value string) {
				switch {
				case !found:
					fmt.Fprintf(out, "  %-11s %s\n", name+":", failureStyle.Render("not found"))
				case show:
					fmt.Fprintf(out, "  %-11s %s\n", name+":", value)
				default:
					fmt.Fprintf(out, "  %-11s %s\n", name+":", successStyle.Render(logging.RedactValue(value)))
				}
			}

			fmt.Fprintln(out, "Credentials:")
			render("cookie", creds.HasCookie, creds.Cookie)
			render("x-csrfcode", creds.HasCSRFToken, creds.CSRFToken)

			if !creds.Complete() {
				fmt.Fprintln(out, warningStyle.Render("incomplete: vendor calls will be rejected"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&requestFile, "request-file", "r", "-", "File holding the copied browser request (- for stdin)")
	cmd.Flags().BoolVar(&show, "show", false, "Print raw values instead of redacted previews")
	return cmd
}
