// cvmbatch runs batch operations against CVM instances, images and CBS snapshots
// using the session credentials of a logged-in console user.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/cmd/cvmbatch/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cvmbatch",
		Short: "Batch operations for CVM instances, images and snapshots",
		Long: `cvmbatch drives the cloud console API with the session of a logged-in user.
Paste a request copied from the browser (Copy as cURL) to supply the cookie and
CSRF token, point it at a CSV of target ids, and every target gets one result row.

Deleting images or snapshots requires the access gate secret.`,
		Version:      version,
		SilenceUsage: true,
	}

	cli.RegisterInstanceCommands(rootCmd)
	cli.RegisterImageCommands(rootCmd)
	cli.RegisterSnapshotCommands(rootCmd)
	cli.RegisterCredentialCommands(rootCmd)
	cli.RegisterGateCommands(rootCmd)
	cli.RegisterAuditCommands(rootCmd)
	cli.RegisterReportCommands(rootCmd)
	cli.RegisterArtifactCommands(rootCmd)
	cli.RegisterConvertCommands(rootCmd)
	cli.RegisterConfigCommands(rootCmd)
	cli.RegisterServeCommand(rootCmd)
	cli.RegisterRPCCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
