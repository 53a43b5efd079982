package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/console"
)

// RegisterRPCCommand adds a client for the JSON-RPC API of a running console.
func RegisterRPCCommand(root *cobra.Command) {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "rpc <method> [params-json]",
		Short: "Call a method on a running console (credentials.extract, batch.run, run.artifacts, audit.verify)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				addr = cfg.Serve.RPCAddr
			}

			var params any
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params are not valid JSON")
				}
				params = json.RawMessage(args[1])
			}

			client, err := console.Dial(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var result json.RawMessage
			if err := client.Call(ctx, args[0], params, &result); err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, result, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Console gRPC address; defaults to the configured serve.rpc_addr")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Deadline for the call")
	root.AddCommand(cmd)
}
