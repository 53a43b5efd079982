package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xiansir-zhe/cloud-tool/internal/console"
)

// RegisterServeCommand adds the console server command.
func RegisterServeCommand(root *cobra.Command) {
	var httpAddr, rpcAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web console and the JSON-RPC API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if !cmd.Flags().Changed("http") {
				httpAddr = cfg.Serve.HTTPAddr
			}
			if !cmd.Flags().Changed("rpc") {
				rpcAddr = cfg.Serve.RPCAddr
			}
			if httpAddr == "" && rpcAddr == "" {
				return errors.New("both listeners are disabled")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc := console.NewService(engine, cfg)
			logger := engine.Logger
			g, ctx := errgroup.WithContext(ctx)

			if httpAddr != "" {
				srv := console.NewHTTPServer(httpAddr, svc, logger)
				g.Go(func() error {
					logger.Info().Str("addr", httpAddr).Msg("http console listening")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					return console.ShutdownHTTP(srv, 30*time.Second)
				})
			}

			if rpcAddr != "" {
				rpc, err := console.NewServer(rpcAddr, svc)
				if err != nil {
					return err
				}
				g.Go(func() error {
					logger.Info().Str("addr", rpc.Addr()).Msg("rpc api listening")
					return rpc.Serve()
				})
				g.Go(func() error {
					<-ctx.Done()
					rpc.Stop()
					return nil
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (empty disables)")
	cmd.Flags().StringVar(&rpcAddr, "rpc", "", "gRPC listen address (empty disables)")
	root.AddCommand(cmd)
}
