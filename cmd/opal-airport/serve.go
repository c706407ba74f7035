package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	airport "github.com/hugr-lab/opal-airport"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var listen, address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Arrow Flight server",
		Long: `Start the Arrow Flight server. Attach it from DuckDB with:

  INSTALL airport FROM community; LOAD airport;
  ATTACH '' AS opal (TYPE airport, LOCATION 'grpc://localhost:50051');`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = listen
			}
			if cmd.Flags().Changed("address") {
				cfg.Server.Address = address
			}
			logger := newLogger(cfg)

			cat, err := airport.NewOpalCatalog(opalConfig(cfg, logger), nil)
			if err != nil {
				return err
			}

			serverConfig := airport.ServerConfig{
				Catalog:        cat,
				Logger:         logger,
				MaxMessageSize: cfg.Server.MaxMessageSize,
				Address:        cfg.Server.Address,
			}
			if len(cfg.Server.Tokens) > 0 {
				serverConfig.Auth = airport.StaticTokens(cfg.Server.Tokens)
			}

			grpcServer := grpc.NewServer(airport.ServerOptions(serverConfig)...)
			if err := airport.NewServer(grpcServer, serverConfig); err != nil {
				return err
			}

			lis, err := net.Listen("tcp", cfg.Server.Listen)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Listen, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- grpcServer.Serve(lis)
			}()
			logger.Info("Serving Opal catalog",
				"listen", lis.Addr().String(),
				"opal", cfg.Opal.URL,
				"presentation", cfg.Opal.Presentation,
				"auth", serverConfig.Auth != nil,
			)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down server")
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(shutdownTimeout):
				logger.Warn("Graceful shutdown timed out, closing open streams")
				grpcServer.Stop()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :50051)")
	cmd.Flags().StringVar(&address, "address", "", "public address advertised to clients")
	return cmd
}
