package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/causeway/internal/api"
	"github.com/narvanalabs/causeway/internal/auth"
	"github.com/narvanalabs/causeway/internal/shutdown"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(true)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}

			authService := auth.NewService(&auth.Config{
				JWTSecret:   []byte(cfg.JWTSecret),
				TokenExpiry: cfg.JWTExpiry,
			}, log.WithComponent("auth").Logger)

			server := api.NewServer(api.Config{Host: cfg.APIHost, Port: cfg.APIPort},
				a.importer, a.brew, a.store, authService, log.WithComponent("api").Logger)

			coordinator := shutdown.NewCoordinator(
				shutdown.WithTimeout(cfg.ShutdownTimeout),
				shutdown.WithLogger(log.Logger),
			)
			coordinator.Register(shutdown.NewCloserComponent("store", a))
			coordinator.Register(a.importer)
			coordinator.Register(shutdown.NewHTTPServerComponent("api", server.HTTPServer()))

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- server.Start(ctx)
				cancel()
			}()

			coordinator.WaitForSignal(ctx)
			if err := <-serveErr; err != nil {
				return err
			}
			if code := coordinator.ExitCode(); code != 0 {
				log.Error("shutdown incomplete")
				os.Exit(code)
			}
			log.Info("server stopped")
			return nil
		},
	}
}
