package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellobff/internal/bootstrap"
	"github.com/dropDatabas3/hellobff/internal/config"
	httpserver "github.com/dropDatabas3/hellobff/internal/http"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}

	var configPath string

	root := &cobra.Command{
		Use:   "hellobff",
		Short: "BFF de autenticación OAuth2/OIDC con token cache server-side",
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("CONFIG_PATH", "config.yaml"), "ruta del archivo de configuración (env CONFIG_PATH)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			app, err := bootstrap.Build(cfg)
			if err != nil {
				return fmt.Errorf("wiring: %w", err)
			}
			defer func() {
				if cerr := app.Close(); cerr != nil {
					log.Printf("cleanup error: %v", cerr)
				}
			}()
			defer func() { _ = app.Logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := httpserver.NewServer(cfg.Server.Addr, app.Handler, app.Logger)
			return srv.Start(ctx)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Valida la configuración, la conexión al cache y la metadata del provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			app, err := bootstrap.Build(cfg)
			if err != nil {
				return fmt.Errorf("wiring: %w", err)
			}
			defer func() { _ = app.Close() }()

			if err := app.Cache.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("cache ping: %w", err)
			}
			if err := app.MetadataCheck(cmd.Context()); err != nil {
				return fmt.Errorf("provider metadata: %w", err)
			}

			fmt.Println("ok")
			return nil
		},
	}

	root.AddCommand(serveCmd)
	root.AddCommand(checkCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
