package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/csvsql/internal/config"
	"github.com/JonMunkholm/csvsql/internal/core"
	"github.com/JonMunkholm/csvsql/internal/store"
	"github.com/JonMunkholm/csvsql/internal/web"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the command that runs the HTTP import service.
func NewServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP import service",
		Long: `Serve accepts file uploads over HTTP and imports them in the background.

  POST   /imports?table=NAME   upload a file, returns an import ID
  GET    /imports/{id}         progress, and the result once done
  DELETE /imports/{id}         cancel a running import
  GET    /imports              every tracked import
  POST   /preview              dry run of an upload
  GET    /tables               table list
  GET    /tables/{name}        one page of rows
  GET    /healthz              liveness and import slot usage`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen address")
	cmd.Flags().IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "listen port")
	return cmd
}

// serve runs the server until SIGINT or SIGTERM, then drains running
// imports and stops accepting requests within the shutdown timeout.
func serve(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if store.InMemory(cfg.Database) {
		slog.Warn("serving an in-memory database; imported tables are lost on exit")
	}

	service, err := core.NewService(db, cfg.Import)
	if err != nil {
		return err
	}
	server := web.NewServer(service, db, cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := service.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := service.WaitForImports(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

