package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/facilitydirectory/internal/api/handlers"
	"github.com/zatekoja/facilitydirectory/internal/api/render"
	"github.com/zatekoja/facilitydirectory/internal/api/routes"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
)

var (
	port        int
	reloadEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the facility API server",
	Long:  `Start the HTTP server for the public facility API and the admin endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
			shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
			} else {
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(ctx); err != nil {
						log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
					}
				}()
				log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
			}
		}

		metrics, err := observability.InitMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		a, err := newApp(ctx, cfg, metrics, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.invalidation.Start(); err != nil {
			log.Warn().Err(err).Msg("Cache invalidation limited to this replica")
		}

		if reloadEvery > 0 {
			go runPeriodicReload(ctx, a, reloadEvery)
		}

		checks := map[string]handlers.Pinger{"postgres": a.store}
		if a.redis != nil {
			checks["redis"] = a.redis
		}

		renderer := render.New(cfg.Links.BaseURL)
		router := routes.NewRouter(
			handlers.NewFacilityHandler(a.facilities, a.nearby, a.responseCache, renderer),
			handlers.NewAdminHandler(a.overlays, a.facilities, a.reload),
			handlers.NewHealthHandler(checks),
			routes.Options{
				AdminToken:     cfg.Server.AdminToken,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Metrics:        metrics,
			},
		)
		if cfg.Server.AdminToken == "" {
			log.Warn().Msg("ADMIN_TOKEN is not set; admin endpoints will refuse every request")
		}

		// A reload request runs every collector before it answers.
		writeTimeout := cfg.Reload.CollectorTimeout + time.Minute

		serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		server := &http.Server{
			Addr:         serverAddr,
			Handler:      router.SetupRoutes(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Info().Str("addr", serverAddr).Msg("Server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		}
		log.Info().Msg("Server shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 8085, "Port to listen on (overrides SERVER_PORT)")
	serveCmd.Flags().DurationVar(&reloadEvery, "reload-every", 0, "Reload facilities on this interval (0 disables)")
}

// runPeriodicReload triggers a reload on every tick until ctx is done
func runPeriodicReload(ctx context.Context, a *app, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	log.Info().Dur("interval", every).Msg("Periodic reload enabled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := a.reload.Reload(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Scheduled reload failed")
				continue
			}
			log.Info().
				Str("reload_id", report.ReloadID).
				Int("created", len(report.Created)).
				Int("updated", len(report.Updated)).
				Int("missing", len(report.Missing)).
				Int("problems", len(report.Problems)).
				Bool("changed", report.Changed()).
				Msg("Scheduled reload finished")
		}
	}
}
