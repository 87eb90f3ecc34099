// Command authproxy is the HTTP proxy for authentication calls against the
// hosted backend.
//
// Purpose:
//
//	This binary exposes the serverless-function contracts as one process:
//	POST /login, POST /register, GET /user (bearer-token identity lookup),
//	and POST /synthesize (speech provider proxy). It initializes runtime
//	dependencies via bootstrap and serves HTTP with graceful shutdown.
//
// Debugging Notes:
//   - Server starts on HTTP_PORT (default 8090)
//   - Readiness probe checks the backend's auth health endpoint and Redis
//   - Graceful shutdown allows in-flight requests to complete (10s timeout)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YodHeVauHe/CallCenterX/internal/bootstrap"
	"github.com/YodHeVauHe/CallCenterX/internal/config"
	authapi "github.com/YodHeVauHe/CallCenterX/internal/httpapi/auth"
	"github.com/YodHeVauHe/CallCenterX/internal/httpapi/synth"
	"github.com/YodHeVauHe/CallCenterX/internal/logging"
	"github.com/YodHeVauHe/CallCenterX/internal/server"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.ServiceName+"-authproxy", cfg.LogLevel, cfg.Environment)
	logger.Info().
		Str("env", cfg.Environment).
		Int("port", cfg.HTTPPort).
		Msg("starting authproxy")

	ctx := context.Background()
	runtime, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap runtime")
	}
	logger.Info().Msg("runtime dependencies initialized")

	authHandler := authapi.NewHandler(authapi.Options{
		Client:      runtime.Backend,
		Cache:       runtime.Cache,
		Audit:       runtime.Audit,
		Logger:      logger,
		CacheTTL:    cfg.IdentityCacheTTL,
		Profiles:    runtime.Profiles,
		Memberships: runtime.Memberships,
	})
	synthHandler := synth.NewHandler(synth.Options{
		BaseURL: cfg.SynthesizeURL,
		APIKey:  cfg.SynthesizeAPIKey,
		Logger:  logger,
	})

	srv := server.New(server.Options{
		Port:        cfg.HTTPPort,
		Logger:      logger,
		ServiceName: cfg.ServiceName + "-authproxy",
		Readiness:   runtime.ReadinessProbe,
		RegisterRoutes: func(r chi.Router) {
			authHandler.RegisterRoutes(r)
			if cfg.SynthesizeAPIKey != "" {
				synthHandler.RegisterRoutes(r)
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("authproxy server failed")
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	if err := runtime.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to cleanly close runtime")
	}

	logger.Info().Msg("authproxy stopped")
}
