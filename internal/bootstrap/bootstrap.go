// Package bootstrap provides centralized initialization and lifecycle
// management for the runtime dependencies shared by the binaries.
//
// Purpose:
//
//	This package wires together the backend HTTP client, the optional Redis
//	identity cache, the audit emitter, and the identity resolvers in a
//	consistent order, and provides a unified shutdown and readiness
//	interface.
//
// Key Responsibilities:
//   - Initialize builds the backend client, connects optional Redis,
//     composes the audit emitter, and constructs the resolvers
//   - Runtime bundles initialized dependencies for use by binaries
//   - ReadinessProbe checks backend and Redis reachability
//   - Close releases resources in reverse initialization order
//
// Debugging Notes:
//   - Missing BACKEND_URL/BACKEND_ANON_KEY fail initialization immediately
//   - Redis connection failures fail fast during initialization (2s ping)
//   - If Redis is not configured, a no-op identity cache is used
//   - If Kafka brokers are not configured, audit events go to the logger
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/YodHeVauHe/CallCenterX/internal/audit"
	"github.com/YodHeVauHe/CallCenterX/internal/backend"
	"github.com/YodHeVauHe/CallCenterX/internal/cache"
	"github.com/YodHeVauHe/CallCenterX/internal/config"
	"github.com/YodHeVauHe/CallCenterX/internal/identity"
)

// Runtime bundles initialized runtime dependencies for use by the binaries.
// All fields are populated during Initialize and remain valid until Close.
type Runtime struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Backend     *backend.HTTPClient
	Redis       *redis.Client // nil when not configured
	Cache       cache.IdentityCache
	Audit       audit.Emitter
	Profiles    *identity.ProfileResolver
	Memberships *identity.MembershipResolver
}

// Initialize wires runtime dependencies from the provided configuration.
// Initialization order: backend client → Redis (if configured) → identity
// cache → audit emitter → resolvers. The returned Runtime must be closed via
// Close during shutdown.
func Initialize(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	client, err := backend.NewHTTPClient(backend.HTTPClientOptions{
		BaseURL:    cfg.BackendURL,
		APIKey:     cfg.BackendAnonKey,
		ServiceKey: cfg.BackendServiceKey,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap backend: %w", err)
	}

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Backend: client,
		Cache:   cache.NewNoop(),
	}

	if cfg.RedisAddr != "" {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		// Best-effort ping with timeout to fail fast if Redis is down.
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rt.Redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.Cache = cache.NewRedis(rt.Redis, cfg.ServiceName)
	}

	if kafkaEmitter, err := audit.NewKafkaEmitterFromConfig(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaClientID, logger); err != nil {
		return nil, fmt.Errorf("bootstrap audit: %w", err)
	} else if kafkaEmitter != nil {
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("using Kafka emitter for audit events")
		rt.Audit = kafkaEmitter
	} else {
		logger.Info().Msg("Kafka not configured, using logger emitter for audit events")
		rt.Audit = audit.NewLoggerEmitter(logger)
	}

	rt.Profiles = identity.NewProfileResolver(client, logger)
	rt.Memberships = identity.NewMembershipResolver(client, rt.Audit, logger)

	return rt, nil
}

// Close releases runtime resources in reverse initialization order.
// Idempotent; returns the first error encountered but keeps closing.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	var firstErr error
	if kafkaEmitter, ok := rt.Audit.(*audit.KafkaEmitter); ok {
		if err := kafkaEmitter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReadinessProbe checks the health of critical runtime dependencies: the
// hosted backend's auth health endpoint and Redis when configured. Context
// timeout should be set by the caller.
func (rt *Runtime) ReadinessProbe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rt.Config.BackendURL+"/auth/v1/health", nil)
	if err != nil {
		return fmt.Errorf("backend not ready: %w", err)
	}
	req.Header.Set("apikey", rt.Config.BackendAnonKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend not ready: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend not ready: status %d", resp.StatusCode)
	}

	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
	}
	return nil
}
