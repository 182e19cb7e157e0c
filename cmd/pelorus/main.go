package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"pelorus/internal/config"
	"pelorus/internal/domain"
	"pelorus/internal/gateway"
	"pelorus/internal/gateway/resolver"
	"pelorus/internal/infra/audit"
	"pelorus/internal/infra/auth"
	"pelorus/internal/infra/logging"
	"pelorus/internal/infra/policy"
	"pelorus/internal/infra/ratelimit"
	"pelorus/internal/infra/store"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New(cfg)
	slog.SetDefault(logger)

	db, err := store.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	var client store.Client = store.Unavailable{}
	var sink domain.AuditSink = audit.NewLogSink(logger)
	if db != nil {
		client = store.NewGorm(db)
		gormSink, err := audit.NewGormSink(db)
		if err != nil {
			log.Fatalf("failed to init audit sink: %v", err)
		}
		sink = gormSink
	} else {
		logger.Warn("no POSTGRES_DSN configured, persistence disabled")
	}

	var limiter domain.RateLimiter
	if cfg.RedisAddr != "" {
		limiter, err = ratelimit.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Now)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	} else {
		limiter = ratelimit.NewMemory(ratelimit.MemoryConfig{MaxKeys: cfg.RateLimitMaxKeys})
	}

	engine, err := policy.NewEngine(context.Background(), cfg.PolicyPath)
	if err != nil {
		log.Fatalf("failed to load policy: %v", err)
	}

	plan := ratelimit.Plan{
		Default: ratelimit.Limit{
			Requests: cfg.RateLimitRequests,
			Window:   cfg.RateLimitWindow(),
		},
	}
	recorder := audit.NewRecorder(sink, logger, cfg.AuditTimeout())
	defer recorder.Flush()

	registry := resolver.New(resolver.Deps{
		Store:  client,
		Policy: engine,
		Plan:   plan,
		Log:    logger,
	})

	srv, err := gateway.NewServer(cfg, gateway.Deps{
		Registry:      registry,
		Authenticator: auth.NewTokenValidator(cfg.JWTSecret, cfg.ServiceToken),
		Limiter:       limiter,
		Plan:          plan,
		Recorder:      recorder,
		Log:           logger,
	})
	if err != nil {
		log.Fatalf("failed to init gateway: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
