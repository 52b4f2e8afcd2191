package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lexgate/internal/audit"
	"lexgate/internal/auth"
	"lexgate/internal/forward"
	"lexgate/internal/gateway"
	"lexgate/internal/guard"
	"lexgate/internal/health"
	"lexgate/internal/orchestrate"
	"lexgate/internal/platform/admission"
	"lexgate/internal/platform/config"
	"lexgate/internal/platform/httpserver"
	"lexgate/internal/platform/logger"
	"lexgate/internal/platform/metrics"
	platformredis "lexgate/internal/platform/redis"
	"lexgate/internal/registry"
	"lexgate/internal/token"
	"lexgate/internal/transport"
)

// main wires the dependency graph and owns the process lifecycle. Everything
// with behavior lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if cfg.JWTSigningKey == config.DefaultSigningKey {
		log.Warn("using the default signing key; set JWT_SIGNING_KEY in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg)
	if err := reg.MustResolve(
		config.ServiceDocuments,
		config.ServiceDeadlines,
		config.ServiceHearings,
		config.ServiceProcesses,
	); err != nil {
		log.Error("registry incomplete", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	tokens := token.NewService(cfg.JWTSigningKey, "lexgate", cfg.TokenTTL)

	auditor := audit.Multi{audit.NewSlogSink(log)}
	kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic, log)
	if err != nil {
		log.Error("kafka audit sink setup failed", "error", err)
		os.Exit(1)
	}
	if kafkaSink != nil {
		auditor = append(auditor, kafkaSink)
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaSink.Close(flushCtx); err != nil {
				log.Warn("kafka audit sink close failed", "error", err)
			}
		}()
	}

	var ctrl admission.Controller = admission.NewMemoryController(cfg.RateLimitPerMinute)
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		ctrl = admission.NewRedisController(redisClient, cfg.RateLimitPerMinute)
		log.Info("admission control backed by redis")
	}

	fwd := forward.New(reg, cfg.RequestTimeout, log, m, auditor)

	rpc := &transport.RPCClient{}
	if cfg.RPCEnabled {
		rpc = transport.DialAll(ctx, reg, cfg.RequestTimeout, log)
		defer rpc.Close()
		log.Info("rpc channels ready", "services", rpc.AvailableServices())
	}
	selector := transport.NewSelector(transport.NewHTTPTransport(fwd), rpc)

	store, err := auth.NewSeededStore()
	if err != nil {
		log.Error("credential store setup failed", "error", err)
		os.Exit(1)
	}
	authSvc := auth.NewService(store, reg, fwd, tokens, auditor, log)

	g := guard.New(tokens, auditor, m, log)
	engine := orchestrate.NewEngine(selector, log, m, auditor)
	checker := health.New(reg, rpc, cfg.RequestTimeout, log, m, auditor)

	handler := gateway.New(log, g, authSvc, selector, engine, checker, ctrl, m, auditor)
	srv := httpserver.New(cfg.Addr, handler.Routes())

	go func() {
		log.Info("lexgate listening", "addr", cfg.Addr, "services", reg.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
