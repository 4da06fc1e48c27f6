package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentswarm/agent/guardrails"
	"github.com/BaSui01/agentswarm/agent/session"
	"github.com/BaSui01/agentswarm/config"
	"github.com/BaSui01/agentswarm/internal/cache"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/internal/server"
	"github.com/BaSui01/agentswarm/internal/telemetry"
	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/llm/providers/gemini"
	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/orders"
)

// app holds the process-wide components built from Config.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	closers   []func(context.Context) error
}

// newApp builds the logger, telemetry and the metrics endpoint.
func newApp(cfg *config.Config) (*app, error) {
	logger := initLogger(cfg.Log)
	a := &app{cfg: cfg, logger: logger}

	otel, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		a.onClose(otel.Shutdown)
	}

	a.collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	if cfg.Metrics.Enabled {
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		srv := server.NewManager(server.MetricsMux(a.collector.Handler()), srvCfg, logger)
		if err := srv.Start(); err != nil {
			a.close()
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		a.onClose(srv.Shutdown)
	}
	return a, nil
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// close runs the closers in reverse order and flushes the logger.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) provider(ctx context.Context) (llm.Provider, error) {
	if p := a.cfg.LLM.Provider; p != "" && p != "gemini" {
		return nil, fmt.Errorf("unsupported llm provider %q", p)
	}
	temperature := float32(a.cfg.LLM.Temperature)
	p, err := gemini.New(ctx, gemini.Config{
		APIKey:          a.cfg.LLM.APIKey,
		Model:           a.cfg.LLM.Model,
		Temperature:     &temperature,
		MaxOutputTokens: a.cfg.LLM.MaxTokens,
		Timeout:         a.cfg.LLM.Timeout,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	policy := retry.DefaultPolicy()
	policy.MaxRetries = a.cfg.LLM.MaxRetries
	return retry.WrapProvider(p, policy, a.logger), nil
}

func (a *app) guardRails() (*guardrails.GuardRails, error) {
	gc := a.cfg.GuardRails
	return guardrails.New(guardrails.Config{
		MinQueryLength: gc.MinQueryLength,
		MaxQueryLength: gc.MaxQueryLength,
		MaxPerMinute:   gc.RequestsPerMinute,
		MaxPerHour:     gc.RequestsPerHour,
	}, guardrails.WithLogger(a.logger), guardrails.WithMetrics(a.collector))
}

// orderStore opens the configured order source.
func (a *app) orderStore(ctx context.Context) (orders.Store, error) {
	store, closeFn, err := orders.OpenStore(ctx, a.cfg.Orders, a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return closeFn() })
	return store, nil
}

// sessions opens the configured session backend; "none" yields nil.
func (a *app) sessions(ctx context.Context) (session.Manager, error) {
	sc := a.cfg.Session
	switch sc.Backend {
	case "", "none":
		return nil, nil
	case "file":
		fm, err := session.NewFileManager(sc.Dir, a.logger)
		if err != nil {
			return nil, err
		}
		return fm, nil
	case "redis":
		rc, err := cache.NewManager(ctx, cache.FromRedisConfig(a.cfg.Redis), a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return rc.Close() })
		return session.NewRedisManager(rc.Client(),
			session.WithKeyPrefix(sc.KeyPrefix),
			session.WithTTL(sc.TTL)), nil
	case "mongo":
		mc := a.cfg.Mongo
		if mc.Timeout <= 0 {
			mc.Timeout = config.DefaultMongoConfig().Timeout
		}
		connectCtx, cancel := context.WithTimeout(ctx, mc.Timeout)
		defer cancel()
		client, err := session.ConnectMongo(connectCtx, mc.URI)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Disconnect)
		m := session.NewMongoManager(client.Database(mc.Database).Collection(mc.Collection))
		if err := m.EnsureIndexes(connectCtx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.New("session.backend must be file, redis, mongo or none")
	}
}
