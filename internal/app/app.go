// Package app wires the gateway components and runs them.
package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"toolgate/internal/infra/config"
	"toolgate/internal/infra/httpapi"
	"toolgate/internal/infra/openapi"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/telemetry"
	"toolgate/internal/infra/translate"
	"toolgate/internal/infra/upstream"
)

type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
}

type ValidateConfig struct {
	ConfigPath string
}

func New(logger *zap.Logger) *App {
	return &App{
		logger: logger.Named("app"),
	}
}

// Serve brings the gateway up and blocks until the context ends. Startup is
// fail-fast: an unreachable or unhealthy upstream aborts the boot rather than
// serving an empty route table.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	loader := config.NewLoader(a.logger)
	conf, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration loaded",
		zap.String("config", cfg.ConfigPath),
		zap.String("upstream", conf.Upstream.Endpoint),
	)

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)

	client := upstream.NewClient(upstream.Config{
		Endpoint:             conf.Upstream.Endpoint,
		Headers:              conf.Upstream.Headers,
		Timeout:              conf.Upstream.Timeout,
		HealthTimeout:        conf.Upstream.HealthTimeout,
		MaxReconnectAttempts: conf.Upstream.MaxReconnectAttempts,
		ReconnectBase:        conf.Upstream.ReconnectBase,
		ReconnectMax:         conf.Upstream.ReconnectMax,
		MaxResponseBytes:     conf.Upstream.MaxResponseBytes,
	}, a.logger, metrics)

	if err := client.Initialize(ctx); err != nil {
		return err
	}
	identity := client.Identity()
	a.logger.Info("upstream connected",
		zap.String("server", identity.Name),
		zap.String("version", identity.Version),
	)

	routes := router.NewRegistry(client, a.logger, metrics)
	if err := routes.Initialize(ctx); err != nil {
		return err
	}
	a.logger.Info("route table built", zap.Int("routes", routes.Count()))

	translator := translate.New(client, routes.Schema, translate.Options{
		Mode:    conf.Validation.Mode,
		Logger:  a.logger,
		Metrics: metrics,
	})

	synthesizer := openapi.NewSynthesizer(client, openapi.Options{
		Title:     conf.Spec.Title,
		Version:   conf.Spec.Version,
		ServerURL: conf.Spec.ServerURL,
		TTL:       conf.Spec.TTL,
		Logger:    a.logger,
		Metrics:   metrics,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if conf.Spec.RefreshPeriod > 0 {
		go synthesizer.RunRefreshLoop(runCtx, conf.Spec.RefreshPeriod)
	}
	if conf.Spec.RegistryPeriod > 0 {
		go routes.RunRefreshLoop(runCtx, conf.Spec.RegistryPeriod)
	}

	watcher := config.NewWatcher(cfg.ConfigPath, a.logger, func(ctx context.Context) {
		if err := routes.Refresh(ctx); err != nil {
			a.logger.Warn("route refresh after config change failed", zap.Error(err))
		}
		if err := synthesizer.Refresh(ctx); err != nil {
			a.logger.Warn("spec refresh after config change failed", zap.Error(err))
		}
	})
	go watcher.Run(runCtx)

	server := httpapi.NewServer(client, routes, translator, synthesizer, httpapi.Options{
		Addr:            conf.Server.ListenAddress,
		AuthToken:       conf.Server.AuthToken,
		ShutdownTimeout: conf.Server.ShutdownTimeout,
		Registry:        registry,
		Logger:          a.logger,
	})
	return server.Run(runCtx)
}

// ValidateConfig loads and validates the configuration without connecting.
func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	loader := config.NewLoader(a.logger)
	conf, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.String("upstream", conf.Upstream.Endpoint),
		zap.String("listen", conf.Server.ListenAddress),
		zap.String("validationMode", string(conf.Validation.Mode)),
	)
	return nil
}
