package container

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/config"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/external/lark"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/external/openai"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/external/shopify"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/metrics"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/worker"
	"github.com/MiguelValor/shopify-automator/pkg/database"
)

// ProvideDatabase opens the database and applies pending migrations
func ProvideDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	db, err := database.New(ctx, database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrations, err := database.EmbeddedMigrations(cfg.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := database.NewMigrator(db, logger).Run(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// ProvideCommerceClient creates the Shopify Admin API client
func ProvideCommerceClient(cfg config.ShopifyConfig, logger *zap.Logger) *shopify.Client {
	if cfg.AccessToken == "" && len(cfg.ShopTokens) == 0 {
		logger.Warn("No Shopify access token configured, approved changes will fail to apply")
	}
	return shopify.NewClient(shopify.Config{
		APIVersion:         cfg.APIVersion,
		DefaultAccessToken: cfg.AccessToken,
		ShopTokens:         cfg.TokenMap(),
		BaseURL:            cfg.BaseURL,
		Timeout:            cfg.Timeout,
		RequestsPerSecond:  cfg.RequestsPerSecond,
	}, logger)
}

// ProvideNotifier returns the Lark review notifier, or a no-op when Lark is not configured
func ProvideNotifier(cfg config.LarkConfig, logger *zap.Logger) port.ReviewNotifier {
	larkCfg := lark.Config{
		AppID:        cfg.AppID,
		AppSecret:    cfg.AppSecret,
		ReviewChatID: cfg.ReviewChatID,
		DashboardURL: cfg.DashboardURL,
	}
	if !larkCfg.Enabled() {
		logger.Info("Lark review notifications disabled")
		return lark.NoopNotifier{}
	}
	return lark.NewNotifier(lark.NewMessageAPI(larkCfg, logger), larkCfg, logger)
}

// ProvideSEOGenerator loads the prompt templates and creates the generator
func ProvideSEOGenerator(cfg config.OpenAIConfig, logger *zap.Logger) (*openai.SEOGenerator, error) {
	prompts, err := openai.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	return openai.NewSEOGenerator(openai.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	}, prompts, logger), nil
}

// ProvideRedis returns nil when no address is configured
func ProvideRedis(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	return worker.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
}

// ProvideMetrics creates the collectors on a dedicated registry
func ProvideMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg)
}

// ProvideWorkers registers the expiry sweeper
func ProvideWorkers(expirer worker.Expirer, rdb *goredis.Client, cfg *config.Config, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if !cfg.Approval.SweepEnabled {
		return manager
	}

	opts := []worker.ExpiryOption{worker.WithInterval(cfg.Approval.SweepInterval)}
	if rdb != nil {
		opts = append(opts, worker.WithLocker(worker.NewRedisLocker(rdb, cfg.Redis.LockPrefix)))
	}
	manager.Register(worker.NewExpiryWorker(expirer, logger, opts...))
	return manager
}
