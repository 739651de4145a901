package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/config"
	"github.com/MiguelValor/shopify-automator/internal/container"
	"github.com/MiguelValor/shopify-automator/pkg/utils"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "workflow-engine",
		Short:         "Approval-gated automation for Shopify stores",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newExpireCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiry sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire stale pending approvals once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return expireOnce(cmd.Context(), cmd)
		},
	}
}

func bootstrap(ctx context.Context, opts ...container.Option) (*container.Container, *zap.Logger, error) {
	cfg, err := config.Load(optionalConfig(configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	c, err := container.NewContainer(cfg, logger, append(opts, container.WithVersion(version))...)
	if err != nil {
		return nil, logger, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, logger, err
	}
	return c, logger, nil
}

// optionalConfig drops the default path when the file is absent so the
// service can run from environment variables alone
func optionalConfig(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, logger, err := bootstrap(ctx)
	if logger != nil {
		defer logger.Sync()
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	logger.Info("Starting workflow engine",
		zap.String("version", version),
		zap.Int("port", c.Config().Server.Port))

	if err := c.HTTPServer().Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Server exited successfully")
	return nil
}

func expireOnce(ctx context.Context, cmd *cobra.Command) error {
	c, logger, err := bootstrap(ctx, container.WithoutWorkers())
	if logger != nil {
		defer logger.Sync()
	}
	if err != nil {
		return err
	}
	defer c.Close()

	count, err := c.Manager().ExpireOldApprovals(ctx)
	if err != nil {
		return fmt.Errorf("expiry sweep failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "expired %d approvals\n", count)
	return nil
}
