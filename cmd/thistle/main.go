package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/Ramsey-B/thistle/config"
	"github.com/Ramsey-B/thistle/pkg/engine"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	envFiles []string
	cfg      *config.Config
	logger   ectologger.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "thistle",
		Short:        "Read operations with filter, sort, format and pagination over entity metadata",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return c.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Build every read operation and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.migrate(cmd.Context())
		},
	})

	var entity string
	operations := &cobra.Command{
		Use:   "operations",
		Short: "Build every read operation and print its argument shape as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.operations(cmd, entity)
		},
	}
	operations.Flags().StringVar(&entity, "entity", "", "only print operations of this entity")
	root.AddCommand(operations)

	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.envFiles...)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(c.cfg, c.logger, stageServe)
	if err := a.start(ctx); err != nil {
		c.logger.WithError(err).Error("Failed to start")
		a.stop(context.Background())
		return err
	}

	<-ctx.Done()
	c.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(c.cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	a.stop(shutdownCtx)
	return nil
}

func (c *cli) migrate(ctx context.Context) error {
	a := newApp(c.cfg, c.logger, stageMigrate)
	defer a.stop(context.Background())
	return a.start(ctx)
}

func (c *cli) operations(cmd *cobra.Command, entity string) error {
	a := newApp(c.cfg, c.logger, stageEngine)
	defer a.stop(context.Background())
	if err := a.start(cmd.Context()); err != nil {
		return err
	}

	ops := a.builder.Operations()
	if entity != "" {
		ops = ectolinq.Filter(ops, func(op *engine.ReadOperation) bool {
			return op.Entity == entity
		})
	}
	shapes := ectolinq.Map(ops, func(op *engine.ReadOperation) engine.Arguments {
		return op.Arguments()
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(shapes)
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger.With(zap.String("app", cfg.AppName)), nil), nil
}
