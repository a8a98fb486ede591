package main

import (
	"context"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/stripes-go/stripes/internal/config"
	"github.com/stripes-go/stripes/internal/demo"
	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes"
	"github.com/stripes-go/stripes/pkg/stripes/crypto"
	"github.com/stripes-go/stripes/pkg/stripes/flash"
	"github.com/stripes-go/stripes/pkg/stripes/interceptors"
	"github.com/stripes-go/stripes/pkg/stripes/lifecycle"
	"github.com/stripes-go/stripes/pkg/stripes/upload"
)

// defaultStacks runs every built-in interceptor on every stage
var defaultStacks = lifecycle.StackConfig{
	Stacks: map[string][]string{
		lifecycle.AllStages: {"logging", "metrics", "tracing", "beforeAfter"},
	},
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var metricsPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := opts.logger(cmd)
			cfg, err := config.Load(logger, opts.envFiles...)
			if err != nil {
				return err
			}

			server, closeAll, err := buildServer(cmd.Context(), cfg, logger, metricsPath)
			if err != nil {
				return err
			}
			defer closeAll()

			return server.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&metricsPath, "metrics-path", "/metrics", "path serving Prometheus metrics; empty disables it")
	return cmd
}

// buildServer wires the demo dispatcher from cfg. The returned func releases
// the flash store's connections.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, metricsPath string) (*stripes.Server, func(), error) {
	codec, err := crypto.NewCodec(cfg.Dispatch.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stacks, err := buildStacks(cfg, logger, metrics)
	if err != nil {
		return nil, nil, err
	}

	saver, err := newUploadSaver(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := newFlashStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing flash store", "error", err)
		}
	}

	app := demo.NewApp(nil)
	if saver != nil {
		app.Uploads = saver
	}
	dispatcher, err := app.NewDispatcher(logger,
		stripes.WithCodec(codec),
		stripes.WithFlashStore(store),
		stripes.WithStacks(stacks),
		stripes.WithAlwaysInvokeValidate(cfg.Dispatch.AlwaysInvokeValidate),
		stripes.WithMaxUploadSize(cfg.Upload.MaxSize),
	)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	server := stripes.NewServer(dispatcher, &stripes.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		EnableCORS:      cfg.Server.EnableCORS,
		EnableLogger:    true,
		EnableRecover:   true,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if metricsPath != "" {
		server.Handle(metricsPath, promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
	}
	return server, closeAll, nil
}

// interceptorRegistry registers the built-in interceptors by name
func interceptorRegistry(logger *slog.Logger, metrics prometheus.Registerer) (*lifecycle.Registry, error) {
	registry := lifecycle.NewRegistry()
	builtins := []interface {
		lifecycle.Interceptor
		lifecycle.Named
	}{
		interceptors.NewLogging(logger),
		interceptors.NewMetrics(interceptors.WithRegistry(metrics)),
		interceptors.NewTracing(),
		interceptors.NewBeforeAfter(),
	}
	for _, i := range builtins {
		if err := registry.Register(i.Name(), i); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// loadStackConfig reads the configured stacks file, or returns the defaults
func loadStackConfig(cfg *config.Config) (*lifecycle.StackConfig, error) {
	if cfg.Dispatch.InterceptorsFile == "" {
		return &defaultStacks, nil
	}
	return lifecycle.LoadStackConfigFile(cfg.Dispatch.InterceptorsFile)
}

func buildStacks(cfg *config.Config, logger *slog.Logger, metrics prometheus.Registerer) (*lifecycle.Stacks, error) {
	registry, err := interceptorRegistry(logger, metrics)
	if err != nil {
		return nil, err
	}
	stackConfig, err := loadStackConfig(cfg)
	if err != nil {
		return nil, err
	}
	stacks, err := registry.Build(stackConfig, logger)
	if err != nil {
		return nil, err
	}
	if !mentions(stackConfig, "beforeAfter") {
		logger.Warn("interceptor stacks omit beforeAfter; bean hooks will not run")
	}
	return stacks, nil
}

func mentions(cfg *lifecycle.StackConfig, name string) bool {
	for _, names := range cfg.Stacks {
		for _, n := range names {
			if n == name {
				return true
			}
		}
	}
	return false
}

// newFlashStore opens the configured flash store
func newFlashStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (flash.Store, func() error, error) {
	timeout := flash.WithTimeout(cfg.Flash.Timeout)

	switch cfg.Flash.Store {
	case config.FlashRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errors.Infrastructure("connect to redis", err).WithContext("addr", cfg.Redis.Addr)
		}
		logger.Info("flash scopes stored in redis", "addr", cfg.Redis.Addr)
		return flash.NewRedisStore(client, timeout), client.Close, nil

	case config.FlashSQL:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
		if err != nil {
			return nil, nil, errors.Infrastructure("connect to database", err)
		}
		opts := []flash.Option{timeout}
		if cfg.Database.Table != "" {
			opts = append(opts, flash.WithTable(cfg.Database.Table))
		}
		logger.Info("flash scopes stored in database")
		return flash.NewSQLStore(db, opts...), db.Close, nil

	default:
		return flash.NewMemoryStore(timeout), func() error { return nil }, nil
	}
}

// newUploadSaver returns an S3 saver when a bucket is configured
func newUploadSaver(ctx context.Context, cfg *config.Config) (upload.Saver, error) {
	if cfg.Upload.Bucket == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Infrastructure("load AWS configuration", err)
	}
	return upload.NewS3Saver(s3.NewFromConfig(awsCfg), cfg.Upload.Bucket, "uploads/"), nil
}
