package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"

	"github.com/quantlab/quantjobs/config"
	"github.com/quantlab/quantjobs/internal/adapters/redisq"
	"github.com/quantlab/quantjobs/internal/data"
	"github.com/quantlab/quantjobs/internal/quant"
	"github.com/quantlab/quantjobs/internal/service"
	"github.com/quantlab/quantjobs/internal/worker"
)

// App holds all application services for the enabled modes.
type App struct {
	Submission *service.SubmissionService
	Query      *service.QueryService
	Consumer   *redisq.Consumer // nil unless the worker service is enabled

	bucket *blob.Bucket
	logger *slog.Logger
}

// AppDeps groups dependencies for application wiring.
type AppDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewApp wires repositories, adapters and services for the configured
// service modes.
func NewApp(ctx context.Context, deps *AppDeps) (*App, error) {
	cfg := deps.Config
	secret := []byte(cfg.DispatchSecret)

	repo := data.NewJobRepo(deps.DB, data.RepoConfig{Logger: deps.Logger})

	publisher, err := redisq.NewPublisher(redisq.PublisherOptions{
		Client: deps.RedisClient,
		Stream: cfg.Dispatch.Stream,
		Secret: secret,
	})
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}

	submission, err := service.NewSubmissionService(service.SubmissionServiceOptions{
		Store:     repo,
		Publisher: publisher,
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init submission service: %w", err)
	}

	query, err := service.NewQueryService(service.QueryServiceOptions{
		Store:  repo,
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init query service: %w", err)
	}

	app := &App{
		Submission: submission,
		Query:      query,
		logger:     deps.Logger,
	}

	if cfg.IsWorkerEnabled() {
		if err := app.wireWorker(ctx, deps, secret); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func (a *App) wireWorker(ctx context.Context, deps *AppDeps, secret []byte) error {
	cfg := deps.Config

	objects, bucket, err := OpenArtifactStore(ctx, cfg.Artifacts, cfg.IsDev, deps.Logger)
	if err != nil {
		return err
	}
	a.bucket = bucket

	repo := data.NewJobRepo(deps.DB, data.RepoConfig{Logger: deps.Logger})
	source := NewMarketDataClient(cfg.MarketData, deps.Logger)
	runner := quant.NewRunner(deps.Logger)

	pipeline, err := worker.NewPipeline(worker.PipelineOptions{
		Source:  source,
		Runner:  runner,
		Objects: objects,
		Timeouts: worker.PipelineTimeouts{
			Load:  cfg.Worker.LoadTimeout,
			Model: cfg.Worker.ModelTimeout,
			Write: cfg.Worker.WriteTimeout,
		},
		Logger: deps.Logger,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	finalizer, err := worker.NewFinalizer(worker.FinalizerOptions{
		Store:        repo,
		Objects:      objects,
		SignedURLTTL: cfg.Artifacts.SignedURLTTL,
		Logger:       deps.Logger,
	})
	if err != nil {
		return fmt.Errorf("init finalizer: %w", err)
	}

	dispatcher, err := worker.NewDispatcher(worker.DispatcherOptions{
		Store:     repo,
		Pipeline:  pipeline,
		Finalizer: finalizer,
		Secret:    secret,
		Logger:    deps.Logger,
	})
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	consumerName := cfg.Worker.Consumer
	if consumerName == "" {
		host, _ := os.Hostname()
		consumerName = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	consumer, err := redisq.NewConsumer(redisq.ConsumerOptions{
		Client:        deps.RedisClient,
		Handler:       dispatcher,
		Logger:        deps.Logger,
		Stream:        cfg.Dispatch.Stream,
		Group:         cfg.Dispatch.Group,
		Consumer:      consumerName,
		Concurrency:   cfg.Worker.Concurrency,
		ClaimMinIdle:  cfg.Dispatch.ClaimMinIdle,
		ClaimInterval: cfg.Dispatch.ClaimInterval,
	})
	if err != nil {
		return fmt.Errorf("init consumer: %w", err)
	}

	a.Consumer = consumer
	return nil
}

// Run blocks until shutdown. The worker consumer (when enabled) runs until
// the context is cancelled by a signal or a fatal service error.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if a.Consumer != nil {
		g.Go(func() error {
			return a.Consumer.Run(gctx)
		})
	} else {
		// API-only processes have no long-running loop of their own yet;
		// block until a shutdown signal.
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if a.bucket != nil {
		if cerr := a.bucket.Close(); cerr != nil && a.logger != nil {
			a.logger.Error("close artifact bucket failed", "error", cerr)
		}
	}

	if a.logger != nil {
		a.logger.Info("shutdown complete")
	}
	return err
}
