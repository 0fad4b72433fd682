// cmd/matching-service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mandate-matching/internal/api"
	"mandate-matching/internal/common/aws"
	"mandate-matching/internal/common/camunda"
	"mandate-matching/internal/common/config"
	"mandate-matching/internal/common/database"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/observability"
	"mandate-matching/internal/common/resilience"
	"mandate-matching/internal/feedback"
	"mandate-matching/internal/search"
	"mandate-matching/internal/store"
	"mandate-matching/pkg/registry"

	svi "mandate-matching/internal/workers/matching/calculate-signal-value"
	eph "mandate-matching/internal/workers/matching/evaluate-pricing-heuristic"
	rmw "mandate-matching/internal/workers/matching/recompute-mandate-weights"
	rls "mandate-matching/internal/workers/matching/record-learning-signal"
	smm "mandate-matching/internal/workers/matching/search-mandate-matches"

	"go.uber.org/zap"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting matching service",
		zap.String("environment", cfg.App.Environment),
		zap.String("candidateSource", cfg.Matching.CandidateSource),
	)

	obs := observability.New(cfg.App.Name, log)
	ctx := context.Background()

	// --- Storage ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()

	checks := map[string]func(context.Context) error{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	var companies store.Companies = store.NewPostgresCandidates(pg.DB, log)
	if cfg.Matching.CandidateSource == config.CandidateSourceElasticsearch {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		companies = store.NewElasticsearchCandidates(es.Client, cfg.Matching.CompaniesIndex, log)
		checks["elasticsearch"] = es.Ping
	}

	resilient := store.NewResilient(resilience.NewExecutor(resilience.FromAppConfig(cfg.Resilience), log))
	companies = resilient.Candidates(companies)
	mandates := resilient.Mandates(store.NewPostgresMandates(pg.DB, log))
	cachedWeights := store.NewCachedWeights(
		store.NewPostgresWeights(pg.DB, log),
		rdb.Client,
		config.GetDuration(cfg.Matching.WeightsCacheTTL),
		log,
	)
	weights := resilient.Weights(cachedWeights)
	// the aggregator's version check needs the stored record, not a cached one
	aggregatorWeights := resilient.Weights(cachedWeights.Direct())
	signals := store.NewPostgresSignals(pg.DB, log)

	// --- Domain services ---
	defaults := cfg.DefaultWeights()
	orchestrator := search.NewOrchestrator(search.Config{
		DefaultWeights:  defaults,
		PageSize:        cfg.Matching.CandidateCap,
		CoarsePrefilter: cfg.Matching.CoarsePrefilter,
	}, companies, weights, mandates, obs, log)

	var publisher feedback.Publisher = feedback.NoopPublisher{}
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		publisher = feedback.NewSNSPublisher(snsClient, cfg.Integrations.AWS.SNS.WeightsTopicARN, log)
	}

	aggregator := feedback.NewAggregator(feedback.Config{
		DefaultWeights: defaults,
		LearningRate:   cfg.Matching.LearningRate,
		LockTTL:        config.GetDuration(cfg.Matching.LockTTL),
		Concurrency:    cfg.Matching.RecomputeConcurrency,
	}, feedback.Deps{
		Signals:   signals,
		Weights:   aggregatorWeights,
		Mandates:  mandates,
		Companies: companies,
		Locker:    store.NewRedisLocker(rdb.Client),
		Publisher: publisher,
		Obs:       obs,
	}, log)

	var scheduler *feedback.Scheduler
	if cfg.Matching.RecomputeSchedule != "" {
		scheduler, err = feedback.NewScheduler(cfg.Matching.RecomputeSchedule, aggregator, 0, log)
		if err != nil {
			zapLog.Fatal("recompute scheduler init failed", zap.Error(err))
		}
		scheduler.Start()
	}

	// --- Zeebe workers ---
	var (
		zeebe *camunda.Client
		pool  *camunda.WorkerPool
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks["zeebe"] = zeebe.HealthCheck

		reg, err := registry.LoadOrDefault(cfg.RegistryPath)
		if err != nil {
			zapLog.Fatal("activity registry load failed", zap.Error(err))
		}
		pool = camunda.NewWorkerPool(zeebe.GetClient(), log)
		if err := startWorkers(pool, cfg, reg, workerDeps{
			searcher:   orchestrator,
			recomputer: aggregator,
			signals:    signals,
			obs:        obs,
		}, log); err != nil {
			zapLog.Fatal("worker registration failed", zap.Error(err))
		}
	}

	// --- HTTP ---
	server := api.NewServer(cfg.Server, api.Deps{
		Searcher:       orchestrator,
		Recomputer:     aggregator,
		Signals:        signals,
		Weights:        weights,
		DefaultWeights: defaults,
		Checks:         checks,
	}, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("HTTP server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Server))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLog.Error("HTTP shutdown failed", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if pool != nil {
		pool.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics shutdown failed", zap.Error(err))
	}

	zapLog.Info("Matching service stopped gracefully")
}

func shutdownTimeout(s config.ServerConfig) time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 30 * time.Second
	}
	return config.GetDuration(s.ShutdownTimeout)
}

type workerDeps struct {
	searcher   *search.Orchestrator
	recomputer *feedback.Aggregator
	signals    store.SignalLog
	obs        *observability.Observability
}

func startWorkers(pool *camunda.WorkerPool, cfg *config.Config, reg *registry.ActivityRegistry, deps workerDeps, log logger.Logger) error {
	searchHandler, err := smm.NewHandler(smm.LoadConfig(config.GetWorkerConfig(cfg, smm.TaskType), reg), deps.searcher, deps.obs, log)
	if err != nil {
		return fmt.Errorf("%s: %w", smm.TaskType, err)
	}
	pool.Start(smm.TaskType, config.GetWorkerConfig(cfg, smm.TaskType), searchHandler.Handle)

	recomputeHandler, err := rmw.NewHandler(rmw.LoadConfig(config.GetWorkerConfig(cfg, rmw.TaskType), reg), deps.recomputer, deps.obs, log)
	if err != nil {
		return fmt.Errorf("%s: %w", rmw.TaskType, err)
	}
	pool.Start(rmw.TaskType, config.GetWorkerConfig(cfg, rmw.TaskType), recomputeHandler.Handle)

	signalHandler, err := rls.NewHandler(rls.LoadConfig(config.GetWorkerConfig(cfg, rls.TaskType), reg), deps.signals, deps.obs, log)
	if err != nil {
		return fmt.Errorf("%s: %w", rls.TaskType, err)
	}
	pool.Start(rls.TaskType, config.GetWorkerConfig(cfg, rls.TaskType), signalHandler.Handle)

	sviHandler, err := svi.NewHandler(svi.LoadConfig(config.GetWorkerConfig(cfg, svi.TaskType), reg), deps.obs, log)
	if err != nil {
		return fmt.Errorf("%s: %w", svi.TaskType, err)
	}
	pool.Start(svi.TaskType, config.GetWorkerConfig(cfg, svi.TaskType), sviHandler.Handle)

	pricingHandler, err := eph.NewHandler(eph.LoadConfig(config.GetWorkerConfig(cfg, eph.TaskType), reg), deps.obs, log)
	if err != nil {
		return fmt.Errorf("%s: %w", eph.TaskType, err)
	}
	pool.Start(eph.TaskType, config.GetWorkerConfig(cfg, eph.TaskType), pricingHandler.Handle)

	log.Info("workers registered", map[string]interface{}{"taskTypes": pool.TaskTypes()})
	return nil
}
