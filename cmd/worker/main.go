package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/haloestate/leadpipe/internal/config"
	"github.com/haloestate/leadpipe/internal/platform/embeddingclient"
	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/notify"
	"github.com/haloestate/leadpipe/internal/platform/postgres"
	"github.com/haloestate/leadpipe/internal/platform/redis"
	"github.com/haloestate/leadpipe/internal/platform/sentryinit"
	"github.com/haloestate/leadpipe/internal/platform/workerqueue"

	agentRepo "github.com/haloestate/leadpipe/modules/agents/repository"

	crmPorts "github.com/haloestate/leadpipe/modules/crm/ports"
	crmRepo "github.com/haloestate/leadpipe/modules/crm/repository"
	crmService "github.com/haloestate/leadpipe/modules/crm/service"

	embeddingRepo "github.com/haloestate/leadpipe/modules/embedding/repository"
	embeddingService "github.com/haloestate/leadpipe/modules/embedding/service"

	ingestionRepo "github.com/haloestate/leadpipe/modules/ingestion/repository"

	leadSourceRepo "github.com/haloestate/leadpipe/modules/leadsources/repository"

	leadsRepo "github.com/haloestate/leadpipe/modules/leads/repository"
	leadsService "github.com/haloestate/leadpipe/modules/leads/service"

	lineageRepo "github.com/haloestate/leadpipe/modules/lineage/repository"
	lineageService "github.com/haloestate/leadpipe/modules/lineage/service"

	matchingRepo "github.com/haloestate/leadpipe/modules/matching/repository"
	matchingService "github.com/haloestate/leadpipe/modules/matching/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// This process runs the pipeline's four independent poll loops
// (transformer, matcher, embedder, CRM puller) plus the candidate-TTL
// sweep and the stale-claim reaper, each on its own interval. Any number of
// these may run concurrently against the same database: every claim goes
// through FOR UPDATE SKIP LOCKED, so two workers never double-process a row.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	workerLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer workerLogger.Sync()

	workerLogger.Info("Starting leadpipe worker", zap.String("env", cfg.Server.Env))

	if err := sentryinit.Init(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		workerLogger.Warn("Failed to initialize Sentry, error tracking disabled", zap.Error(err))
	}
	defer sentryinit.Flush(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		workerLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		workerLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	embeddingClient := embeddingclient.New(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.RequestTimeout)
	notifier := notify.New(cfg.Notify.ResendAPIKey, cfg.Notify.FromAddress, cfg.Notify.OpsAddress, workerLogger)

	// Repositories
	leadSourceRepository := leadSourceRepo.NewLeadSourceRepository(pgClient.Pool)
	agentRepository := agentRepo.NewAgentRepository(pgClient.Pool)
	lineageRepository := lineageRepo.NewLineageRepository(pgClient.Pool)
	batchRepository := ingestionRepo.NewBatchRepository(pgClient.Pool)
	canonicalRepository := leadsRepo.NewCanonicalLeadRepository(pgClient.Pool)
	embeddingTaskRepository := embeddingRepo.NewEmbeddingTaskRepository(pgClient.Pool)
	matcherQueueRepository := matchingRepo.NewMatcherQueueRepository(pgClient.Pool)
	matchRepository := matchingRepo.NewMatchRepository(pgClient.Pool)
	candidateRepository := matchingRepo.NewCandidateRepository(pgClient.Pool)
	canonicalStatusRepository := matchingRepo.NewCanonicalStatusRepository(pgClient.Pool)
	scorerCorpusRepository := matchingRepo.NewScorerCorpusRepository(pgClient.Pool)
	connectionRepository := crmRepo.NewConnectionRepository(pgClient.Pool)
	crmLeadRepository := crmRepo.NewCrmLeadRepository(pgClient.Pool)
	syncLogRepository := crmRepo.NewSyncLogRepository(pgClient.Pool)

	// Services
	lineageSvc := lineageService.NewLineageService(lineageRepository)

	transformerSvc := leadsService.NewTransformerService(
		batchRepository, leadSourceRepository, canonicalRepository, lineageSvc,
		embeddingTaskRepository, pgClient.Pool, workerLogger,
	)

	scorerSvc := matchingService.NewScorerService(scorerCorpusRepository)
	matcherSvc := matchingService.NewMatcherService(
		matcherQueueRepository, scorerSvc, canonicalRepository, matchRepository,
		candidateRepository, canonicalStatusRepository, agentRepository, lineageSvc, workerLogger,
	)
	resolverSvc := matchingService.NewReviewResolverService(
		candidateRepository, matchRepository, canonicalStatusRepository, agentRepository,
		crmLeadRepository, lineageSvc, pgClient.Pool,
	)

	embeddingSvc := embeddingService.NewEmbeddingService(
		embeddingTaskRepository, embeddingClient, pgClient.Pool,
		cfg.Embedding.BatchSize, cfg.Pipeline.MaxAttempts, workerLogger,
	)

	pullerSvc := crmService.NewPullerService(
		connectionRepository, crmLeadRepository, syncLogRepository, embeddingTaskRepository,
		notifier, redisClient, workerLogger,
	)

	onResult := func(name string) func(int, error, time.Duration) {
		return func(processed int, err error, took time.Duration) {
			if err != nil {
				workerLogger.Error("worker pass failed", zap.String("worker", name), zap.Error(err), zap.Duration("took", took))
				return
			}
			if processed > 0 {
				workerLogger.Info("worker pass completed", zap.String("worker", name), zap.Int("processed", processed), zap.Duration("took", took))
			}
		}
	}

	runners := []*workerqueue.Runner{
		{
			Name:     "transformer",
			Interval: cfg.Pipeline.PollInterval,
			Handler: func(ctx context.Context) (int, error) {
				return transformerSvc.RunPending(ctx, cfg.Pipeline.TransformerBatchSize)
			},
			OnResult: onResult("transformer"),
		},
		{
			Name:     "matcher",
			Interval: cfg.Pipeline.PollInterval,
			Handler: func(ctx context.Context) (int, error) {
				result, err := matcherSvc.Run(ctx)
				return result.Claimed, err
			},
			OnResult: onResult("matcher"),
		},
		{
			Name:     "embedder",
			Interval: cfg.Pipeline.PollInterval,
			Handler:  embeddingSvc.Run,
			OnResult: onResult("embedder"),
		},
		{
			Name:     "crm_puller",
			Interval: cfg.Pipeline.PollInterval,
			Handler: func(ctx context.Context) (int, error) {
				return runCrmSyncPass(ctx, connectionRepository, pullerSvc, workerLogger)
			},
			OnResult: onResult("crm_puller"),
		},
		{
			Name:     "candidate_sweep",
			Interval: cfg.Pipeline.CandidateTTL / 4,
			Handler:  resolverSvc.SweepExpired,
			OnResult: onResult("candidate_sweep"),
		},
		{
			Name:     "reaper",
			Interval: cfg.Pipeline.ReaperInterval,
			Handler: func(ctx context.Context) (int, error) {
				return runReaperPass(ctx, pgClient.Pool, cfg.Pipeline.ReaperStuckAfter)
			},
			OnResult: onResult("reaper"),
		},
	}

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *workerqueue.Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(r)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerLogger.Info("Shutting down worker...")
	cancel()
	wg.Wait()
	workerLogger.Info("Worker exited")
}

// runCrmSyncPass syncs every active CRM connection once, incrementally
// unless a full resync is due, and returns the total number of people
// fetched across all connections. A single connection's failure (including
// one already held by another worker's sync mutex) is logged, not fatal to
// the pass.
func runCrmSyncPass(ctx context.Context, connections crmPorts.ConnectionRepository, puller *crmService.PullerService, log *logger.Logger) (int, error) {
	active, err := connections.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, conn := range active {
		result, err := puller.Sync(ctx, conn.TenantID, conn.ID, false)
		if err != nil {
			log.Error("crm sync failed", zap.String("connection_id", conn.ID), zap.Error(err))
			continue
		}
		total += result.Fetched
	}
	return total, nil
}

// reaperSpecs enumerates every table with a claim-then-process status pair,
// so a crashed worker's in-flight claim isn't stuck past stuckAfter.
func reaperSpecs(stuckAfter time.Duration) []workerqueue.ReapSpec {
	stuck := int(stuckAfter.Seconds())
	return []workerqueue.ReapSpec{
		{Table: "batches", ProcessingStatus: "processing", PendingStatus: "pending", StuckAfterSeconds: stuck},
		{Table: "batches", ProcessingStatus: "transforming", PendingStatus: "parsed", StuckAfterSeconds: stuck},
		{Table: "embedding_tasks", ProcessingStatus: "processing", PendingStatus: "pending", StuckAfterSeconds: stuck, AttemptsColumn: "attempts"},
	}
}

// runReaperPass recovers claims stuck past stuckAfter across every
// claim-bearing table, so a crashed worker never strands a row forever.
func runReaperPass(ctx context.Context, pool *pgxpool.Pool, stuckAfter time.Duration) (int, error) {
	total := 0
	for _, spec := range reaperSpecs(stuckAfter) {
		recovered, err := workerqueue.Reap(ctx, pool, spec)
		if err != nil {
			return total, err
		}
		total += int(recovered)
	}
	return total, nil
}
