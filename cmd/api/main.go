package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/haloestate/leadpipe/docs" // swagger docs

	"github.com/haloestate/leadpipe/internal/config"
	"github.com/haloestate/leadpipe/internal/platform/auth"
	"github.com/haloestate/leadpipe/internal/platform/embeddingclient"
	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/notify"
	"github.com/haloestate/leadpipe/internal/platform/postgres"
	"github.com/haloestate/leadpipe/internal/platform/redis"
	"github.com/haloestate/leadpipe/internal/platform/sentryinit"
	"github.com/haloestate/leadpipe/internal/platform/storage"

	agentRepo "github.com/haloestate/leadpipe/modules/agents/repository"

	crmHandler "github.com/haloestate/leadpipe/modules/crm/handler"
	crmRepo "github.com/haloestate/leadpipe/modules/crm/repository"
	crmService "github.com/haloestate/leadpipe/modules/crm/service"

	embeddingHandler "github.com/haloestate/leadpipe/modules/embedding/handler"
	embeddingRepo "github.com/haloestate/leadpipe/modules/embedding/repository"
	embeddingService "github.com/haloestate/leadpipe/modules/embedding/service"

	ingestionHandler "github.com/haloestate/leadpipe/modules/ingestion/handler"
	ingestionRepo "github.com/haloestate/leadpipe/modules/ingestion/repository"
	ingestionService "github.com/haloestate/leadpipe/modules/ingestion/service"

	leadSourceRepo "github.com/haloestate/leadpipe/modules/leadsources/repository"

	leadsHandler "github.com/haloestate/leadpipe/modules/leads/handler"
	leadsRepo "github.com/haloestate/leadpipe/modules/leads/repository"
	leadsService "github.com/haloestate/leadpipe/modules/leads/service"

	lineageRepo "github.com/haloestate/leadpipe/modules/lineage/repository"
	lineageService "github.com/haloestate/leadpipe/modules/lineage/service"

	matchingHandler "github.com/haloestate/leadpipe/modules/matching/handler"
	matchingRepo "github.com/haloestate/leadpipe/modules/matching/repository"
	matchingService "github.com/haloestate/leadpipe/modules/matching/service"

	reportingHandler "github.com/haloestate/leadpipe/modules/reporting/handler"
	reportingRepo "github.com/haloestate/leadpipe/modules/reporting/repository"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title Leadpipe API
// @version 1.0
// @description Real-estate lead ingestion and CRM-attribution pipeline - ingests heterogeneous CSV feeds, normalizes and deduplicates leads, and probabilistically matches them against a synchronized Follow Up Boss CRM dataset.
// @termsOfService http://swagger.io/terms/

// @contact.name Platform Team
// @contact.email platform@leadpipe.example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a service token.

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting leadpipe API server",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	if err := sentryinit.Init(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		logger.Warn("Failed to initialize Sentry, error tracking disabled", zap.Error(err))
	}
	defer sentryinit.Flush(2 * time.Second)

	ctx := context.Background()

	pgClient, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgClient.Close()
	logger.Info("Connected to PostgreSQL")

	migrationsPath := "./migrations"
	if err := postgres.RunMigrations(ctx, cfg.Database, logger, migrationsPath); err != nil {
		logger.Fatal("Failed to run database migrations",
			zap.Error(err),
			zap.String("migrations_path", migrationsPath),
		)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	var s3Client *storage.S3Client
	if cfg.S3.Endpoint != "" && cfg.S3.Bucket != "" {
		s3Client, err = storage.NewS3Client(cfg.S3)
		if err != nil {
			logger.Warn("Failed to initialize S3 client, CSV staging will write batch rows without a blob backup", zap.Error(err))
		} else {
			logger.Info("S3 client initialized", zap.String("bucket", cfg.S3.Bucket))
		}
	} else {
		logger.Info("S3 configuration not provided, CSV staging will write batch rows without a blob backup")
	}

	embeddingClient := embeddingclient.New(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.RequestTimeout)
	notifier := notify.New(cfg.Notify.ResendAPIKey, cfg.Notify.FromAddress, cfg.Notify.OpsAddress, logger)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpPlatform.RequestIDMiddleware())
	router.Use(httpPlatform.LoggerMiddleware(logger))
	router.Use(httpPlatform.CORSMiddleware())

	if cfg.Server.Env != "production" {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		logger.Info("Swagger UI available at /swagger/index.html")
	}

	router.GET("/health", healthCheckHandler(ctx, pgClient, redisClient))
	router.GET("/ping", pingHandler)

	tokenManager := auth.NewServiceTokenManager(cfg.JWT.ServiceSecret, cfg.JWT.TokenExpiry)
	serviceAuth := auth.ServiceAuthMiddleware(tokenManager)

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
	reportRepository := reportingRepo.NewReportRepository(pgClient.Pool)

	// Services
	lineageSvc := lineageService.NewLineageService(lineageRepository)
	parserSvc := ingestionService.NewParserService(batchRepository, leadSourceRepository, notifier, logger)
	stagerSvc := ingestionService.NewStagerService(batchRepository, leadSourceRepository, s3Client, logger)
	transformerSvc := leadsService.NewTransformerService(
		batchRepository, leadSourceRepository, canonicalRepository, lineageSvc,
		embeddingTaskRepository, pgClient.Pool, logger,
	)

	scorerSvc := matchingService.NewScorerService(scorerCorpusRepository)
	matcherSvc := matchingService.NewMatcherService(
		matcherQueueRepository, scorerSvc, canonicalRepository, matchRepository,
		candidateRepository, canonicalStatusRepository, agentRepository, lineageSvc, logger,
	)
	resolverSvc := matchingService.NewReviewResolverService(
		candidateRepository, matchRepository, canonicalStatusRepository, agentRepository,
		crmLeadRepository, lineageSvc, pgClient.Pool,
	)

	pullerSvc := crmService.NewPullerService(
		connectionRepository, crmLeadRepository, syncLogRepository, embeddingTaskRepository,
		notifier, redisClient, logger,
	)
	embeddingSvc := embeddingService.NewEmbeddingService(
		embeddingTaskRepository, embeddingClient, pgClient.Pool,
		cfg.Embedding.BatchSize, cfg.Pipeline.MaxAttempts, logger,
	)

	// Handlers
	ingestionHdl := ingestionHandler.NewIngestionHandler(stagerSvc, parserSvc)
	leadsHdl := leadsHandler.NewLeadsHandler(transformerSvc)
	matchingHdl := matchingHandler.NewMatchingHandler(matcherSvc, resolverSvc)
	embeddingHdl := embeddingHandler.NewEmbeddingHandler(embeddingSvc)
	crmHdl := crmHandler.NewCrmHandler(pullerSvc)
	reportingHdl := reportingHandler.NewReportingHandler(reportRepository)

	v1 := router.Group("/api/v1")
	{
		ingestionHdl.RegisterRoutes(v1, serviceAuth)
		leadsHdl.RegisterRoutes(v1, serviceAuth)
		matchingHdl.RegisterRoutes(v1, serviceAuth)
		embeddingHdl.RegisterRoutes(v1, serviceAuth)
		crmHdl.RegisterRoutes(v1, serviceAuth)
		reportingHdl.RegisterRoutes(v1, serviceAuth)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// healthCheckHandler godoc
// @Summary Health Check
// @Description Check the health status of the application and its dependencies
// @Tags system
// @Produce json
// @Success 200 {object} http.HealthResponse
// @Router /health [get]
func healthCheckHandler(ctx context.Context, pgClient *postgres.Client, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		services := make(map[string]string)

		if err := pgClient.Health(ctx); err != nil {
			services["postgres"] = "down"
		} else {
			services["postgres"] = "up"
		}

		if err := redisClient.Health(ctx); err != nil {
			services["redis"] = "down"
		} else {
			services["redis"] = "up"
		}

		httpPlatform.RespondWithHealth(c, services)
	}
}

// pingHandler godoc
// @Summary Ping
// @Description Simple ping endpoint to check if the API is responding
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ping [get]
func pingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
