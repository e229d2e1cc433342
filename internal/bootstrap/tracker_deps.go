package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tracker_server/adapter/out/cache"
	"tracker_server/adapter/out/mongodb"
	"tracker_server/adapter/out/persistence"
	"tracker_server/adapter/out/provider"
	"tracker_server/config"
	"tracker_server/core/agent/llm"
	"tracker_server/core/port/out"
	"tracker_server/core/service/auth"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/dedup"
	"tracker_server/core/service/extraction"
	"tracker_server/core/service/mailfetch"
	"tracker_server/core/service/scoring"
	"tracker_server/core/service/tracking"
	"tracker_server/infra/database"
	"tracker_server/internal/stream"
	"tracker_server/pkg/crypto"
	"tracker_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const streamGroup = "tracker-workers"

// Dependencies holds every connection and service the API and worker share.
type Dependencies struct {
	DB    *pgxpool.Pool
	SQLDB *sqlx.DB
	Redis *redis.Client
	Mongo *mongo.Client

	Gmail       *provider.GmailAdapter
	Credentials *auth.CredentialManager
	Extractor   *extraction.Extractor
	LLM         *llm.Client // nil without OPENAI_API_KEY
	Sync        *tracking.Orchestrator

	// Stream and Producer are nil without Redis.
	Stream   *stream.RedisStream
	Producer *stream.Producer
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps := &Dependencies{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Database (pgxpool)
	logger.Debug("Connecting to database via pgxpool...")
	pool, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.DefaultPostgresConfig(cfg.DBMaxConns))
	if err != nil {
		return fail(fmt.Errorf("postgres: %w", err))
	}
	deps.DB = pool
	closers = append(closers, pool.Close)

	// Database (sqlx for the repository adapters)
	logger.Debug("Connecting to database via sqlx...")
	sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return fail(fmt.Errorf("sqlx: %w", err))
	}
	deps.SQLDB = sqlDB
	closers = append(closers, func() { sqlDB.Close() })

	if cfg.EnsureSchema {
		if err := persistence.EnsureSchema(ctx, sqlDB); err != nil {
			return fail(fmt.Errorf("ensure schema: %w", err))
		}
		logger.Info("Database schema ensured")
	}

	// Redis (optional: shared cache tier and job stream)
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL, database.DefaultRedisConfig(cfg.RedisPool))
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		deps.Redis = client
		closers = append(closers, func() { client.Close() })
	} else {
		logger.Warn("REDIS_URL not set: extraction cache is process-local and async sync is disabled")
	}

	// MongoDB (optional: extraction audit)
	var audit *mongodb.ExtractionAuditAdapter
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			return fail(err)
		}
		deps.Mongo = client
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(ctx)
		})

		audit = mongodb.NewExtractionAuditAdapter(client.Database(cfg.MongoDBName))
		if err := audit.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure extraction audit indexes")
		}
	}

	// Token encryption
	encryptor, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
	if err != nil {
		if !errors.Is(err, crypto.ErrMissingKey) {
			return fail(fmt.Errorf("encryption: %w", err))
		}
		encryptor = nil
	}

	// Repositories
	credentialRepo := persistence.NewCredentialAdapter(sqlDB, encryptor)
	applicationRepo := persistence.NewApplicationAdapter(sqlDB)
	syncStateRepo := persistence.NewSyncStateAdapter(pool)

	// Mail provider
	deps.Gmail = provider.NewGmailAdapter(&provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	deps.Credentials = auth.NewCredentialManager(credentialRepo, deps.Gmail, auth.CredentialManagerConfig{
		RefreshSkew:    cfg.TokenRefreshSkew,
		RefreshTimeout: cfg.TokenRefreshTimeout,
	})

	// Extraction
	var inference out.InferencePort
	if cfg.OpenAIAPIKey != "" {
		client := llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
		deps.LLM = client
		inference = llm.NewJobExtractor(client)
		logger.Info("Inference configured (model: %s)", client.Model())
	} else {
		logger.Warn("OPENAI_API_KEY not set: uncached messages will be reported as extraction unavailable")
	}

	var extractionCache out.ExtractionCache = extraction.NewMemoryCache(cfg.ExtractionCacheSize)
	if deps.Redis != nil {
		extractionCache = extraction.NewTieredCache(
			extractionCache,
			cache.NewRedisExtractionCache(deps.Redis, cfg.RedisCacheTTL),
		)
	}

	deps.Extractor = extraction.NewExtractor(inference, extractionCache, extraction.ExtractorConfig{
		CallTimeout: cfg.LLMTimeout,
	})
	if audit != nil {
		deps.Extractor.SetAuditStore(audit)
	}

	// Orchestrator
	deps.Sync = tracking.NewOrchestrator(tracking.Deps{
		Credentials: deps.Credentials,
		Fetcher: mailfetch.NewFetcher(deps.Gmail, mailfetch.FetcherConfig{
			FetchTimeout: cfg.MailFetchTimeout,
		}),
		Filter:    classification.NewPreFilter(),
		Extractor: deps.Extractor,
		Scorer:    scoring.NewConfidenceScorer(scoring.DefaultWeights),
		Duplicates: dedup.NewDuplicateDetector(applicationRepo, dedup.Config{
			SimilarityThreshold: cfg.DedupSimilarityThreshold,
			Lookback:            cfg.DedupLookback(),
			LookbackLimit:       cfg.DedupLookbackLimit,
		}),
		Records:   applicationRepo,
		SyncState: syncStateRepo,
	}, tracking.Config{
		DefaultMaxResults:  cfg.SyncDefaultMaxResults,
		MaxResultsCap:      cfg.SyncMaxResultsCap,
		SyncTimeout:        cfg.SyncTimeout,
		ResumeFromLastSync: cfg.ResumeFromLastSync,
	})

	// Job stream
	if deps.Redis != nil {
		deps.Stream = stream.NewRedisStream(deps.Redis, streamGroup, newZerolog(cfg, "stream"))
		deps.Producer = stream.NewProducer(deps.Stream)
	}

	logger.Info("Dependencies initialized")
	return deps, cleanup, nil
}
