package admin

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/agent"
	"github.com/cloo-solutions/outreachai/internal/cache"
	"github.com/cloo-solutions/outreachai/internal/config"
	"github.com/cloo-solutions/outreachai/internal/database"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
	"github.com/cloo-solutions/outreachai/internal/logging"
	"github.com/cloo-solutions/outreachai/internal/openai"
	"github.com/cloo-solutions/outreachai/internal/repository"
	"github.com/cloo-solutions/outreachai/internal/scraper"
	"github.com/cloo-solutions/outreachai/internal/search"
	"github.com/cloo-solutions/outreachai/internal/service"
	"github.com/cloo-solutions/outreachai/internal/storage"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
	"github.com/cloo-solutions/outreachai/internal/tools"
)

const migrationsDir = "migrations"

type runtimeOptions struct {
	migrate      bool
	forceRebuild bool
}

// runtime holds the wired components shared by serve, kb and research.
type runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	status     knowledge.StoreStatus
	researcher *agent.Researcher
	knowledge  *service.KnowledgeService
	research   *service.ResearchService

	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func loadRuntimeConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.HasSentry() {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		flush, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		}, logger)
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			rt.closers = append(rt.closers, flush)
		}
	}

	rt.status = rt.openStore(ctx, opts)

	toolCache := rt.newCache(ctx)

	var searcher tools.WebSearcher
	if cfg.HasSearchAPI() {
		provider, err := search.NewProvider(search.ProviderName(cfg.SearchProvider), cfg.SearchAPIKey, nil)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to configure web search: %w", err)
		}
		searcher = search.NewService(provider, logger)
	} else {
		logger.Warn("no search API key configured, search_web will report an error")
	}

	fetcher := scraper.New(nil, scraper.Config{Timeout: cfg.FetchTimeout, MaxChars: cfg.FetchMaxChars}, logger)

	dispatcher := func(store *knowledge.Store) agent.Dispatcher {
		return tools.NewRegistry(tools.RegistryConfig{
			Timeout:  cfg.ToolTimeout,
			Cache:    toolCache,
			CacheTTL: cfg.CacheTTL,
		}, logger, tools.Standard(searcher, store, fetcher)...)
	}

	if !cfg.HasOpenAI() {
		logger.Warn("no OpenAI API key configured, research runs will fail")
	}
	model := openai.NewChatModel(openai.NewAPIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), openai.ChatConfig{
		Model:       cfg.ChatModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		MaxRetries:  3,
	}, logger)

	var background string
	if catalog, err := knowledge.LoadCatalog(); err == nil {
		background = catalog.ProfileText()
	}

	rt.researcher = agent.NewResearcher(model, rt.status, dispatcher, agent.ResearcherConfig{
		Loop: agent.LoopConfig{
			MaxTurns:    cfg.MaxTurns,
			Temperature: &cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		Background: background,
	}, logger)
	rt.knowledge = service.NewKnowledgeService(rt.status, logger)
	rt.research = service.NewResearchService(rt.researcher, rt.knowledge, logger)

	logger.Info("research mode selected", zap.String("mode", string(rt.researcher.Mode())))
	return rt, nil
}

// openStore never fails; every problem becomes an Unavailable status.
func (rt *runtime) openStore(ctx context.Context, opts runtimeOptions) knowledge.StoreStatus {
	embedder, err := newEmbedder(rt.cfg)
	if err != nil {
		rt.logger.Warn("knowledge store disabled", zap.Error(err))
		return knowledge.Unavailable{Reason: storeUnavailable(err)}
	}

	repo, err := rt.newRepository(ctx, opts.migrate)
	if err != nil {
		rt.logger.Warn("knowledge store disabled", zap.Error(err))
		return knowledge.Unavailable{Reason: storeUnavailable(err)}
	}

	status := knowledge.Open(ctx, knowledge.NewStore(repo, embedder, rt.logger), opts.forceRebuild, rt.logger)
	if ready, ok := status.(knowledge.Ready); ok {
		rt.logger.Info(ready.Status.String(),
			zap.String("backend", rt.cfg.StoreBackend),
			zap.String("embedder", ready.Status.EmbedderID),
			zap.Bool("rebuilt", ready.Status.Rebuilt))
	}
	return status
}

func newEmbedder(cfg *config.Config) (knowledge.Embedder, error) {
	switch cfg.Embedder {
	case config.EmbedderHash:
		return knowledge.NewHashEmbedder(knowledge.DefaultHashDimensions), nil
	default:
		if !cfg.HasOpenAI() {
			return nil, errors.New("embedder openai requires OUTREACH_OPENAI_API_KEY")
		}
		api := openai.NewAPIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		return openai.NewEmbedder(api, openai.EmbedderConfig{
			Model:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			Dimensions: cfg.EmbeddingDimensions,
		}), nil
	}
}

func (rt *runtime) newRepository(ctx context.Context, migrate bool) (knowledge.Repository, error) {
	cfg := rt.cfg
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		if migrate {
			if err := repository.Migrate(cfg.DatabaseURL, migrationsDir, rt.logger); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		rt.logger.Info("connected to database")
		return repository.NewChunkRepository(pool), nil

	case config.StoreBackendS3:
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Key:             cfg.S3IndexKey,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		repo := storage.NewS3Repository(client, cfg.S3Bucket, cfg.S3IndexKey)
		if err := repo.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		rt.logger.Info("S3 bucket ready", zap.String("bucket", cfg.S3Bucket), zap.String("key", cfg.S3IndexKey))
		return repo, nil

	default:
		return storage.NewFileRepository(cfg.DataDir)
	}
}

// newCache prefers Redis and falls back to an in-process cache when Redis is
// not configured or unreachable.
func (rt *runtime) newCache(ctx context.Context) cache.Cache {
	if !rt.cfg.HasRedis() {
		return cache.NewMemoryCache()
	}
	c, client, err := cache.NewRedisCacheFromURL(ctx, rt.cfg.RedisURL)
	if err != nil {
		rt.logger.Warn("redis unavailable, using in-process tool cache", zap.Error(err))
		return cache.NewMemoryCache()
	}
	rt.closers = append(rt.closers, func() { _ = client.Close() })
	return c
}

func storeUnavailable(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, domain.ErrStoreUnavailable.Message, err)
}
