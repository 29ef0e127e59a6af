package bootstrap

import (
	"context"
	"fmt"

	"socialsync-be/internal/config"
	"socialsync-be/internal/controller"
	"socialsync-be/internal/observability"
	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/repository/memory"
	"socialsync-be/internal/repository/unitofwork"
	"socialsync-be/internal/service"
	"socialsync-be/internal/websocket"
	"socialsync-be/pkg/embedding"
	"socialsync-be/pkg/events"
	"socialsync-be/pkg/llm/factory"
	"socialsync-be/pkg/rag/classifier"
	"socialsync-be/pkg/rag/executor"
	"socialsync-be/pkg/rag/protocol"
	"socialsync-be/pkg/rag/record"
	"socialsync-be/pkg/rag/retrieval"
	"socialsync-be/pkg/rag/search"
	"socialsync-be/pkg/rag/session"
	"socialsync-be/pkg/rag/state"

	pktNats "socialsync-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatbotController controller.IChatbotController

	// Background Services (Exposed for main.go to run). ConsumerService is nil without a database.
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Registry *prometheus.Registry
	Logger   logger.ILogger

	closers []func()
}

// NewContainer builds every component. db may be nil: the archive is then disabled and
// the pgvector backend is unavailable.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c.Logger = sysLogger
	c.Registry = observability.NewRegistry()
	metrics := observability.NewMetrics(c.Registry)

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}

	// 2. Infrastructure
	var rdb *redis.Client
	if cfg.Infra.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Infra.RedisURL)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.Infra.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	var eventPublisher events.Publisher = events.NopPublisher{}
	if cfg.Infra.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.Infra.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS, domain events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// 3. Event Bus for the transcript archive
	publisherService := service.NewNopPublisherService()
	var archiveService service.IArchiveService
	if uowFactory != nil {
		pubSub := gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			watermill.NewStdLogger(false, false),
		)
		publisherService = service.NewPublisherService(pubSub, service.ArchiveTopic)
		c.ConsumerService = service.NewArchiveConsumer(pubSub, service.ArchiveTopic, uowFactory, metrics, sysLogger)
		archiveService = service.NewArchiveService(uowFactory, sysLogger)
		c.closers = append(c.closers, func() { pubSub.Close() })
	}

	// 4. Sessions
	var sessionStore session.Store
	var sessionOpts []session.Option
	switch cfg.Session.Store {
	case config.StoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis session store needs REDIS_URL")
		}
		sessionStore = memory.NewRedisSessionRepository(rdb, cfg.Session.TTL)
		// Replicas share sessions, so turns are serialized through a redis lease.
		lease := session.NewLeaseLocker(memory.NewRedisLease(rdb), cfg.Session.LockTTL, sysLogger)
		sessionOpts = append(sessionOpts, session.WithLocker(lease))
	default:
		repo := memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval)
		repo.OnEvicted(func(sessionID string) {
			metrics.SessionLifecycle.WithLabelValues("expired").Inc()
		})
		sessionStore = repo
	}
	sessionManager := session.NewManager(sessionStore, cfg.Chat.Flow == config.FlowAssessment, sysLogger, sessionOpts...)

	// 5. Generation and retrieval
	llmProvider, err := factory.NewLLMProvider(ctx, factory.Params{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		BaseURL:     cfg.Ai.OllamaBaseURL,
		APIKey:      cfg.Ai.GeminiAPIKey,
		Temperature: cfg.Ai.Temperature,
		Timeout:     cfg.Ai.GenerationTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init LLM provider: %w", err)
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	searchService, err := newSearchService(ctx, cfg, uowFactory, sysLogger)
	if err != nil {
		return nil, err
	}

	engine := retrieval.NewEngine(
		searchService,
		record.NewParser(record.DuplicateKeyPolicy(cfg.Chat.DuplicateKeyRule)),
		retrieval.Policy{
			PageSize:      cfg.Retrieval.PageSize,
			Escalation:    cfg.Retrieval.Escalation,
			FallbackQuery: cfg.Retrieval.FallbackQuery,
			FallbackK:     cfg.Retrieval.FallbackK,
			ItemKey:       cfg.Retrieval.ItemKey,
		},
		sysLogger,
	)

	pipelineExecutor := executor.NewPipelineExecutor(
		llmProvider,
		protocol.NewProtocol(protocol.NewGate(), protocol.ParsePriority(cfg.Chat.MarkerPriority), cfg.Retrieval.FallbackQuery, sysLogger),
		engine,
		classifier.NewClassifier(llmProvider, sysLogger),
		state.NewManager(sysLogger),
		cfg.Chat.Steering,
		sysLogger,
	)

	chatbotService := service.NewChatbotService(
		sessionManager,
		pipelineExecutor,
		publisherService,
		eventPublisher,
		metrics,
		sysLogger,
	)

	// 6. WebSockets
	wsLogger := logger.NewIsolatedLogger(cfg.App.SocketLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, metrics, wsLogger)

	// 7. Controllers
	c.ChatbotController = controller.NewChatbotController(chatbotService, archiveService, c.WebSocketHub, wsLogger)

	return c, nil
}

func newSearchService(ctx context.Context, cfg *config.Config, uowFactory unitofwork.RepositoryFactory, log logger.ILogger) (search.Service, error) {
	if cfg.Retrieval.Backend != config.BackendPgvector {
		store, err := search.LoadDir(cfg.Retrieval.EventsDir)
		if err != nil {
			return nil, fmt.Errorf("load events from %s: %w", cfg.Retrieval.EventsDir, err)
		}
		log.Info("Bootstrap", "In-memory event index loaded", map[string]interface{}{
			"dir":    cfg.Retrieval.EventsDir,
			"events": store.Len(),
		})
		return store, nil
	}

	if uowFactory == nil {
		return nil, fmt.Errorf("pgvector search backend needs a database")
	}
	embeddingProvider, err := NewEmbeddingProvider(ctx, cfg.Ai)
	if err != nil {
		return nil, err
	}
	return search.NewVectorStore(embeddingProvider, uowFactory, log), nil
}

// NewEmbeddingProvider picks the embedding backend named in cfg.
func NewEmbeddingProvider(ctx context.Context, cfg config.AIConfig) (embedding.EmbeddingProvider, error) {
	if cfg.EmbeddingProvider == "gemini" {
		provider, err := embedding.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("init embedding provider: %w", err)
		}
		return provider, nil
	}
	return embedding.NewOllamaProvider(cfg.OllamaBaseURL, cfg.EmbeddingModel), nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Logger.Sync()
}
