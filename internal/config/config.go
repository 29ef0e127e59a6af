package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Infra     InfraConfig
	Ai        AIConfig
	Session   SessionConfig
	Chat      ChatConfig
	Retrieval RetrievalConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SocketLogFilePath  string
	CorsAllowedOrigins string
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type InfraConfig struct {
	RedisURL     string
	NatsURL      string
	OtelEnabled  bool
	OtelEndpoint string
}

type AIConfig struct {
	LLMProvider       string // "ollama" or "gemini"
	LLMModel          string // e.g. "llama3", "gemini-2.0-flash"
	EmbeddingProvider string // "ollama" or "gemini"
	EmbeddingModel    string
	OllamaBaseURL     string
	GeminiAPIKey      string
	Temperature       float64
	GenerationTimeout time.Duration
}

type SessionConfig struct {
	Store           string // "memory" or "redis"
	TTL             time.Duration
	CleanupInterval time.Duration
	LockTTL         time.Duration // turn lease held in redis, must outlive a generation
}

type ChatConfig struct {
	Flow             string // "standard" or "assessment"
	Steering         bool
	MarkerPriority   string // "conclude" or "search"
	DuplicateKeyRule string // "last" or "first"
}

type RetrievalConfig struct {
	Backend       string // "memory" or "pgvector"
	EventsDir     string
	PageSize      int
	Escalation    []int
	FallbackQuery string
	FallbackK     int
	ItemKey       string
}

const (
	FlowStandard   = "standard"
	FlowAssessment = "assessment"

	StoreMemory = "memory"
	StoreRedis  = "redis"

	BackendMemory   = "memory"
	BackendPgvector = "pgvector"
)

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			SocketLogFilePath:  getEnv("SOCKET_LOG_FILE_PATH", "logs/socket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Infra: InfraConfig{
			RedisURL:     getEnv("REDIS_URL", ""),
			NatsURL:      getEnv("NATS_URL", ""),
			OtelEnabled:  getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			GeminiAPIKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			GenerationTimeout: getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Store:           getEnv("SESSION_STORE", StoreMemory),
			TTL:             getEnvAsDuration("SESSION_TTL", time.Hour),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
			LockTTL:         getEnvAsDuration("SESSION_LOCK_TTL", 3*time.Minute),
		},
		Chat: ChatConfig{
			Flow:             getEnv("CHAT_FLOW", FlowStandard),
			Steering:         getEnvAsBool("CHAT_STEERING", true),
			MarkerPriority:   getEnv("CHAT_MARKER_PRIORITY", "conclude"),
			DuplicateKeyRule: getEnv("RECORD_DUPLICATE_KEY_POLICY", "last"),
		},
		Retrieval: RetrievalConfig{
			Backend:       getEnv("SEARCH_BACKEND", BackendMemory),
			EventsDir:     getEnv("EVENTS_DIR", "data/events"),
			PageSize:      getEnvAsInt("RETRIEVAL_PAGE_SIZE", 2),
			Escalation:    getEnvAsIntList("RETRIEVAL_ESCALATION", []int{4, 50}),
			FallbackQuery: getEnv("RETRIEVAL_FALLBACK_QUERY", "Event"),
			FallbackK:     getEnvAsInt("RETRIEVAL_FALLBACK_K", 50),
			ItemKey:       getEnv("RETRIEVAL_ITEM_KEY", "Event"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.App.Port) == "" {
		errs = append(errs, errors.New("APP_PORT is required"))
	}
	if !oneOf(c.Ai.LLMProvider, "ollama", "gemini") {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported", c.Ai.LLMProvider))
	}
	if c.Ai.LLMProvider == "gemini" && c.Ai.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GOOGLE_GEMINI_API_KEY is required for the gemini provider"))
	}
	if !oneOf(c.Session.Store, StoreMemory, StoreRedis) {
		errs = append(errs, fmt.Errorf("SESSION_STORE %q is not supported", c.Session.Store))
	}
	if c.Session.Store == StoreRedis && c.Infra.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required when SESSION_STORE=redis"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Session.LockTTL <= 0 {
		errs = append(errs, errors.New("SESSION_LOCK_TTL must be positive"))
	} else if c.Session.Store == StoreRedis && c.Session.LockTTL < 2*c.Ai.GenerationTimeout {
		errs = append(errs, fmt.Errorf("SESSION_LOCK_TTL %s must be at least twice LLM_TIMEOUT %s", c.Session.LockTTL, c.Ai.GenerationTimeout))
	}
	if !oneOf(c.Chat.Flow, FlowStandard, FlowAssessment) {
		errs = append(errs, fmt.Errorf("CHAT_FLOW %q is not supported", c.Chat.Flow))
	}
	if !oneOf(c.Chat.MarkerPriority, "conclude", "search") {
		errs = append(errs, fmt.Errorf("CHAT_MARKER_PRIORITY %q is not supported", c.Chat.MarkerPriority))
	}
	if !oneOf(c.Chat.DuplicateKeyRule, "last", "first") {
		errs = append(errs, fmt.Errorf("RECORD_DUPLICATE_KEY_POLICY %q is not supported", c.Chat.DuplicateKeyRule))
	}
	if !oneOf(c.Retrieval.Backend, BackendMemory, BackendPgvector) {
		errs = append(errs, fmt.Errorf("SEARCH_BACKEND %q is not supported", c.Retrieval.Backend))
	}
	if c.Retrieval.Backend == BackendPgvector && c.Database.Connection == "" {
		errs = append(errs, errors.New("DB_CONNECTION_STRING is required when SEARCH_BACKEND=pgvector"))
	}
	if c.Retrieval.PageSize <= 0 {
		errs = append(errs, errors.New("RETRIEVAL_PAGE_SIZE must be positive"))
	}
	if len(c.Retrieval.Escalation) == 0 {
		errs = append(errs, errors.New("RETRIEVAL_ESCALATION must list at least one candidate count"))
	}
	for i, k := range c.Retrieval.Escalation {
		if k <= 0 || (i > 0 && k < c.Retrieval.Escalation[i-1]) {
			errs = append(errs, errors.New("RETRIEVAL_ESCALATION must be positive and non-decreasing"))
			break
		}
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsIntList parses "4,50". Any malformed entry discards the whole value.
func getEnvAsIntList(key string, fallback []int) []int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fallback
		}
		out = append(out, n)
	}
	return out
}
