package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port" validate:"required"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `yaml:"log_file"`

	// Chunking
	MinChunkChars   int      `yaml:"min_chunk_chars" validate:"gt=0"`
	MaxChunkChars   int      `yaml:"max_chunk_chars" validate:"gtefield=MinChunkChars"`
	SubjectKeywords []string `yaml:"subject_keywords" validate:"min=1,dive,required"`
	EmphaticHeaders bool     `yaml:"emphatic_headers"`

	// Retrieval
	VariantCount      int           `yaml:"variant_count" validate:"gt=0,lte=10"`
	SearchTopK        int           `yaml:"search_top_k" validate:"gt=0,lte=200"`
	RerankTopM        int           `yaml:"rerank_top_m" validate:"gt=0"`
	SearchConcurrency int           `yaml:"search_concurrency" validate:"gt=0"`
	ExpansionCacheTTL time.Duration `yaml:"expansion_cache_ttl"`

	// Per-call timeouts
	ExpandTimeout   time.Duration `yaml:"expand_timeout" validate:"gt=0"`
	EmbedTimeout    time.Duration `yaml:"embed_timeout" validate:"gt=0"`
	SearchTimeout   time.Duration `yaml:"search_timeout" validate:"gt=0"`
	RerankTimeout   time.Duration `yaml:"rerank_timeout" validate:"gt=0"`
	GenerateTimeout time.Duration `yaml:"generate_timeout" validate:"gt=0"`

	// Embeddings
	Embedder           string `yaml:"embedder" validate:"oneof=openai hash"`
	EmbedBaseURL       string `yaml:"embed_base_url"`
	EmbedAPIKey        string `yaml:"embed_api_key"`
	EmbedModel         string `yaml:"embed_model"`
	EmbedDimensions    int    `yaml:"embed_dimensions" validate:"gte=0"`
	EmbedBatchSize     int    `yaml:"embed_batch_size" validate:"gt=0"`
	EmbedBatchTokens   int    `yaml:"embed_batch_tokens" validate:"gt=0"`
	MaxConcurrentEmbed int    `yaml:"max_concurrent_embed" validate:"gt=0"`

	// Vector index
	Index            string `yaml:"index" validate:"oneof=qdrant memory"`
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`

	// Chunk store
	Store      string `yaml:"store" validate:"oneof=sqlite memory"`
	SQLitePath string `yaml:"sqlite_path"`

	// Generator
	LLM                  string  `yaml:"llm" validate:"oneof=openai offline"`
	LLMBaseURL           string  `yaml:"llm_base_url"`
	LLMAPIKey            string  `yaml:"llm_api_key"`
	LLMModel             string  `yaml:"llm_model"`
	ExpandModel          string  `yaml:"expand_model"`
	LLMRequestsPerSecond float64 `yaml:"llm_requests_per_second" validate:"gte=0"`

	// Cross-encoder
	Reranker                string  `yaml:"reranker" validate:"oneof=http overlap"`
	RerankURL               string  `yaml:"rerank_url"`
	RerankAPIKey            string  `yaml:"rerank_api_key"`
	RerankModel             string  `yaml:"rerank_model"`
	RerankBatchSize         int     `yaml:"rerank_batch_size" validate:"gt=0"`
	RerankRequestsPerSecond float64 `yaml:"rerank_requests_per_second" validate:"gte=0"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count" validate:"gt=0"`
	MaxQueueSize int `yaml:"max_queue_size" validate:"gt=0"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes" validate:"gt=0"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl" validate:"gt=0"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:     "8090",
		LogLevel: "info",

		MinChunkChars:   200,
		MaxChunkChars:   1200,
		SubjectKeywords: []string{"SUBJECT"},

		VariantCount:      3,
		SearchTopK:        25,
		RerankTopM:        12,
		SearchConcurrency: 4,
		ExpansionCacheTTL: 10 * time.Minute,

		ExpandTimeout:   15 * time.Second,
		EmbedTimeout:    10 * time.Second,
		SearchTimeout:   10 * time.Second,
		RerankTimeout:   20 * time.Second,
		GenerateTimeout: 60 * time.Second,

		Embedder:           "openai",
		EmbedModel:         "text-embedding-3-small",
		EmbedBatchSize:     64,
		EmbedBatchTokens:   8000,
		MaxConcurrentEmbed: 4,

		Index:            "qdrant",
		QdrantURL:        "http://localhost:6333",
		QdrantCollection: "rag_chunks",

		Store:      "sqlite",
		SQLitePath: "data/chunks.db",

		LLM:        "openai",
		LLMBaseURL: "https://api.groq.com/openai/v1",
		LLMModel:   "llama-3.3-70b-versatile",

		Reranker:        "http",
		RerankURL:       "http://localhost:8081",
		RerankModel:     "BAAI/bge-reranker-base",
		RerankBatchSize: 64,

		WorkerCount:  4,
		MaxQueueSize: 100,

		MaxUploadBytes: 52428800, // 50MB

		JobTTL: 1 * time.Hour,

		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// RAG_CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	return LoadFile(os.Getenv("RAG_CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("RAG_API_KEY", c.APIKey)
	c.LogLevel = strings.ToLower(envOr("LOG_LEVEL", c.LogLevel))
	c.LogFile = envOr("LOG_FILE", c.LogFile)

	c.MinChunkChars = envInt("MIN_CHUNK_CHARS", c.MinChunkChars)
	c.MaxChunkChars = envInt("MAX_CHUNK_CHARS", c.MaxChunkChars)
	c.SubjectKeywords = envList("SUBJECT_KEYWORDS", c.SubjectKeywords)
	c.EmphaticHeaders = envBool("EMPHATIC_HEADERS", c.EmphaticHeaders)

	c.VariantCount = envInt("VARIANT_COUNT", c.VariantCount)
	c.SearchTopK = envInt("SEARCH_TOP_K", c.SearchTopK)
	c.RerankTopM = envInt("RERANK_TOP_M", c.RerankTopM)
	c.SearchConcurrency = envInt("SEARCH_CONCURRENCY", c.SearchConcurrency)
	c.ExpansionCacheTTL = envDuration("EXPANSION_CACHE_TTL", c.ExpansionCacheTTL)

	c.ExpandTimeout = envDuration("EXPAND_TIMEOUT", c.ExpandTimeout)
	c.EmbedTimeout = envDuration("EMBED_TIMEOUT", c.EmbedTimeout)
	c.SearchTimeout = envDuration("SEARCH_TIMEOUT", c.SearchTimeout)
	c.RerankTimeout = envDuration("RERANK_TIMEOUT", c.RerankTimeout)
	c.GenerateTimeout = envDuration("GENERATE_TIMEOUT", c.GenerateTimeout)

	c.Embedder = envOr("EMBEDDER", c.Embedder)
	c.EmbedBaseURL = envOr("EMBED_BASE_URL", c.EmbedBaseURL)
	c.EmbedAPIKey = envOr("EMBED_API_KEY", envOr("OPENAI_API_KEY", c.EmbedAPIKey))
	c.EmbedModel = envOr("EMBED_MODEL", c.EmbedModel)
	c.EmbedDimensions = envInt("EMBED_DIMENSIONS", c.EmbedDimensions)
	c.EmbedBatchSize = envInt("EMBED_BATCH_SIZE", c.EmbedBatchSize)
	c.EmbedBatchTokens = envInt("EMBED_BATCH_TOKENS", c.EmbedBatchTokens)
	c.MaxConcurrentEmbed = envInt("MAX_CONCURRENT_EMBED", c.MaxConcurrentEmbed)

	c.Index = envOr("INDEX", c.Index)
	c.QdrantURL = envOr("QDRANT_URL", c.QdrantURL)
	c.QdrantAPIKey = envOr("QDRANT_API_KEY", c.QdrantAPIKey)
	c.QdrantCollection = envOr("QDRANT_COLLECTION", c.QdrantCollection)

	c.Store = envOr("STORE", c.Store)
	c.SQLitePath = envOr("SQLITE_PATH", c.SQLitePath)

	c.LLM = envOr("LLM", c.LLM)
	c.LLMBaseURL = envOr("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMAPIKey = envOr("LLM_API_KEY", envOr("GROQ_API_KEY", c.LLMAPIKey))
	c.LLMModel = envOr("LLM_MODEL", c.LLMModel)
	c.ExpandModel = envOr("EXPAND_MODEL", c.ExpandModel)
	c.LLMRequestsPerSecond = envFloat("LLM_REQUESTS_PER_SECOND", c.LLMRequestsPerSecond)

	c.Reranker = envOr("RERANKER", c.Reranker)
	c.RerankURL = envOr("RERANK_URL", c.RerankURL)
	c.RerankAPIKey = envOr("RERANK_API_KEY", c.RerankAPIKey)
	c.RerankModel = envOr("RERANK_MODEL", c.RerankModel)
	c.RerankBatchSize = envInt("RERANK_BATCH_SIZE", c.RerankBatchSize)
	c.RerankRequestsPerSecond = envFloat("RERANK_REQUESTS_PER_SECOND", c.RerankRequestsPerSecond)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)
	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)
}

// clamp replaces non-positive sizes with defaults.
func (c *Config) clamp() {
	d := Defaults()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.MinChunkChars <= 0 {
		c.MinChunkChars = d.MinChunkChars
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = d.MaxChunkChars
	}
	if c.VariantCount <= 0 {
		c.VariantCount = d.VariantCount
	}
	if c.SearchTopK <= 0 {
		c.SearchTopK = d.SearchTopK
	}
	if c.RerankTopM <= 0 {
		c.RerankTopM = d.RerankTopM
	}
	if c.SearchConcurrency <= 0 {
		c.SearchConcurrency = d.SearchConcurrency
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = d.EmbedBatchSize
	}
	if c.EmbedBatchTokens <= 0 {
		c.EmbedBatchTokens = d.EmbedBatchTokens
	}
	if c.MaxConcurrentEmbed <= 0 {
		c.MaxConcurrentEmbed = d.MaxConcurrentEmbed
	}
	if c.RerankBatchSize <= 0 {
		c.RerankBatchSize = d.RerankBatchSize
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if len(c.SubjectKeywords) == 0 {
		c.SubjectKeywords = d.SubjectKeywords
	}
}

var validate = validator.New()

// Validate checks field constraints and the credentials each selected backend needs.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Embedder == "openai" && c.EmbedAPIKey == "" && c.EmbedBaseURL == "" {
		return fmt.Errorf("EMBED_API_KEY (or OPENAI_API_KEY) is required for the openai embedder")
	}
	if c.Index == "qdrant" && c.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL is required for the qdrant index")
	}
	if c.Store == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
	}
	if c.LLM == "openai" && c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY (or GROQ_API_KEY) is required for the openai generator")
	}
	if c.Reranker == "http" && c.RerankURL == "" {
		return fmt.Errorf("RERANK_URL is required for the http reranker")
	}
	return nil
}

// ValidateServer additionally requires the API key that guards the HTTP API.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("RAG_API_KEY is required")
	}
	return nil
}

// Offline switches every external backend to its in-process equivalent.
func (c *Config) Offline() {
	c.Embedder = "hash"
	c.Index = "memory"
	c.LLM = "offline"
	c.Reranker = "overlap"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
