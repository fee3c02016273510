package model

import "time"

// Config is the full application configuration, loadable from
// ~/.lifeflow/config.yaml and overridable via LIFEFLOW_* env vars and flags.
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Confidence  ConfidenceConfig  `yaml:"confidence"`
	Clarify     ClarifyConfig     `yaml:"clarify"`
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Cache       CacheConfig       `yaml:"cache"`
	HTTP        HTTPConfig        `yaml:"http"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// LLMConfig configures the chat-completion provider.
type LLMConfig struct {
	Provider        string `yaml:"provider"` // openai, anthropic, ollama
	Model           string `yaml:"model"`
	APIKey          string `yaml:"api_key,omitempty"`
	BaseURL         string `yaml:"base_url,omitempty"`
	ClassifyTimeout int    `yaml:"classify_timeout"` // seconds
	GenerateTimeout int    `yaml:"generate_timeout"` // seconds
	MaxTokens       int    `yaml:"max_tokens"`

	HTTPProxy  string `yaml:"http_proxy,omitempty"`
	HTTPSProxy string `yaml:"https_proxy,omitempty"`
	NoProxy    string `yaml:"no_proxy,omitempty"`
}

// EmbeddingConfig configures the embedding provider. The provider may differ
// from the chat provider (anthropic has no embedding endpoint).
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai, ollama
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Timeout   int    `yaml:"timeout"` // seconds
	Dimension int    `yaml:"dimension"`
}

// RetrievalConfig tunes the vector search stage.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	IndexPath     string  `yaml:"index_path"`
}

// ConfidenceConfig holds the triangulation weights. The weights must sum
// to 1; the retrieval gate is not configurable.
type ConfidenceConfig struct {
	LLMWeight        float64 `yaml:"llm_weight"`
	RetrievalWeight  float64 `yaml:"retrieval_weight"`
	HistoricalWeight float64 `yaml:"historical_weight"`
}

// ClarifyConfig tunes the clarification policy.
type ClarifyConfig struct {
	SkipThreshold float64 `yaml:"skip_threshold"` // confidence above which no questions are asked
	MaxQuestions  int     `yaml:"max_questions"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig configures the situation and feedback store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or memory
	Path   string `yaml:"path"`
}

// CacheConfig configures the embedding/document cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
}

// HTTPConfig configures outbound fetches during ingestion.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	RatePerHost  float64       `yaml:"rate_per_host"` // requests per second
}

// IngestConfig tunes document chunking.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

// ConcurrencyConfig limits parallel work.
type ConcurrencyConfig struct {
	EmbedWorkers int `yaml:"embed_workers"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "openai",
			ClassifyTimeout: 30,
			GenerateTimeout: 60,
			MaxTokens:       1500,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Timeout:   30,
			Dimension: 1536,
		},
		Retrieval: RetrievalConfig{
			TopK:          6,
			MinSimilarity: 0.2,
			IndexPath:     "data/knowledge-index",
		},
		Confidence: ConfidenceConfig{
			LLMWeight:        0.4,
			RetrievalWeight:  0.35,
			HistoricalWeight: 0.25,
		},
		Clarify: ClarifyConfig{
			SkipThreshold: 0.85,
			MaxQuestions:  4,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "data/lifeflow.db",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "data/cache",
			TTL:     24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "LifeFlow/0.1 (+https://github.com/lifeflow/guidance)",
			MaxBodyBytes: 2_000_000,
			RatePerHost:  2,
		},
		Ingest: IngestConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			MinChunkSize: 100,
		},
		Concurrency: ConcurrencyConfig{
			EmbedWorkers: 4,
		},
	}
}
