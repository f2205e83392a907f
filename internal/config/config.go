// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Evaluation configuration
	Eval EvalConfig `yaml:"eval"`

	// Embedding backend configuration
	Embedder EmbedderConfig `yaml:"embedder"`

	// Qdrant configuration (pre-computed embeddings)
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Run history configuration
	History HistoryConfig `yaml:"history"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Metrics export configuration
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configuration
	Tracing TracingConfig `yaml:"tracing"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// EvalConfig holds retrieval evaluator settings.
type EvalConfig struct {
	Name               string `envconfig:"IREVAL_NAME" yaml:"name"`
	DatasetDir         string `envconfig:"IREVAL_DATASET_DIR" yaml:"dataset_dir"`
	Split              string `envconfig:"IREVAL_SPLIT" yaml:"split"`
	OutputDir          string `envconfig:"IREVAL_OUTPUT_DIR" yaml:"output_dir"`
	QueryChunkSize     int    `envconfig:"IREVAL_QUERY_CHUNK_SIZE" yaml:"query_chunk_size"`
	CorpusChunkSize    int    `envconfig:"IREVAL_CORPUS_CHUNK_SIZE" yaml:"corpus_chunk_size"`
	AccuracyAtK        []int  `envconfig:"IREVAL_ACCURACY_AT_K" yaml:"accuracy_at_k"`
	PrecisionRecallAtK []int  `envconfig:"IREVAL_PRECISION_RECALL_AT_K" yaml:"precision_recall_at_k"`
	MRRAtK             []int  `envconfig:"IREVAL_MRR_AT_K" yaml:"mrr_at_k"`
	NDCGAtK            []int  `envconfig:"IREVAL_NDCG_AT_K" yaml:"ndcg_at_k"`
	MAPAtK             []int  `envconfig:"IREVAL_MAP_AT_K" yaml:"map_at_k"` // empty = no MAP columns
	BatchSize          int    `envconfig:"IREVAL_BATCH_SIZE" yaml:"batch_size"`
}

// EmbedderConfig holds embedding backend settings.
type EmbedderConfig struct {
	Provider    string  `envconfig:"IREVAL_EMBED_PROVIDER" yaml:"provider"`
	Model       string  `envconfig:"IREVAL_EMBED_MODEL" yaml:"model"`
	BaseURL     string  `envconfig:"IREVAL_EMBED_URL" yaml:"base_url"`
	APIKey      string  `envconfig:"IREVAL_EMBED_API_KEY" yaml:"api_key"`
	Dimensions  int     `envconfig:"IREVAL_EMBED_DIMENSIONS" yaml:"dimensions"`
	Concurrency int     `envconfig:"IREVAL_EMBED_CONCURRENCY" yaml:"concurrency"`
	RateLimit   float64 `envconfig:"IREVAL_EMBED_RATE_LIMIT" yaml:"rate_limit"` // requests/second, 0 = unlimited
	Normalize   bool    `envconfig:"IREVAL_EMBED_NORMALIZE" yaml:"normalize"`
	CacheSize   int     `envconfig:"IREVAL_EMBED_CACHE_SIZE" yaml:"cache_size"` // 0 = disabled
	TimeoutSecs int     `envconfig:"IREVAL_EMBED_TIMEOUT" yaml:"timeout_secs"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the embedding backend.
type BreakerConfig struct {
	Enabled          bool    `envconfig:"IREVAL_BREAKER_ENABLED" yaml:"enabled"`
	MaxRequests      uint32  `envconfig:"IREVAL_BREAKER_MAX_REQUESTS" yaml:"max_requests"`
	IntervalSecs     int     `envconfig:"IREVAL_BREAKER_INTERVAL" yaml:"interval_secs"`
	TimeoutSecs      int     `envconfig:"IREVAL_BREAKER_TIMEOUT" yaml:"timeout_secs"`
	ReadyToTripRatio float64 `envconfig:"IREVAL_BREAKER_TRIP_RATIO" yaml:"ready_to_trip_ratio"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Enabled    bool   `envconfig:"IREVAL_QDRANT_ENABLED" yaml:"enabled"`
	Host       string `envconfig:"QDRANT_HOST" yaml:"host"`
	Port       int    `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey     string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	UseTLS     bool   `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
	Collection string `envconfig:"IREVAL_QDRANT_COLLECTION" yaml:"collection"`
	Fallback   bool   `envconfig:"IREVAL_QDRANT_FALLBACK" yaml:"fallback"` // embed misses live and write back
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled  bool   `envconfig:"IREVAL_HISTORY_ENABLED" yaml:"enabled"`
	RedisURL string `envconfig:"IREVAL_REDIS_URL" yaml:"redis_url"`
	TTLHours int    `envconfig:"IREVAL_HISTORY_TTL_HOURS" yaml:"ttl_hours"` // 0 = keep forever
}

// BusConfig holds event bus settings.
// The memory bus only reaches subscribers inside the same process, so it is for
// programs that embed the evaluator; the CLI accepts none or kafka.
type BusConfig struct {
	Type         string `envconfig:"IREVAL_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"IREVAL_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"IREVAL_KAFKA_GROUP" yaml:"kafka_group"`
	Topic        string `envconfig:"IREVAL_BUS_TOPIC" yaml:"topic"`
}

// MetricsConfig holds Prometheus export settings.
type MetricsConfig struct {
	Enabled  bool   `envconfig:"IREVAL_METRICS_ENABLED" yaml:"enabled"`
	Textfile string `envconfig:"IREVAL_METRICS_TEXTFILE" yaml:"textfile"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Endpoint     string  `envconfig:"IREVAL_OTLP_ENDPOINT" yaml:"endpoint"` // empty = disabled
	Insecure     bool    `envconfig:"IREVAL_OTLP_INSECURE" yaml:"insecure"`
	SamplingRate float64 `envconfig:"IREVAL_TRACE_SAMPLING" yaml:"sampling_rate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"IREVAL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"IREVAL_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Eval = EvalConfig{
		Split:              "test",
		QueryChunkSize:     1000,
		CorpusChunkSize:    500000,
		AccuracyAtK:        []int{1, 3, 5, 10},
		PrecisionRecallAtK: []int{1, 3, 5, 10},
		MRRAtK:             []int{10},
		NDCGAtK:            []int{10},
		BatchSize:          16,
	}

	cfg.Embedder = EmbedderConfig{
		Provider:    "ollama",
		Model:       "nomic-embed-text",
		BaseURL:     "http://localhost:11434",
		Concurrency: 4,
		TimeoutSecs: 60,
		Breaker: BreakerConfig{
			MaxRequests:      1,
			IntervalSecs:     60,
			TimeoutSecs:      30,
			ReadyToTripRatio: 0.6,
		},
	}

	cfg.Qdrant = QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "embeddings",
	}

	cfg.History = HistoryConfig{
		RedisURL: "redis://localhost:6379",
		TTLHours: 0,
	}

	cfg.Bus = BusConfig{
		Type:       "none",
		KafkaGroup: "rice-eval",
		Topic:      "evaluation.completed",
	}

	cfg.Tracing = TracingConfig{
		Insecure:     true,
		SamplingRate: 1.0,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Eval validation
	if c.Eval.QueryChunkSize < 1 {
		errs = append(errs, "query_chunk_size must be positive")
	}

	if c.Eval.CorpusChunkSize < 1 {
		errs = append(errs, "corpus_chunk_size must be positive")
	}

	if c.Eval.BatchSize < 1 {
		errs = append(errs, "batch_size must be positive")
	}

	kLists := []struct {
		name string
		ks   []int
	}{
		{"accuracy_at_k", c.Eval.AccuracyAtK},
		{"precision_recall_at_k", c.Eval.PrecisionRecallAtK},
		{"mrr_at_k", c.Eval.MRRAtK},
		{"ndcg_at_k", c.Eval.NDCGAtK},
		{"map_at_k", c.Eval.MAPAtK},
	}
	for _, l := range kLists {
		for _, k := range l.ks {
			if k < 1 {
				errs = append(errs, fmt.Sprintf("%s values must be positive (got %d)", l.name, k))
				break
			}
		}
	}

	// Embedder validation
	validProviders := map[string]bool{"ollama": true, "openai": true}
	if !validProviders[c.Embedder.Provider] {
		errs = append(errs, fmt.Sprintf("invalid embedder provider: %s (must be ollama or openai)", c.Embedder.Provider))
	}

	if c.Embedder.Concurrency < 1 {
		errs = append(errs, "embedder concurrency must be positive")
	}

	if c.Embedder.RateLimit < 0 {
		errs = append(errs, "embedder rate_limit must not be negative")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, "tracing sampling_rate must be in [0, 1]")
	}

	if c.Embedder.CacheSize < 0 {
		errs = append(errs, "embedder cache_size must not be negative")
	}

	if c.Embedder.Breaker.Enabled && (c.Embedder.Breaker.ReadyToTripRatio <= 0 || c.Embedder.Breaker.ReadyToTripRatio > 1) {
		errs = append(errs, "breaker ready_to_trip_ratio must be in (0, 1]")
	}

	// Qdrant validation
	if c.Qdrant.Enabled {
		if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
			errs = append(errs, "qdrant port must be between 1 and 65535")
		}
		if c.Qdrant.Collection == "" {
			errs = append(errs, "qdrant collection is required")
		}
	}

	// History validation
	if c.History.Enabled && c.History.RedisURL == "" {
		errs = append(errs, "history redis_url is required when history is enabled")
	}

	// Bus validation
	validBusTypes := map[string]bool{"none": true, "memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be none, memory, or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers is required for kafka bus")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ValidateForCLI rejects settings that only make sense when the evaluator is embedded
// in a longer-running program.
func (c *Config) ValidateForCLI() error {
	if c.Bus.Type == "memory" {
		return fmt.Errorf("bus type memory has no subscribers outside the process; use kafka or none")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
