package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Every tunable that the
// pipeline reads lives here as a named value with a default; nothing is
// hard-coded at call sites.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Bucket     BucketConfig     `yaml:"bucket" mapstructure:"bucket"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Codes      CodesConfig      `yaml:"codes" mapstructure:"codes"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds completion-service settings for Pass 1.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// EmbeddingConfig holds embedding-service settings for Pass 1.5.
type EmbeddingConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Model         string `yaml:"model" mapstructure:"model"`
	Dimensions    int    `yaml:"dimensions" mapstructure:"dimensions"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	// MinTextLen/MaxTextLen bound the sanitized embedding text.
	MinTextLen int `yaml:"min_text_len" mapstructure:"min_text_len"`
	MaxTextLen int `yaml:"max_text_len" mapstructure:"max_text_len"`
	// BatchConcurrency is the fixed-size concurrent group for batch
	// generation (entities in flight at once).
	BatchConcurrency  int     `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// BucketConfig holds object-storage settings for OCR artifacts.
type BucketConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Name    string `yaml:"name" mapstructure:"name"`
}

// ProcessingConfig centralizes Pass 1 validation thresholds.
type ProcessingConfig struct {
	// OCRConfidenceFloor rejects documents whose OCR confidence is below
	// this value before any completion call is made.
	OCRConfidenceFloor float64 `yaml:"ocr_confidence_floor" mapstructure:"ocr_confidence_floor"`
	// MaxTextLen caps free-text audit fields (ellipsis-truncated).
	MaxTextLen int `yaml:"max_text_len" mapstructure:"max_text_len"`
	// ReviewConfidenceThreshold and ReviewAgreementThreshold flag entities
	// for manual review independent of the model's own flag.
	ReviewConfidenceThreshold float64 `yaml:"review_confidence_threshold" mapstructure:"review_confidence_threshold"`
	ReviewAgreementThreshold  float64 `yaml:"review_agreement_threshold" mapstructure:"review_agreement_threshold"`
	// ContractRetries bounds re-asks after a malformed completion response.
	ContractRetries int `yaml:"contract_retries" mapstructure:"contract_retries"`
	// BatchConcurrency bounds concurrent documents in batch processing.
	BatchConcurrency int `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// CodesConfig configures Pass 1.5 code-candidate retrieval.
type CodesConfig struct {
	MinSimilarity float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	Region        string  `yaml:"region" mapstructure:"region"` // ISO country code for the regional catalog
}

// OCRConfig configures the OCR extraction provider.
type OCRConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "mistral" or "local"
	Key      string `yaml:"key" mapstructure:"key"`
	Model    string `yaml:"model" mapstructure:"model"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	// PdfToTextPath locates the pdftotext binary for the local provider.
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	// PageConfidence is assigned to extracted pages; neither provider
	// reports per-page confidence itself.
	PageConfidence float64 `yaml:"page_confidence" mapstructure:"page_confidence"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	RetryQueueThreshold  int     `yaml:"retry_queue_threshold" mapstructure:"retry_queue_threshold"`
	ReviewQueueThreshold int     `yaml:"review_queue_threshold" mapstructure:"review_queue_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// ServerConfig configures the status/webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GUARDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.cache_ttl_hours", 24)
	v.SetDefault("embedding.min_text_len", 3)
	v.SetDefault("embedding.max_text_len", 500)
	v.SetDefault("embedding.batch_concurrency", 5)
	v.SetDefault("embedding.requests_per_second", 10)
	v.SetDefault("bucket.name", "medical-docs")
	v.SetDefault("processing.ocr_confidence_floor", 0.60)
	v.SetDefault("processing.max_text_len", 120)
	v.SetDefault("processing.review_confidence_threshold", 0.70)
	v.SetDefault("processing.review_agreement_threshold", 0.80)
	v.SetDefault("processing.contract_retries", 2)
	v.SetDefault("processing.batch_concurrency", 3)
	v.SetDefault("codes.min_similarity", 0.50)
	v.SetDefault("codes.max_candidates", 10)
	v.SetDefault("codes.region", "AUS")
	v.SetDefault("ocr.provider", "mistral")
	v.SetDefault("ocr.model", "mistral-ocr-latest")
	v.SetDefault("ocr.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("ocr.page_confidence", 0.90)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.retry_queue_threshold", 50)
	v.SetDefault("monitoring.review_queue_threshold", 200)
	v.SetDefault("monitoring.check_interval_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
