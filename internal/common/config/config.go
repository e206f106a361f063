// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Model    ModelConfig             `mapstructure:"model"`
	Search   SearchConfig            `mapstructure:"search"`
	Fetch    FetchConfig             `mapstructure:"fetch"`
	Pipeline PipelineConfig          `mapstructure:"pipeline"`
	Cache    CacheConfig             `mapstructure:"cache"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Server   ServerConfig            `mapstructure:"server"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Model Gateway ---

// Supported answer/summary model providers.
const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderGroq     = "groq"
	ProviderDeepSeek = "deepseek"
	ProviderService  = "genai-service"
)

// ModelConfig selects the model provider used for answers and, separately,
// for page summarization.
type ModelConfig struct {
	Provider        string                    `mapstructure:"provider"`
	SummaryProvider string                    `mapstructure:"summary_provider"`
	Providers       map[string]ProviderConfig `mapstructure:"providers"`
	Timeout         int                       `mapstructure:"timeout"` // milliseconds
	MaxRetries      int                       `mapstructure:"max_retries"`
	Temperatures    TemperatureConfig         `mapstructure:"temperatures"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type TemperatureConfig struct {
	Direct    float32 `mapstructure:"direct"`
	Synthesis float32 `mapstructure:"synthesis"`
	Summary   float32 `mapstructure:"summary"`
	Repair    float32 `mapstructure:"repair"`
}

// Settings returns the settings for the named provider, or an empty ProviderConfig.
func (m ModelConfig) Settings(name string) ProviderConfig {
	if m.Providers == nil {
		return ProviderConfig{}
	}
	return m.Providers[name]
}

// --- Evidence Source ---

const (
	SearchTavily        = "tavily"
	SearchGoogle        = "google"
	SearchElasticsearch = "elasticsearch"
)

type SearchConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	EngineID   string `mapstructure:"engine_id"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxResults int    `mapstructure:"max_results"`
}

type FetchConfig struct {
	Timeout      int    `mapstructure:"timeout"` // milliseconds
	MaxBytes     int64  `mapstructure:"max_bytes"`
	MaxChars     int    `mapstructure:"max_chars"`
	MaxRedirects int    `mapstructure:"max_redirects"`
	UserAgent    string `mapstructure:"user_agent"`
}

// PipelineConfig holds the answer pipeline constants.
type PipelineConfig struct {
	PageTimeout        int `mapstructure:"page_timeout"` // milliseconds
	MinSummarizeLength int `mapstructure:"min_summarize_length"`
}

const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	TTL        int    `mapstructure:"ttl"` // milliseconds
	MaxEntries int    `mapstructure:"max_entries"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"` // stdout or a file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
