// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default endpoints and models per provider.
var providerDefaults = map[string]ProviderConfig{
	ProviderGemini:   {Model: "gemini-2.0-flash"},
	ProviderOpenAI:   {Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"},
	ProviderGroq:     {Model: "llama-3.3-70b-versatile", BaseURL: "https://api.groq.com/openai/v1"},
	ProviderDeepSeek: {Model: "deepseek-chat", BaseURL: "https://api.deepseek.com/v1"},
	ProviderService:  {BaseURL: "http://localhost:8000"},
}

var providerEnvPrefix = map[string]string{
	ProviderGemini:   "GEMINI",
	ProviderOpenAI:   "OPENAI",
	ProviderGroq:     "GROQ",
	ProviderDeepSeek: "DEEPSEEK",
	ProviderService:  "GENAI",
}

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("model.summary_provider", "RAG_MODEL_PROVIDER", "MODEL_SUMMARY_PROVIDER")
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders. An unset variable expands to
// the empty string so missing credentials are caught by validation.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills provider credentials from the conventional
// environment variables when the YAML leaves them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Model.Provider, "MODEL_PROVIDER")
	setIfEmpty(&cfg.Model.SummaryProvider, "RAG_MODEL_PROVIDER")
	setIfEmpty(&cfg.Search.Provider, "SEARCH_PROVIDER")

	if cfg.Model.Providers == nil {
		cfg.Model.Providers = make(map[string]ProviderConfig)
	}
	for name, prefix := range providerEnvPrefix {
		p := cfg.Model.Providers[name]
		setIfEmpty(&p.APIKey, prefix+"_API_KEY")
		setIfEmpty(&p.Model, prefix+"_MODEL")
		setIfEmpty(&p.BaseURL, prefix+"_BASE_URL")
		cfg.Model.Providers[name] = p
	}

	switch cfg.Search.Provider {
	case SearchGoogle:
		setIfEmpty(&cfg.Search.APIKey, "WEB_SEARCH_API_KEY")
		setIfEmpty(&cfg.Search.EngineID, "WEB_SEARCH_ENGINE_ID")
	default:
		setIfEmpty(&cfg.Search.APIKey, "TAVILY_API_KEY")
	}

	setIfEmpty(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "search-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL != "" {
		cfg.Database.Elasticsearch.Addresses = []string{cfg.Database.Elasticsearch.URL}
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "web-pages"
	}

	// Model gateway
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = ProviderGemini
	}
	if cfg.Model.SummaryProvider == "" {
		cfg.Model.SummaryProvider = cfg.Model.Provider
	}
	for name, def := range providerDefaults {
		p := cfg.Model.Providers[name]
		if p.Model == "" {
			p.Model = def.Model
		}
		if p.BaseURL == "" {
			p.BaseURL = def.BaseURL
		}
		cfg.Model.Providers[name] = p
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 60000
	}
	if cfg.Model.MaxRetries == 0 {
		cfg.Model.MaxRetries = 2
	}
	if cfg.Model.Temperatures.Direct == 0 {
		cfg.Model.Temperatures.Direct = 0.3
	}
	if cfg.Model.Temperatures.Synthesis == 0 {
		cfg.Model.Temperatures.Synthesis = 0.3
	}
	if cfg.Model.Temperatures.Summary == 0 {
		cfg.Model.Temperatures.Summary = 0.2
	}
	if cfg.Model.Temperatures.Repair == 0 {
		cfg.Model.Temperatures.Repair = 0.3
	}

	// Evidence source
	if cfg.Search.Provider == "" {
		cfg.Search.Provider = SearchTavily
	}
	if cfg.Search.BaseURL == "" {
		switch cfg.Search.Provider {
		case SearchTavily:
			cfg.Search.BaseURL = "https://api.tavily.com/search"
		case SearchGoogle:
			cfg.Search.BaseURL = "https://www.googleapis.com/customsearch/v1"
		}
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 10000
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 10
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 15000
	}
	if cfg.Fetch.MaxBytes == 0 {
		cfg.Fetch.MaxBytes = 2 << 20
	}
	if cfg.Fetch.MaxChars == 0 {
		cfg.Fetch.MaxChars = 12000
	}
	if cfg.Fetch.MaxRedirects == 0 {
		cfg.Fetch.MaxRedirects = 5
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "search-workers/1.0 (+page fetcher)"
	}

	// Pipeline
	if cfg.Pipeline.PageTimeout == 0 {
		cfg.Pipeline.PageTimeout = 20000
	}
	if cfg.Pipeline.MinSummarizeLength == 0 {
		cfg.Pipeline.MinSummarizeLength = 50
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheNone
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 600000
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 512
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "evidence:"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 50
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 14
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 60000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	for _, p := range []string{cfg.Model.Provider, cfg.Model.SummaryProvider} {
		if _, ok := providerDefaults[p]; !ok {
			return fmt.Errorf("model provider %q is not supported", p)
		}
	}

	switch cfg.Search.Provider {
	case SearchTavily:
	case SearchGoogle:
		if cfg.Search.EngineID == "" {
			return fmt.Errorf("search.engine_id is required for the google provider")
		}
	case SearchElasticsearch:
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch provider")
		}
	default:
		return fmt.Errorf("search provider %q is not supported", cfg.Search.Provider)
	}

	switch cfg.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache backend %q is not supported", cfg.Cache.Backend)
	}

	if cfg.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be positive")
	}

	return nil
}

// ValidateForWorkers checks the settings only the job worker process needs.
func ValidateForWorkers(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       60000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
