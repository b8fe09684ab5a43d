package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// ProviderConfig holds the settings for one LLM provider.
type ProviderConfig struct {
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// LocalModelConfig holds paths for the local ONNX NER provider.
type LocalModelConfig struct {
	ModelPath     string `json:"model_path"`
	TokenizerPath string `json:"tokenizer_path"`
	LabelMapPath  string `json:"label_map_path"`
	Priority      int    `json:"priority"`
	Enabled       bool   `json:"enabled"`
}

// LayersConfig enables or disables individual detection layers.
type LayersConfig struct {
	Pattern     bool `json:"pattern"`
	Specialized bool `json:"specialized"`
	Vision      bool `json:"vision"`
	LLM         bool `json:"llm"`
}

// TokenStoreConfig selects the obscuring engine's token store backend.
// "memory" is the default; "sqlite" and "postgres" persist mappings.
type TokenStoreConfig struct {
	Backend    string `json:"backend"`
	SQLitePath string `json:"sqlite_path"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Database   string `json:"database"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	SSLMode    string `json:"ssl_mode"`
}

// ObscureConfig holds obscuring engine settings. Encryption is only
// available when EncryptionKey is non-empty.
type ObscureConfig struct {
	EncryptionKey string           `json:"encryption_key"`
	TokenPrefix   string           `json:"token_prefix"`
	TokenStore    TokenStoreConfig `json:"token_store"`
}

// Config holds all configuration for the detection service.
type Config struct {
	ServerPort          string           `json:"server_port"`
	SentryDSN           string           `json:"sentry_dsn"`
	Layers              LayersConfig     `json:"layers"`
	ConfidenceThreshold float64          `json:"confidence_threshold"`
	MaxDetections       int              `json:"max_detections"`
	LayerTimeout        time.Duration    `json:"layer_timeout"`
	LLMTimeout          time.Duration    `json:"llm_timeout"`
	MaxRetries          int              `json:"max_retries"`
	ProviderRPS         float64          `json:"provider_rps"`
	EnsembleEnabled     bool             `json:"ensemble_enabled"`
	EnsembleProviders   bool             `json:"ensemble_providers"`
	CacheTTL            time.Duration    `json:"cache_ttl"`
	OpenAIProvider      ProviderConfig   `json:"openai_provider"`
	AnthropicProvider   ProviderConfig   `json:"anthropic_provider"`
	LocalProvider       LocalModelConfig `json:"local_provider"`
	Obscure             ObscureConfig    `json:"obscure"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerPort: ":8090",
		Layers: LayersConfig{
			Pattern:     true,
			Specialized: true,
			Vision:      true,
			LLM:         false,
		},
		ConfidenceThreshold: 0.5,
		MaxDetections:       50,
		LayerTimeout:        10 * time.Second,
		LLMTimeout:          30 * time.Second,
		MaxRetries:          2,
		ProviderRPS:         2,
		EnsembleEnabled:     true,
		EnsembleProviders:   false,
		CacheTTL:            5 * time.Minute,
		OpenAIProvider: ProviderConfig{
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Priority: 1,
		},
		AnthropicProvider: ProviderConfig{
			BaseURL:  "https://api.anthropic.com/v1",
			Model:    "claude-3-5-haiku-latest",
			Priority: 2,
		},
		LocalProvider: LocalModelConfig{
			ModelPath:     "model/quantized/model_quantized.onnx",
			TokenizerPath: "model/quantized/tokenizer.json",
			LabelMapPath:  "model/quantized/label_mappings.json",
			Priority:      3,
		},
		Obscure: ObscureConfig{
			TokenPrefix: "PII",
			TokenStore: TokenStoreConfig{
				Backend:    "memory",
				SQLitePath: "docshield.db",
				Host:       "localhost",
				Port:       5432,
				Database:   "docshield",
				Username:   "postgres",
				SSLMode:    "disable",
			},
		},
	}
}

// Validate fails fast on configuration that can never work.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %.2f outside [0,1]", c.ConfidenceThreshold)
	}
	if c.MaxDetections <= 0 {
		return fmt.Errorf("max detections must be positive, got %d", c.MaxDetections)
	}
	if c.LayerTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("layer timeouts must be positive")
	}
	switch c.Obscure.TokenStore.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown token store backend %q", c.Obscure.TokenStore.Backend)
	}
	return nil
}

// LoadFromFile overrides cfg with values from a JSON config file.
func LoadFromFile(path string, cfg *Config) {
	// #nosec G304 - Config file path is controlled by application, not user input
	file, err := os.Open(path)
	if err != nil {
		log.Printf("[Config] Failed to open config file: %v", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("[Config] Failed to close config file: %v", err)
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		log.Printf("[Config] Failed to decode config file: %v", err)
	}
}

// LoadFromEnv overrides cfg with environment variables.
func LoadFromEnv(cfg *Config) {
	loadServerConfig(cfg)
	loadLayerConfig(cfg)
	loadProviderConfig(cfg)
	loadObscureConfig(cfg)
}

func loadServerConfig(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.ServerPort = port
	}
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cfg.SentryDSN = dsn
	}
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.CacheTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MAX_DETECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDetections = n
		}
	}
	if v := os.Getenv("CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ConfidenceThreshold = f
		}
	}
}

func loadLayerConfig(cfg *Config) {
	if v := os.Getenv("LAYER_PATTERN"); v != "" {
		cfg.Layers.Pattern = v == "true"
	}
	if v := os.Getenv("LAYER_SPECIALIZED"); v != "" {
		cfg.Layers.Specialized = v == "true"
	}
	if v := os.Getenv("LAYER_VISION"); v != "" {
		cfg.Layers.Vision = v == "true"
	}
	if v := os.Getenv("LAYER_LLM"); v != "" {
		cfg.Layers.LLM = v == "true"
	}
	if v := os.Getenv("ENSEMBLE_ENABLED"); v != "" {
		cfg.EnsembleEnabled = v == "true"
	}
	if v := os.Getenv("ENSEMBLE_PROVIDERS"); v != "" {
		cfg.EnsembleProviders = v == "true"
	}
}

func loadProviderConfig(cfg *Config) {
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		cfg.OpenAIProvider.BaseURL = url
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAIProvider.APIKey = apiKey
		cfg.OpenAIProvider.Enabled = true
		log.Printf("[Config] Loaded OPENAI_API_KEY from environment (length: %d)", len(apiKey))
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAIProvider.Model = model
	}

	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" {
		cfg.AnthropicProvider.BaseURL = url
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.AnthropicProvider.APIKey = apiKey
		cfg.AnthropicProvider.Enabled = true
		log.Printf("[Config] Loaded ANTHROPIC_API_KEY from environment (length: %d)", len(apiKey))
	}
	if model := os.Getenv("ANTHROPIC_MODEL"); model != "" {
		cfg.AnthropicProvider.Model = model
	}

	if path := os.Getenv("LOCAL_MODEL_PATH"); path != "" {
		cfg.LocalProvider.ModelPath = path
		cfg.LocalProvider.Enabled = true
	}
	if path := os.Getenv("LOCAL_TOKENIZER_PATH"); path != "" {
		cfg.LocalProvider.TokenizerPath = path
	}
	if path := os.Getenv("LOCAL_LABEL_MAP_PATH"); path != "" {
		cfg.LocalProvider.LabelMapPath = path
	}
}

func loadObscureConfig(cfg *Config) {
	if key := os.Getenv("OBSCURE_ENCRYPTION_KEY"); key != "" {
		cfg.Obscure.EncryptionKey = key
	}
	if prefix := os.Getenv("OBSCURE_TOKEN_PREFIX"); prefix != "" {
		cfg.Obscure.TokenPrefix = prefix
	}
	if backend := os.Getenv("TOKEN_STORE_BACKEND"); backend != "" {
		cfg.Obscure.TokenStore.Backend = backend
	}
	if path := os.Getenv("TOKEN_STORE_SQLITE_PATH"); path != "" {
		cfg.Obscure.TokenStore.SQLitePath = path
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Obscure.TokenStore.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Obscure.TokenStore.Port = p
		}
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Obscure.TokenStore.Database = name
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Obscure.TokenStore.Username = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Obscure.TokenStore.Password = password
	}
	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		cfg.Obscure.TokenStore.SSLMode = sslMode
	}
}
