package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/hannes/docshield/config"
	"github.com/hannes/docshield/monitor"
	"github.com/hannes/docshield/obscure"
	"github.com/hannes/docshield/pii"
	"github.com/hannes/docshield/pii/llm"
	"github.com/hannes/docshield/pii/vision"
	"github.com/hannes/docshield/pipeline"
	"github.com/hannes/docshield/providers"
	"github.com/hannes/docshield/server"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file from current directory")
	} else {
		log.Printf("Note: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to JSON config file")
	flag.Parse()
	if *configPath != "" {
		config.LoadFromFile(*configPath, cfg)
	}
	config.LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	reporter, err := monitor.Init(cfg.SentryDSN)
	if err != nil {
		log.Printf("Failed to initialize error monitoring: %v", err)
		reporter = monitor.NopReporter{}
	}

	store, err := buildTokenStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize token store: %v", err)
	}
	obscurer := obscure.NewEngine(cfg.Obscure.EncryptionKey, cfg.Obscure.TokenPrefix, store)

	orch := pipeline.New(cfg, pipeline.Deps{
		Vision:   buildVisionEngine(),
		LLM:      buildLLMLayer(cfg),
		Reporter: reporter,
	})

	srv := server.NewServer(cfg, orch, obscurer)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func buildTokenStore(cfg *config.Config) (obscure.TokenStore, error) {
	ts := cfg.Obscure.TokenStore
	switch ts.Backend {
	case "sqlite":
		return obscure.NewSQLiteTokenStore(ts.SQLitePath)
	case "postgres":
		return obscure.NewPostgresTokenStore(obscure.PostgresConfig{
			Host:     ts.Host,
			Port:     ts.Port,
			Database: ts.Database,
			Username: ts.Username,
			Password: ts.Password,
			SSLMode:  ts.SSLMode,
		})
	default:
		return obscure.NewMemoryTokenStore(), nil
	}
}

func buildVisionEngine() pii.VisionEngine {
	detector := vision.NewDocumentRegionDetector("")
	if !detector.Available() {
		log.Println("Vision region detection unavailable in this build, layer disabled")
		return nil
	}
	return detector
}

func buildLLMLayer(cfg *config.Config) *llm.Layer {
	var list []providers.Provider

	if cfg.OpenAIProvider.Enabled {
		list = append(list, providers.NewOpenAIProvider(
			cfg.OpenAIProvider.BaseURL, cfg.OpenAIProvider.APIKey,
			cfg.OpenAIProvider.Model, cfg.OpenAIProvider.Priority, cfg.ProviderRPS))
	}
	if cfg.AnthropicProvider.Enabled {
		list = append(list, providers.NewAnthropicProvider(
			cfg.AnthropicProvider.BaseURL, cfg.AnthropicProvider.APIKey,
			cfg.AnthropicProvider.Model, cfg.AnthropicProvider.Priority, cfg.ProviderRPS))
	}
	if cfg.LocalProvider.Enabled {
		local, err := providers.NewLocalProvider(
			cfg.LocalProvider.ModelPath, cfg.LocalProvider.TokenizerPath,
			cfg.LocalProvider.LabelMapPath, cfg.LocalProvider.Priority)
		if err != nil {
			log.Printf("Failed to initialize local NER provider: %v", err)
		} else {
			list = append(list, local)
		}
	}

	if len(list) == 0 {
		return nil
	}
	return llm.NewLayer(list, llm.Options{
		Threshold:         cfg.ConfidenceThreshold,
		CallTimeout:       cfg.LLMTimeout,
		MaxRetries:        cfg.MaxRetries,
		EnsembleProviders: cfg.EnsembleProviders,
	})
}
