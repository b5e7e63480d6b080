package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tracelens/playground/internal/config"
	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/provider"
	"github.com/tracelens/playground/internal/provider/anthropic"
	"github.com/tracelens/playground/internal/provider/openai"
	"github.com/tracelens/playground/internal/safehttp"
	"github.com/tracelens/playground/internal/server"
	"github.com/tracelens/playground/internal/storage"
	"github.com/tracelens/playground/internal/storage/memory"
	"github.com/tracelens/playground/internal/storage/sqldb"
	"github.com/tracelens/playground/internal/telemetry"
	"github.com/tracelens/playground/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init("playground", logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	providers := buildProviders(cfg, logger)

	tokenizers := tokens.NewRegistry()
	tokenizers.Register(tokens.NewOpenAICounter())
	tokenizers.Register(tokens.NewEstimator())

	h := server.NewHandler(
		logger,
		providers,
		tokenizers,
		store,
		domain.ProviderKey(cfg.Playground.DefaultProvider),
		cfg.Playground.DefaultModel,
		cfg.Server.RequestTimeout,
	)

	srv := server.New(cfg.Server.Port, logger)
	h.Mount(srv.Router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Storage.Retention.MaxAge > 0 {
		go retentionSweep(ctx, logger, store, cfg.Storage.Retention)
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func openStore(cfg *config.Config) (storage.PromptStore, error) {
	switch cfg.Storage.Driver {
	case "memory", "":
		return memory.New(), nil
	default:
		return sqldb.New(sqldb.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
	}
}

func buildProviders(cfg *config.Config, logger *slog.Logger) *provider.Registry {
	registry := provider.NewRegistry()
	httpClient := safehttp.NewClient(cfg.Providers.AllowPrivateEndpoints)

	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		registry.Register(openai.NewClient(key,
			openai.WithBaseURL(cfg.Providers.OpenAI.BaseURL),
			openai.WithHTTPClient(httpClient)))
	}
	if key := cfg.Providers.AzureOpenAI.APIKey; key != "" {
		registry.Register(openai.NewClient(key,
			openai.WithBaseURL(cfg.Providers.AzureOpenAI.BaseURL),
			openai.WithAPIVersion(cfg.Providers.AzureOpenAI.APIVersion),
			openai.WithProviderKey(domain.ProviderAzureOpenAI),
			openai.WithHTTPClient(httpClient)))
	}
	if key := cfg.Providers.Anthropic.APIKey; key != "" {
		registry.Register(anthropic.NewClient(key,
			anthropic.WithBaseURL(cfg.Providers.Anthropic.BaseURL),
			anthropic.WithHTTPClient(httpClient)))
	}

	keys := registry.Keys()
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, string(key))
	}
	logger.Info("providers configured", slog.Any("providers", names))

	return registry
}

// retentionSweep periodically deletes saved prompts past the retention
// window.
func retentionSweep(ctx context.Context, logger *slog.Logger, store storage.PromptStore, retention config.RetentionConfig) {
	interval := retention.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention.MaxAge)
			removed, err := store.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				logger.Error("retention sweep failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				logger.Info("retention sweep removed prompts", slog.Int64("removed", removed))
			}
		}
	}
}
