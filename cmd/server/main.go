package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/callcoach/backend/internal/ai"
	"github.com/callcoach/backend/internal/archive"
	"github.com/callcoach/backend/internal/config"
	"github.com/callcoach/backend/internal/db"
	"github.com/callcoach/backend/internal/events"
	httpapi "github.com/callcoach/backend/internal/http"
	"github.com/callcoach/backend/internal/metrics"
	"github.com/callcoach/backend/internal/profile"
	"github.com/callcoach/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "callcoach-backend").Logger()

	metrics.Init()

	ctx := context.Background()

	completer := newCompleter(cfg, logger)

	arch, closeArchive := newArchive(ctx, cfg, logger)
	defer closeArchive()

	publisher := newPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()

	manager := service.NewManager(profile.NewGenerator(), completer, arch, publisher, logger, service.Options{
		NudgeInterval:       cfg.NudgeInterval,
		NudgeThrottle:       cfg.NudgeThrottle,
		NudgeCooldown:       cfg.NudgeCooldown,
		CollaboratorTimeout: cfg.LLMTimeout,
		ConflictPolicy:      service.ConflictPolicy(cfg.StartConflictPolicy),
	})

	router := httpapi.Router(cfg, manager, arch, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("llm", cfg.LLMProvider).Str("archive", cfg.ArchiveBackend).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	manager.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func newCompleter(cfg config.Config, logger zerolog.Logger) ai.Completer {
	var c ai.Completer
	switch cfg.LLMProvider {
	case "openai":
		model := cfg.LLMModel
		if model == "" {
			model = "gpt-4o-mini"
		}
		c = &ai.OpenAICompatClient{
			BaseURL:  cfg.LLMBaseURL,
			Model:    model,
			APIKey:   cfg.LLMAPIKey,
			Timeout:  cfg.LLMTimeout,
			CacheTTL: cfg.LLMCacheTTL,
		}
		logger.Info().Str("model", model).Msg("using openai-compatible collaborator")
	case "anthropic":
		model := cfg.LLMModel
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		c = ai.NewAnthropicClient(cfg.LLMAPIKey, model, cfg.LLMTimeout).WithBaseURL(cfg.LLMBaseURL)
		logger.Info().Str("model", model).Msg("using anthropic collaborator")
	default:
		c = ai.MockCompleter{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock collaborator")
	}
	return ai.Instrument(c)
}

func newArchive(ctx context.Context, cfg config.Config, logger zerolog.Logger) (archive.Archive, func()) {
	switch cfg.ArchiveBackend {
	case "postgres":
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		return store, store.Close
	case "redis":
		client, err := archive.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		r := archive.NewRedis(client, cfg.RedisTTL)
		return r, func() { _ = r.Close() }
	default:
		return archive.NewMemory(), func() {}
	}
}

func newPublisher(cfg config.Config, logger zerolog.Logger) events.Publisher {
	switch cfg.EventsBackend {
	case "nats":
		p, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSToken, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect nats")
		}
		return p
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic)
	default:
		return events.Nop{}
	}
}
