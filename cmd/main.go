package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-meeting-summary-service/internal/config"
	"ai-meeting-summary-service/internal/events"
	"ai-meeting-summary-service/internal/observability"
	"ai-meeting-summary-service/internal/observability/logging"
	"ai-meeting-summary-service/internal/service/call"
	"ai-meeting-summary-service/internal/service/stt"
	"ai-meeting-summary-service/internal/service/stt/google"
	"ai-meeting-summary-service/internal/service/stt/mock"
	"ai-meeting-summary-service/internal/service/summarizer"
	"ai-meeting-summary-service/internal/service/summary"
	"ai-meeting-summary-service/internal/service/viewers"
	"ai-meeting-summary-service/internal/storage"
	"ai-meeting-summary-service/internal/storage/memory"
	"ai-meeting-summary-service/internal/ws"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
		Service:    cfg.Service.Principal,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		sessions    storage.SessionStore
		transcripts storage.TranscriptLog
		summaries   storage.SummaryStore
	)
	if cfg.Database.URL != "" {
		pool, err := storage.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer pool.Close()
		sessions = storage.NewPostgresSessionStore(pool)
		transcripts = storage.NewPostgresTranscriptLog(pool)
		summaries = storage.NewPostgresSummaryStore(pool)
		log.Info().Msg("Using Postgres storage")
	} else {
		sessions = memory.NewSessionStore()
		transcripts = memory.NewTranscriptLog()
		summaries = memory.NewSummaryStore()
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
	}

	// Kafka publisher with separate topics for partial transcripts,
	// final transcripts, and session lifecycle events.
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		TopicSession: cfg.Kafka.TopicSession,
		Principal:    cfg.Service.Principal,
	})
	defer publisher.Close()

	registry := viewers.NewRegistry()
	scheduler := summary.New(
		ctx,
		cfg.Summary.Interval,
		transcripts,
		summaries,
		summarizer.NewOpenAI(summarizer.Config{
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		}),
		registry,
	)
	registry.SetScheduler(scheduler)

	orchestrator := call.NewOrchestrator(call.Config{
		Sessions:      sessions,
		Transcripts:   transcripts,
		NewAdapter:    adapterFactory(cfg),
		Compliance:    call.NewLogCompliance(),
		Chat:          call.NewLogChatPublisher(),
		Events:        publisher,
		Viewers:       registry,
		PublicBaseURL: cfg.Service.PublicBaseURL,
	})

	handler := ws.NewHandler(ws.Config{
		Sessions:      sessions,
		Transcripts:   transcripts,
		Summaries:     summaries,
		Registry:      registry,
		Ender:         orchestrator,
		Events:        publisher,
		PublicBaseURL: cfg.Service.PublicBaseURL,
	})

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr)
	obsServer.Start()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      ws.NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Service.HTTPPort).
			Str("sttProvider", cfg.STT.Provider).
			Dur("summaryInterval", cfg.Summary.Interval).
			Msg("Meeting summary service started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Stop accepting viewers first, then drain the summary jobs so
	// in-flight ticks complete before storage goes away.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	scheduler.Shutdown()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown error")
	}
}

// adapterFactory selects the STT provider from configuration. Each call
// gets a fresh adapter instance.
func adapterFactory(cfg *config.Config) call.AdapterFactory {
	switch cfg.STT.Provider {
	case "google":
		return func(ctx context.Context) (stt.Adapter, error) {
			return google.New(ctx, google.Config{
				LanguageCode:   cfg.STT.LanguageCode,
				SampleRateHz:   cfg.STT.SampleRateHz,
				InterimResults: cfg.STT.InterimResults,
				AudioEncoding:  "LINEAR16",
			})
		}
	default:
		return func(ctx context.Context) (stt.Adapter, error) {
			return mock.New(), nil
		}
	}
}
