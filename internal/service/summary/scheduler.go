// Package summary runs the per-session periodic summarization job.
package summary

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/models"
	"ai-meeting-summary-service/internal/observability/logging"
	"ai-meeting-summary-service/internal/observability/metrics"
	"ai-meeting-summary-service/internal/service/summarizer"
	"ai-meeting-summary-service/internal/storage"
)

// Broadcaster fans a message out to every viewer of a session.
// Implemented by the viewer registry.
type Broadcaster interface {
	SendToSession(sessionID uuid.UUID, message any) error
}

// job is the control surface of one running per-session loop.
type job struct {
	stop chan struct{}
	done chan struct{}
}

// Scheduler runs at most one summarization loop per session. Each loop
// ticks on a fixed interval: fetch unprocessed transcripts, generate a
// summary, persist it, broadcast it, mark the transcripts processed.
// Tick errors are logged and the loop carries on with the next tick.
type Scheduler struct {
	// baseCtx outlives individual jobs so an in-flight tick can finish
	// normally while its job is being stopped.
	baseCtx     context.Context
	interval    time.Duration
	transcripts storage.TranscriptLog
	summaries   storage.SummaryStore
	ai          summarizer.Summarizer
	broadcaster Broadcaster

	mu   sync.Mutex
	jobs map[uuid.UUID]*job

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a scheduler. ctx should be the process-lifetime context;
// cancelling it aborts the storage and AI calls of in-flight ticks
// during shutdown.
func New(
	ctx context.Context,
	interval time.Duration,
	transcripts storage.TranscriptLog,
	summaries storage.SummaryStore,
	ai summarizer.Summarizer,
	broadcaster Broadcaster,
) *Scheduler {
	return &Scheduler{
		baseCtx:     ctx,
		interval:    interval,
		transcripts: transcripts,
		summaries:   summaries,
		ai:          ai,
		broadcaster: broadcaster,
		jobs:        make(map[uuid.UUID]*job),
		logger:      logging.WithComponent("summary_scheduler"),
		metrics:     metrics.DefaultMetrics,
	}
}

// StartJob launches the summarization loop for a session. Starting an
// already-running session is a warning-level no-op.
func (s *Scheduler) StartJob(sessionID uuid.UUID) {
	s.mu.Lock()
	if _, exists := s.jobs[sessionID]; exists {
		s.mu.Unlock()
		s.logger.Warn().
			Str("sessionId", sessionID.String()).
			Msg("Summary job already running, ignoring start")
		return
	}
	j := &job{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.jobs[sessionID] = j
	s.mu.Unlock()

	s.metrics.RecordSchedulerStarted()
	s.logger.Info().
		Str("sessionId", sessionID.String()).
		Dur("interval", s.interval).
		Msg("Summary job started")

	go s.run(sessionID, j)
}

// StopJob signals the session's loop to stop and blocks until it has
// exited. An in-flight tick completes normally first. Unknown sessions
// are a no-op.
func (s *Scheduler) StopJob(sessionID uuid.UUID) {
	s.mu.Lock()
	j, exists := s.jobs[sessionID]
	if exists {
		delete(s.jobs, sessionID)
	}
	s.mu.Unlock()
	if !exists {
		return
	}

	close(j.stop)
	<-j.done

	s.metrics.RecordSchedulerStopped()
	s.logger.Info().
		Str("sessionId", sessionID.String()).
		Msg("Summary job stopped")
}

// Running reports whether a session currently has a summarization loop.
func (s *Scheduler) Running(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.jobs[sessionID]
	return exists
}

// Shutdown stops every running job. Called once during process
// shutdown, after the websocket listener has stopped accepting viewers.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.StopJob(id)
	}
}

func (s *Scheduler) run(sessionID uuid.UUID, j *job) {
	defer close(j.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			s.tick(sessionID)
		}
	}
}

// tick performs one summarization pass. Each pass is stateless: the
// previous summary is reloaded from the store, so a crashed or skipped
// tick costs nothing but latency.
func (s *Scheduler) tick(sessionID uuid.UUID) {
	start := time.Now()
	ctx := s.baseCtx
	logger := s.logger.With().Str("sessionId", sessionID.String()).Logger()

	segments, err := s.transcripts.FetchUnprocessed(ctx, sessionID)
	if err != nil {
		logger.Error().Err(err).Msg("Tick failed: fetch unprocessed transcripts")
		s.metrics.RecordTick("error", time.Since(start).Seconds())
		return
	}
	if len(segments) == 0 {
		s.metrics.RecordTick("empty", time.Since(start).Seconds())
		return
	}

	previous := ""
	if rec, err := s.summaries.Latest(ctx, sessionID); err == nil {
		previous = rec.Summary
	} else if !errors.Is(err, storage.ErrSummaryNotFound) {
		logger.Error().Err(err).Msg("Tick failed: load previous summary")
		s.metrics.RecordTick("error", time.Since(start).Seconds())
		return
	}

	input := summarizer.BuildInput(segments, previous)
	text, err := s.ai.Summarize(ctx, input)
	if err != nil {
		logger.Error().Err(err).Int("segments", len(segments)).Msg("Tick failed: AI completion")
		s.metrics.RecordTick("error", time.Since(start).Seconds())
		return
	}

	if err := s.summaries.Append(ctx, sessionID, text, nil); err != nil {
		logger.Error().Err(err).Msg("Tick failed: persist summary")
		s.metrics.RecordTick("error", time.Since(start).Seconds())
		return
	}
	s.metrics.RecordSummaryGenerated()

	if err := s.broadcaster.SendToSession(sessionID, models.NewLiveSummary(sessionID.String(), text)); err != nil {
		// Broadcast failure must not leave the transcripts unmarked:
		// the summary is already persisted and resending the same
		// segments next tick would double-count them.
		logger.Error().Err(err).Msg("Broadcast failed after summary persisted")
	}

	ids := make([]uuid.UUID, len(segments))
	for i, seg := range segments {
		ids[i] = seg.ID
	}
	if err := s.transcripts.MarkProcessed(ctx, ids); err != nil {
		if errors.Is(err, storage.ErrProcessedCountMismatch) {
			logger.Error().Err(err).Msg("Transcript log consistency fault while marking processed")
		} else {
			logger.Error().Err(err).Msg("Tick failed: mark transcripts processed")
		}
		s.metrics.RecordTick("error", time.Since(start).Seconds())
		return
	}

	logger.Info().
		Int("segments", len(segments)).
		Dur("duration", time.Since(start)).
		Msg("Summary generated and broadcast")
	s.metrics.RecordTick("ok", time.Since(start).Seconds())
}
