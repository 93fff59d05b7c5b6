// Package viewers tracks websocket viewers per meeting session and
// drives the summary job from audience presence: the job runs exactly
// while a session has at least one viewer.
package viewers

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/observability/logging"
	"ai-meeting-summary-service/internal/observability/metrics"
)

// Conn is the minimal connection surface the registry needs. The
// websocket handler wraps *websocket.Conn to satisfy it.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// SummaryJob starts and stops the per-session summary loop. Implemented
// by the summary scheduler; wired in after construction to break the
// registry/scheduler dependency cycle. StopJob blocks until the job's
// in-flight work has finished.
type SummaryJob interface {
	StartJob(sessionID uuid.UUID)
	StopJob(sessionID uuid.UUID)
}

// sessionEntry holds the viewer set for one session.
//
// Two locks with distinct roles: mu serializes membership transitions
// and the job start/stop they trigger; connsMu guards only the conns
// set. Broadcasts take connsMu alone, so a blocking StopJob (held under
// mu) cannot deadlock with the stopping job's final broadcast.
type sessionEntry struct {
	mu      sync.Mutex
	connsMu sync.Mutex
	conns   map[Conn]struct{}
	removed bool // set once the entry is dropped from the registry map
}

func (e *sessionEntry) count() int {
	e.connsMu.Lock()
	defer e.connsMu.Unlock()
	return len(e.conns)
}

// Registry is the viewer-connection registry. The zero value is not
// usable; use NewRegistry.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry

	jobMu sync.RWMutex
	job   SummaryJob

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty viewer registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*sessionEntry),
		logger:   logging.WithComponent("viewer_registry"),
		metrics:  metrics.DefaultMetrics,
	}
}

// SetScheduler wires in the summary job control. Must be called before
// the first viewer connects.
func (r *Registry) SetScheduler(job SummaryJob) {
	r.jobMu.Lock()
	r.job = job
	r.jobMu.Unlock()
}

func (r *Registry) scheduler() SummaryJob {
	r.jobMu.RLock()
	defer r.jobMu.RUnlock()
	return r.job
}

// entryFor returns the entry for a session with its transition lock
// held, creating the entry if needed. When it races with a last-viewer
// removal it blocks on the old entry's lock until the removal (and its
// job stop) has finished, then retries with a fresh entry. That gives a
// strict stop-before-restart order for rapid disconnect/reconnect.
func (r *Registry) entryFor(sessionID uuid.UUID) *sessionEntry {
	for {
		r.mu.Lock()
		entry, ok := r.sessions[sessionID]
		if !ok {
			entry = &sessionEntry{conns: make(map[Conn]struct{})}
			r.sessions[sessionID] = entry
		}
		r.mu.Unlock()

		entry.mu.Lock()
		if !entry.removed {
			return entry // caller inherits entry.mu locked
		}
		entry.mu.Unlock()
	}
}

// AddViewer registers a viewer connection. The first viewer of a
// session starts the summary job; the transition happens under the
// session lock so a racing disconnect cannot observe a half state.
func (r *Registry) AddViewer(sessionID uuid.UUID, conn Conn) {
	entry := r.entryFor(sessionID) // locked
	defer entry.mu.Unlock()

	entry.connsMu.Lock()
	wasEmpty := len(entry.conns) == 0
	entry.conns[conn] = struct{}{}
	total := len(entry.conns)
	entry.connsMu.Unlock()

	r.metrics.RecordViewerConnected()
	r.logger.Info().
		Str("sessionId", sessionID.String()).
		Int("viewers", total).
		Msg("Viewer connected")

	if wasEmpty {
		if job := r.scheduler(); job != nil {
			job.StartJob(sessionID)
		}
	}
}

// RemoveViewer unregisters a viewer connection. Removing the last
// viewer stops the summary job (blocking until its in-flight tick is
// done) and discards the session's bookkeeping. Unknown sessions and
// connections are no-ops.
func (r *Registry) RemoveViewer(sessionID uuid.UUID, conn Conn) {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return
	}

	entry.connsMu.Lock()
	_, known := entry.conns[conn]
	if known {
		delete(entry.conns, conn)
	}
	remaining := len(entry.conns)
	entry.connsMu.Unlock()

	if !known {
		return
	}

	r.metrics.RecordViewerDisconnected()
	r.logger.Info().
		Str("sessionId", sessionID.String()).
		Int("viewers", remaining).
		Msg("Viewer disconnected")

	if remaining == 0 {
		if job := r.scheduler(); job != nil {
			job.StopJob(sessionID)
		}
		r.dropEntry(sessionID, entry)
	}
}

// dropEntry removes an emptied entry from the registry map. Caller
// holds entry.mu.
func (r *Registry) dropEntry(sessionID uuid.UUID, entry *sessionEntry) {
	entry.removed = true
	r.mu.Lock()
	if current, ok := r.sessions[sessionID]; ok && current == entry {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
}

// ViewerCount reports the number of connected viewers for a session.
func (r *Registry) ViewerCount(sessionID uuid.UUID) int {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return entry.count()
}

// SendToSession marshals the message once and delivers it to every
// viewer of the session. A failing connection is logged and skipped so
// one bad socket cannot starve the rest of the audience. Sessions with
// no viewers are a silent no-op.
func (r *Registry) SendToSession(sessionID uuid.UUID, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	entry.connsMu.Lock()
	defer entry.connsMu.Unlock()

	sendErrors := 0
	for conn := range entry.conns {
		if err := conn.Send(payload); err != nil {
			sendErrors++
			r.logger.Warn().
				Err(err).
				Str("sessionId", sessionID.String()).
				Msg("Failed to send to viewer, skipping connection")
		}
	}
	r.metrics.RecordBroadcast(sendErrors)
	return nil
}

// CloseSession broadcasts a final message to the session's viewers,
// closes their connections, and stops the summary job. Used when the
// meeting ends.
func (r *Registry) CloseSession(sessionID uuid.UUID, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal session close message")
		payload = nil
	}

	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return
	}

	entry.connsMu.Lock()
	hadViewers := len(entry.conns) > 0
	for conn := range entry.conns {
		if payload != nil {
			if err := conn.Send(payload); err != nil {
				r.logger.Warn().
					Err(err).
					Str("sessionId", sessionID.String()).
					Msg("Failed to send close message to viewer")
			}
		}
		_ = conn.Close()
		delete(entry.conns, conn)
		r.metrics.RecordViewerDisconnected()
	}
	entry.connsMu.Unlock()

	if hadViewers {
		if job := r.scheduler(); job != nil {
			job.StopJob(sessionID)
		}
	}
	r.dropEntry(sessionID, entry)

	r.logger.Info().
		Str("sessionId", sessionID.String()).
		Msg("Session viewers closed")
}
