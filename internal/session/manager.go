package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/metrics"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/pipeline"
	"github.com/google/uuid"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// ErrNoFiles is returned when a session is started without input.
var ErrNoFiles = errors.New("no files given")

// Config tunes the parse sessions a Manager runs.
type Config struct {
	Pipeline pipeline.Config
	Reader   loader.Options
}

// Manager handles active log conversion sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	cfg      Config
	reader   *loader.Reader
}

// SessionState holds the session metadata and its converted output.
type SessionState struct {
	Session      *models.ParseSession
	Messages     []models.UnifiedMessage
	Diagnostics  *models.Diagnostics
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)
	created      time.Time
}

// NewManager creates a new session manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		sessions: make(map[string]*SessionState),
		cfg:      cfg,
		reader:   loader.NewReader(cfg.Reader),
	}
}

// StartSession begins converting the given files in the background. fileIDs
// label the session; sources are read and concatenated in order.
func (m *Manager) StartSession(fileIDs []string, sources []loader.Source) (*models.ParseSession, error) {
	if len(sources) == 0 {
		return nil, ErrNoFiles
	}

	// Clean up old sessions if at limit
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()

	session := models.NewParseSession(sessionID, fileIDs)
	session.Status = models.SessionStatusParsing

	now := time.Now()
	state := &SessionState{
		Session:      session,
		LastAccessed: now,
		created:      now,
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()
	m.reportSessions()

	// Run parsing in a background goroutine
	go m.runParse(sessionID, sources)

	snapshot := *session
	return &snapshot, nil
}

func (m *Manager) runParse(sessionID string, sources []loader.Source) {
	log := logging.WithSession("parse", sessionID)

	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("parse panicked")
			m.updateSessionError(sessionID, fmt.Sprintf("parse panicked: %v", r))
		}
		m.reportSessions()
	}()

	start := time.Now()
	log.Info().Int("files", len(sources)).Msg("starting parse")

	batch, err := m.reader.Read(context.Background(), sources)
	var fileErrs []models.ParseError
	if batch != nil {
		for _, fe := range batch.Errors() {
			fileErrs = append(fileErrs, models.ParseError{File: fe.Name, Reason: fe.Err.Error()})
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("reading files failed")
		m.failSession(sessionID, fileErrs, fmt.Sprintf("reading files: %v", err))
		return
	}

	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Progress = 10
	}
	m.mu.Unlock()

	// Progress maps parse progress onto 10-90%
	progressCb := func(lines, total int) {
		progress := 10.0
		if total > 0 {
			progress = 10.0 + float64(lines)*80.0/float64(total)
		}
		if progress > 89.9 {
			progress = 89.9
		}

		m.mu.Lock()
		if state, ok := m.sessions[sessionID]; ok {
			state.Session.Progress = progress
			state.Session.LineCount = lines
		}
		m.mu.Unlock()
	}

	result, err := pipeline.New(m.cfg.Pipeline).RunWithProgress(batch.Text(), progressCb)
	if err != nil {
		log.Error().Err(err).Msg("conversion failed")
		m.failSession(sessionID, fileErrs, err.Error())
		if result != nil {
			m.mu.Lock()
			if state, ok := m.sessions[sessionID]; ok {
				state.Diagnostics = result.Diagnostics
				state.Session.LineCount = result.Diagnostics.Lines
			}
			m.mu.Unlock()
		}
		return
	}

	elapsed := time.Since(start).Milliseconds()
	log.Info().
		Int("records", len(result.Records)).
		Int("messages", len(result.Messages)).
		Int64("elapsed_ms", elapsed).
		Msg("parse complete")

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Messages = result.Messages
	state.Diagnostics = result.Diagnostics
	state.Session.Status = models.SessionStatusComplete
	state.Session.Progress = 100
	state.Session.LineCount = result.Diagnostics.Lines
	state.Session.RecordCount = len(result.Records)
	state.Session.MessageCount = len(result.Messages)
	state.Session.ProcessingTimeMs = elapsed
	state.Session.Errors = append(state.Session.Errors, fileErrs...)

	first, last := result.Messages[0].Time(), result.Messages[len(result.Messages)-1].Time()
	if last.Before(first) {
		first, last = last, first
	}
	state.Session.StartTime = first.UnixMilli()
	state.Session.EndTime = last.UnixMilli()
}

func (m *Manager) failSession(sessionID string, fileErrs []models.ParseError, reason string) {
	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Errors = append(state.Session.Errors, fileErrs...)
	}
	m.mu.Unlock()
	m.updateSessionError(sessionID, reason)
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.Errors = append(state.Session.Errors, models.ParseError{
		Reason: reason,
	})
}

func (m *Manager) reportSessions() {
	m.mu.RLock()
	counts := make(map[models.SessionStatus]int)
	for _, state := range m.sessions {
		counts[state.Session.Status]++
	}
	m.mu.RUnlock()

	for _, st := range []models.SessionStatus{
		models.SessionStatusPending,
		models.SessionStatusParsing,
		models.SessionStatusComplete,
		models.SessionStatusError,
	} {
		metrics.ParseSessionsTotal.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}

func finished(s *models.ParseSession) bool {
	return s.Status == models.SessionStatusComplete || s.Status == models.SessionStatusError
}

// cleanupOldSessionsIfNeeded removes oldest finished sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	var candidates []string
	for id, state := range m.sessions {
		if finished(state.Session) {
			candidates = append(candidates, id)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return m.sessions[candidates[i]].created.Before(m.sessions[candidates[j]].created)
	})

	toFree := len(m.sessions) - MaxSessions + 1
	log := logging.WithComponent("sessions")
	for i := 0; i < toFree && i < len(candidates); i++ {
		delete(m.sessions, candidates[i])
		log.Info().Str("session", candidates[i][:8]).Msg("evicted old session to free memory")
	}
}

// CleanupOldSessions removes finished sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)
	log := logging.WithComponent("sessions")

	for id, state := range m.sessions {
		if !finished(state.Session) {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			log.Info().
				Str("session", id[:8]).
				Dur("idle", now.Sub(state.LastAccessed).Round(time.Second)).
				Msg("cleaned up aged session")
		}
	}
	m.mu.Unlock()
	m.reportSessions()
}

// GetSession returns a copy of a session by ID.
func (m *Manager) GetSession(id string) (*models.ParseSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	snapshot.Errors = append([]models.ParseError(nil), state.Session.Errors...)
	return &snapshot, true
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// GetMessages returns a page of a completed session's messages in stream
// order. Pages are 1-based.
func (m *Manager) GetMessages(id string, page, pageSize int) ([]models.UnifiedMessage, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Status != models.SessionStatusComplete {
		return nil, 0, false
	}

	total := len(state.Messages)
	if pageSize <= 0 {
		return state.Messages, total, true
	}
	start := (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start >= total {
		return []models.UnifiedMessage{}, total, true
	}

	end := start + pageSize
	if end > total {
		end = total
	}
	return state.Messages[start:end], total, true
}

// GetDiagnostics returns the diagnostics of a finished session.
func (m *Manager) GetDiagnostics(id string) (*models.Diagnostics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Diagnostics == nil {
		return nil, false
	}
	return state.Diagnostics, true
}
