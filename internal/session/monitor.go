package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/metrics"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/pipeline"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxMessages caps the monitor buffer.
const DefaultMaxMessages = 1000

// DefaultLiveInterval is the producer period when none is given.
const DefaultLiveInterval = time.Second

var (
	// ErrNoMessages is returned when a replay is started with an empty batch.
	ErrNoMessages = errors.New("no messages to replay")
	// ErrNilProducer is returned by StartLive without a producer.
	ErrNilProducer = errors.New("live mode needs a producer")
)

// Mode is how a monitoring session obtains messages.
type Mode string

const (
	ModeFiles  Mode = "files"
	ModeReplay Mode = "replay"
	ModeLive   Mode = "live"
)

// State is the lifecycle of the active monitoring session.
type State string

const (
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateError    State = "error"
)

// Subscriber receives each delivered batch, newest message first. It runs on
// the session goroutine and must not call Stop.
type Subscriber func(batch []models.UnifiedMessage)

// Producer generates live batches.
type Producer interface {
	Next(ctx context.Context) ([]models.UnifiedMessage, error)
}

// MonitorConfig tunes a Monitor.
type MonitorConfig struct {
	Pipeline    pipeline.Config
	Reader      loader.Options
	MaxMessages int
}

// MonitorStatus describes the active session.
type MonitorStatus struct {
	Active    bool      `json:"active"`
	SessionID string    `json:"sessionId,omitempty"`
	Mode      Mode      `json:"mode,omitempty"`
	State     State     `json:"state,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Batches   int       `json:"batches"`
	Buffered  int       `json:"buffered"`
	LastError string    `json:"lastError,omitempty"`
}

type monitorSession struct {
	id        string
	mode      Mode
	state     State
	startedAt time.Time
	batches   int
	lastErr   string
	cancel    context.CancelFunc
	log       zerolog.Logger
}

// Monitor runs at most one monitoring session at a time and fans its
// batches out to subscribers.
type Monitor struct {
	cfg    MonitorConfig
	reader *loader.Reader

	// deliverMu serializes delivery against Stop.
	deliverMu sync.Mutex

	mu      sync.Mutex
	active  *monitorSession
	buffer  []models.UnifiedMessage
	subs    map[int]Subscriber
	nextSub int
}

// NewMonitor creates an idle monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	return &Monitor{
		cfg:    cfg,
		reader: loader.NewReader(cfg.Reader),
		subs:   make(map[int]Subscriber),
	}
}

// Subscribe registers cb and returns a function that removes it.
func (m *Monitor) Subscribe(cb Subscriber) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = cb
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// StartFiles starts a session that reads sources concurrently, converts them
// in the given order with a fresh pipeline and delivers one batch. ctx bounds
// the whole session, so pass a context that outlives the caller's request.
func (m *Monitor) StartFiles(ctx context.Context, sources []loader.Source) (string, error) {
	if len(sources) == 0 {
		return "", ErrNoFiles
	}
	sess, sctx := m.begin(ctx, ModeFiles)

	go func() {
		batch, err := m.reader.Read(sctx, sources)
		if err != nil {
			m.fail(sess, err)
			return
		}
		for _, fe := range batch.Errors() {
			sess.log.Warn().Str("file", fe.Name).Err(fe.Err).Msg("file skipped")
		}

		out, err := pipeline.New(m.cfg.Pipeline).Run(batch.Text())
		if err != nil {
			m.fail(sess, err)
			return
		}
		if m.deliver(sess, out.Messages) {
			m.finish(sess)
		}
	}()
	return sess.id, nil
}

// StartMessages starts a session that replays already-normalized messages.
func (m *Monitor) StartMessages(msgs []models.UnifiedMessage) (string, error) {
	if len(msgs) == 0 {
		return "", ErrNoMessages
	}
	batch := append([]models.UnifiedMessage(nil), msgs...)
	sess, _ := m.begin(context.Background(), ModeReplay)

	go func() {
		if m.deliver(sess, batch) {
			m.finish(sess)
		}
	}()
	return sess.id, nil
}

// StartLive starts a session that asks producer for a batch every interval
// until stopped.
func (m *Monitor) StartLive(producer Producer, interval time.Duration) (string, error) {
	if producer == nil {
		return "", ErrNilProducer
	}
	if interval <= 0 {
		interval = DefaultLiveInterval
	}
	sess, sctx := m.begin(context.Background(), ModeLive)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-sctx.Done():
				return
			case <-ticker.C:
			}

			batch, err := producer.Next(sctx)
			if err != nil {
				if sctx.Err() != nil {
					return
				}
				sess.log.Warn().Err(err).Msg("producer failed")
				m.mu.Lock()
				sess.lastErr = err.Error()
				m.mu.Unlock()
				continue
			}
			if len(batch) > 0 && !m.deliver(sess, batch) {
				return
			}
		}
	}()
	return sess.id, nil
}

// begin stops any previous session, discards its buffer and installs a new one.
func (m *Monitor) begin(ctx context.Context, mode Mode) (*monitorSession, context.Context) {
	m.Stop()

	sctx, cancel := context.WithCancel(ctx)
	id := uuid.New().String()
	sess := &monitorSession{
		id:        id,
		mode:      mode,
		state:     StateRunning,
		startedAt: time.Now(),
		cancel:    cancel,
		log:       logging.WithSession("monitor", id).With().Str("mode", string(mode)).Logger(),
	}

	m.mu.Lock()
	m.active = sess
	m.buffer = nil
	m.mu.Unlock()

	metrics.MonitorActive.Set(1)
	sess.log.Info().Msg("monitoring started")
	return sess, sctx
}

// Stop ends the active session. No batch is delivered after it returns.
func (m *Monitor) Stop() {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	sess := m.active
	m.active = nil
	m.mu.Unlock()

	if sess == nil {
		return
	}
	sess.cancel()
	metrics.MonitorActive.Set(0)
	sess.log.Info().Int("batches", sess.batches).Msg("monitoring stopped")
}

// deliver buffers batch and hands it to subscribers. It reports false when
// sess is no longer the active session.
func (m *Monitor) deliver(sess *monitorSession, batch []models.UnifiedMessage) bool {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	sorted := newestFirst(batch)

	m.mu.Lock()
	if m.active != sess {
		m.mu.Unlock()
		return false
	}
	m.buffer = append(sorted, m.buffer...)
	if len(m.buffer) > m.cfg.MaxMessages {
		m.buffer = m.buffer[:m.cfg.MaxMessages]
	}
	sess.batches++
	subs := make([]Subscriber, 0, len(m.subs))
	for _, cb := range m.subs {
		subs = append(subs, cb)
	}
	m.mu.Unlock()

	metrics.MonitorBatches.WithLabelValues(string(sess.mode)).Inc()
	for _, cb := range subs {
		notify(sess, cb, sorted)
	}
	return true
}

// notify runs one subscriber. A panicking subscriber is logged and skipped so
// the others still get the batch.
func notify(sess *monitorSession, cb Subscriber, batch []models.UnifiedMessage) {
	defer func() {
		if r := recover(); r != nil {
			sess.log.Error().Interface("panic", r).Msg("subscriber panicked")
		}
	}()
	cb(batch)
}

func (m *Monitor) finish(sess *monitorSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == sess {
		sess.state = StateComplete
	}
}

func (m *Monitor) fail(sess *monitorSession, err error) {
	sess.log.Error().Err(err).Msg("monitoring session failed")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == sess {
		sess.state = StateError
		sess.lastErr = err.Error()
	}
}

// Messages returns up to n buffered messages, newest first. n <= 0 returns
// the whole buffer.
func (m *Monitor) Messages(n int) []models.UnifiedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.buffer) {
		n = len(m.buffer)
	}
	out := make([]models.UnifiedMessage, n)
	copy(out, m.buffer[:n])
	return out
}

// Status describes the active session, if any.
func (m *Monitor) Status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := MonitorStatus{Buffered: len(m.buffer)}
	if s := m.active; s != nil {
		st.Active = true
		st.SessionID = s.id
		st.Mode = s.mode
		st.State = s.state
		st.StartedAt = s.startedAt
		st.Batches = s.batches
		st.LastError = s.lastErr
	}
	return st
}

// newestFirst returns a copy of batch ordered by descending timestamp. The
// fixed-width timestamp layout sorts lexically.
func newestFirst(batch []models.UnifiedMessage) []models.UnifiedMessage {
	out := make([]models.UnifiedMessage, len(batch))
	copy(out, batch)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}
