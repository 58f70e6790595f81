package kpi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/models"
)

// Mode is the power transition a set of KPI results belongs to.
type Mode string

const (
	ModeSleepToRun Mode = "sleep-to-run"
	ModeShutdown   Mode = "shutdown"
)

// Modes lists every board mode.
var Modes = []Mode{ModeSleepToRun, ModeShutdown}

// ErrUnknownMode is returned for a mode outside Modes.
var ErrUnknownMode = errors.New("unknown kpi mode")

// ParseMode validates s.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type boardKey struct {
	mode  Mode
	suite string
}

// Board keeps the latest statuses per (mode, suite).
type Board struct {
	suites *Suites
	now    func() time.Time

	mu       sync.RWMutex
	statuses map[boardKey][]models.KPIStatus
}

// NewBoard creates a board over suites.
func NewBoard(suites *Suites) *Board {
	return &Board{
		suites:   suites,
		now:      time.Now,
		statuses: make(map[boardKey][]models.KPIStatus),
	}
}

// Suites returns the suites the board evaluates.
func (b *Board) Suites() *Suites {
	return b.suites
}

// Statuses returns the current statuses, or the initial ones when the pair
// was never evaluated.
func (b *Board) Statuses(mode Mode, suiteName string) ([]models.KPIStatus, error) {
	suite, err := b.lookup(mode, suiteName)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	cur, ok := b.statuses[boardKey{mode, suiteName}]
	b.mu.RUnlock()
	if !ok {
		return InitialStatuses(suite.KPIs), nil
	}
	out := make([]models.KPIStatus, len(cur))
	copy(out, cur)
	return out, nil
}

// Evaluate checks text against the suite and stores the result. While it
// runs, readers see every KPI of the pair as pending.
func (b *Board) Evaluate(mode Mode, suiteName, text string) ([]models.KPIStatus, error) {
	suite, err := b.lookup(mode, suiteName)
	if err != nil {
		return nil, err
	}
	key := boardKey{mode, suiteName}

	b.mu.Lock()
	pending := InitialStatuses(suite.KPIs)
	if prev, ok := b.statuses[key]; ok {
		copy(pending, prev)
	}
	for i := range pending {
		pending[i].Status = models.KPIPending
	}
	b.statuses[key] = pending
	b.mu.Unlock()

	result := Check(text, suite.KPIs, b.now())

	b.mu.Lock()
	b.statuses[key] = result
	b.mu.Unlock()

	log := logging.WithComponent("kpi")
	log.Info().
		Str("mode", string(mode)).
		Str("suite", suiteName).
		Int("kpis", len(result)).
		Msg("kpi suite evaluated")

	out := make([]models.KPIStatus, len(result))
	copy(out, result)
	return out, nil
}

// Reset forgets every result of mode.
func (b *Board) Reset(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.statuses {
		if k.mode == mode {
			delete(b.statuses, k)
		}
	}
	return nil
}

func (b *Board) lookup(mode Mode, suiteName string) (*Suite, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	return b.suites.Get(suiteName)
}
