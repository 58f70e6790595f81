// Package signal tracks MCU power-management signal vectors and reports
// which signals changed between successive dumps.
package signal

import (
	"fmt"
	"strings"
)

// Names is the tracked signal set in declared order. Output ordering of
// change lists follows this order.
var Names = []string{
	"SIP_PS_HOLD", "PSAIL_ERR", "SM_ERR1", "SM_ERR2", "POFF", "SLEEP_E",
	"FB_N", "WK_L", "WK_M", "comm", "boot_R", "boot_S", "off_R",
}

var tracked = func() map[string]bool {
	m := make(map[string]bool, len(Names))
	for _, n := range Names {
		m[n] = true
	}
	return m
}()

// IsTracked reports whether name is in the tracked set.
func IsTracked(name string) bool {
	return tracked[name]
}

// Mode selects how baselines are kept and which values are legal.
type Mode string

const (
	// ModePerRoute keeps one baseline per routing key; values 0-999.
	ModePerRoute Mode = "per-route"
	// ModeGlobalBinary keeps a single baseline for all lines; values 0-1.
	ModeGlobalBinary Mode = "global-binary"
)

// DefaultRoute is the routing key for dumps without an explicit "[N to M]" tag.
const DefaultRoute = "1 to 2"

const globalKey = "*"

// ParseMode maps a config value onto a Mode, defaulting to ModePerRoute.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeGlobalBinary {
		return ModeGlobalBinary
	}
	return ModePerRoute
}

// MaxValue is the largest legal signal value for the mode.
func (m Mode) MaxValue() int {
	if m == ModeGlobalBinary {
		return 1
	}
	return 999
}

// Vector holds a value for every tracked signal.
type Vector map[string]int

// Zero returns a vector with every tracked signal set to 0.
func Zero() Vector {
	v := make(Vector, len(Names))
	for _, n := range Names {
		v[n] = 0
	}
	return v
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Diff overlays raw onto prior and reports the changes as "NAME(value)" in
// declared order. A nil prior is a first observation: the result starts from
// zero and every captured signal counts as changed. Diff never mutates its
// arguments.
func Diff(prior Vector, raw map[string]int) (Vector, []string) {
	first := prior == nil
	base := prior
	if first {
		base = Zero()
	}

	next := base.Clone()
	for _, n := range Names {
		if val, ok := raw[n]; ok {
			next[n] = val
		}
	}

	changes := make([]string, 0)
	for _, n := range Names {
		if first {
			if _, ok := raw[n]; ok {
				changes = append(changes, format(n, next[n]))
			}
			continue
		}
		if next[n] != base[n] {
			changes = append(changes, format(n, next[n]))
		}
	}
	return next, changes
}

func format(name string, value int) string {
	return fmt.Sprintf("%s(%d)", name, value)
}

// Tracker owns the baselines of one parse or monitoring session.
// It is not safe for concurrent use.
type Tracker struct {
	mode      Mode
	baselines map[string]Vector
	counts    map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker(mode Mode) *Tracker {
	if mode == "" {
		mode = ModePerRoute
	}
	return &Tracker{
		mode:      mode,
		baselines: make(map[string]Vector),
		counts:    make(map[string]int),
	}
}

// Mode returns the tracker's baseline mode.
func (t *Tracker) Mode() Mode {
	return t.mode
}

// Observe records a dump for route and returns the forward-filled vector,
// the change list and the 1-based observation count for that baseline.
func (t *Tracker) Observe(route string, raw map[string]int) (Vector, []string, int) {
	key := t.key(route)
	next, changes := Diff(t.baselines[key], raw)
	t.baselines[key] = next
	t.counts[key]++
	return next.Clone(), changes, t.counts[key]
}

// Baseline returns a copy of the stored vector for route, if any.
func (t *Tracker) Baseline(route string) (Vector, bool) {
	v, ok := t.baselines[t.key(route)]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Reset forgets every baseline.
func (t *Tracker) Reset() {
	t.baselines = make(map[string]Vector)
	t.counts = make(map[string]int)
}

func (t *Tracker) key(route string) string {
	if t.mode == ModeGlobalBinary {
		return globalKey
	}
	if route == "" {
		return DefaultRoute
	}
	return route
}
