// Package parser classifies raw diagnostic log lines into ParsedRecords.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/signal"
	"github.com/rs/zerolog"
)

// ProgressCallback is called periodically during parsing to report progress.
type ProgressCallback func(linesProcessed, totalLines int)

// progressEvery is how many lines pass between progress callbacks.
const progressEvery = 10000

// StampKind tells the parser which grammar a captured timestamp uses.
type StampKind int

const (
	StampNone   StampKind = iota // resolved from the last valid timestamp
	StampMonth                   // "Mon D HH:MM:SS.mmm"
	StampPrefix                  // "NN-HH:MM:SS.mmm"
)

// Drop explains why a claimed line produces no record.
type Drop int

const (
	Keep Drop = iota
	DropSkipped
	DropUnknownComponent
)

// Match is the pure result of a classifier. Timestamps and signal state are
// resolved afterwards by the Parser that owns them.
type Match struct {
	Stamp     string
	StampKind StampKind

	Component models.Component
	Event     string
	Message   string

	Routing  string
	Duration string
	Priority string

	// SignalDump marks a signal line; Signals holds its valid raw pairs.
	SignalDump bool
	Signals    map[string]int
	// Rejected lists "NAME(value)" pairs that were outside the legal range.
	Rejected []string

	SourceFile string
	SourceLine int

	Drop   Drop
	Detail string
}

// Classifier recognizes one family of log lines.
type Classifier interface {
	// Name returns the unique name of the classifier.
	Name() string
	// Classify returns ok=true when the line belongs to this family.
	Classify(line string) (Match, bool)
}

// Options configures a Parser.
type Options struct {
	SessionYear int
	SampleSize  int
	SignalMode  signal.Mode
	Registry    *Registry
}

// Result is the output of one Parse call.
type Result struct {
	Records     []models.ParsedRecord
	Diagnostics *models.Diagnostics
}

// Parser owns the mutable state of one session: the timestamp fallback and
// the signal baselines. It is not safe for concurrent use; create one per
// session.
type Parser struct {
	registry *Registry
	resolver *Resolver
	tracker  *signal.Tracker
	sample   int
	log      zerolog.Logger
}

// New creates a Parser with fresh state.
func New(opts Options) *Parser {
	mode := opts.SignalMode
	if mode == "" {
		mode = signal.ModePerRoute
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry(mode)
	}
	sample := opts.SampleSize
	if sample <= 0 {
		sample = models.DefaultSampleSize
	}
	return &Parser{
		registry: reg,
		resolver: NewResolver(opts.SessionYear),
		tracker:  signal.NewTracker(mode),
		sample:   sample,
		log:      logging.WithComponent("parser"),
	}
}

// Tracker exposes the signal baselines owned by this parser.
func (p *Parser) Tracker() *signal.Tracker {
	return p.tracker
}

// Parse classifies every line of text.
func (p *Parser) Parse(text string) *Result {
	return p.ParseWithProgress(text, nil)
}

// ParseWithProgress parses with progress callbacks for large inputs.
func (p *Parser) ParseWithProgress(text string, onProgress ProgressCallback) *Result {
	res := &Result{
		Records:     make([]models.ParsedRecord, 0),
		Diagnostics: models.NewDiagnostics(p.sample),
	}

	total := strings.Count(text, "\n") + 1
	scanner := bufio.NewScanner(strings.NewReader(text))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if onProgress != nil && lineNum%progressEvery == 0 {
			onProgress(lineNum, total)
		}

		line := Clean(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}
		res.Diagnostics.Lines++

		rec, ok := p.parseLine(line, lineNum, res.Diagnostics)
		if ok {
			res.Records = append(res.Records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		p.log.Warn().Err(err).Int("line", lineNum).Msg("scan stopped early")
	}
	if onProgress != nil {
		onProgress(lineNum, total)
	}

	res.Diagnostics.Records = len(res.Records)
	p.log.Debug().
		Int("lines", res.Diagnostics.Lines).
		Int("records", len(res.Records)).
		Int("unmatched", res.Diagnostics.Count(models.DiagUnmatchedLine)).
		Int("invalid_timestamps", res.Diagnostics.Count(models.DiagInvalidTimestamp)).
		Msg("parse complete")
	return res
}

func (p *Parser) parseLine(line string, lineNum int, diag *models.Diagnostics) (models.ParsedRecord, bool) {
	m, ok := p.registry.Classify(line)
	if !ok {
		diag.Add(models.DiagUnmatchedLine, fmt.Sprintf("Line %d: %s...", lineNum, truncate(strings.TrimSpace(line), 50)))
		return models.ParsedRecord{}, false
	}

	if m.Drop == DropSkipped {
		diag.Add(models.DiagSkippedLine, fmt.Sprintf("Line %d: %s", lineNum, m.Detail))
		return models.ParsedRecord{}, false
	}

	// A valid timestamp still advances the fallback even when the line is
	// then dropped for its component.
	ts, err := p.resolve(m)
	if err != nil {
		if errors.Is(err, ErrInvalidTimestamp) {
			diag.Add(models.DiagInvalidTimestamp, fmt.Sprintf("Line %d: %s", lineNum, m.Stamp))
		}
		return models.ParsedRecord{}, false
	}

	if m.Drop == DropUnknownComponent {
		p.log.Warn().Int("line", lineNum).Str("detail", m.Detail).Msg("unknown component")
		diag.Add(models.DiagUnknownComponent, fmt.Sprintf("Line %d: %s", lineNum, m.Detail))
		return models.ParsedRecord{}, false
	}

	for _, r := range m.Rejected {
		p.log.Warn().Int("line", lineNum).Str("signal", r).Msg("signal value out of range")
		diag.Add(models.DiagOutOfRangeSignal, fmt.Sprintf("Line %d: %s", lineNum, r))
	}

	rec := models.ParsedRecord{
		Timestamp:  ts,
		Component:  m.Component,
		LineNumber: lineNum,
		Event:      m.Event,
		Message:    m.Message,
		Routing:    m.Routing,
		Duration:   m.Duration,
		Priority:   m.Priority,
		SourceFile: m.SourceFile,
		SourceLine: m.SourceLine,
	}

	if m.SignalDump {
		vec, changes, seq := p.tracker.Observe(m.Routing, m.Signals)
		rec.Signals = vec
		rec.Changes = changes
		rec.Sequence = &seq
		rec.Event = EventSignalState
		if len(changes) > 0 {
			rec.Event = EventSignalChange
		}
	}
	return rec, true
}

func (p *Parser) resolve(m Match) (time.Time, error) {
	switch m.StampKind {
	case StampMonth:
		return p.resolver.Month(m.Stamp)
	case StampPrefix:
		return p.resolver.Prefix(m.Stamp)
	}
	return p.resolver.Last(), nil
}

// Clean strips bytes outside printable ASCII, keeping tabs.
func Clean(line string) string {
	clean := true
	for i := 0; i < len(line); i++ {
		if !keepByte(line[i]) {
			clean = false
			break
		}
	}
	if clean {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < len(line); i++ {
		if keepByte(line[i]) {
			b.WriteByte(line[i])
		}
	}
	return b.String()
}

func keepByte(c byte) bool {
	return (c >= 0x20 && c <= 0x7E) || c == '\t'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
