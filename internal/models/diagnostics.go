package models

// DiagnosticKind classifies a recovered per-line problem.
type DiagnosticKind string

const (
	DiagInvalidTimestamp DiagnosticKind = "invalid_timestamp"
	DiagUnmatchedLine    DiagnosticKind = "unmatched_line"
	DiagUnknownComponent DiagnosticKind = "unknown_component"
	DiagOutOfRangeSignal DiagnosticKind = "out_of_range_signal"
	DiagSkippedLine      DiagnosticKind = "skipped_line"
	DiagUnknownEvent     DiagnosticKind = "unknown_event"
)

// DiagnosticKinds lists every kind in report order.
var DiagnosticKinds = []DiagnosticKind{
	DiagInvalidTimestamp, DiagUnmatchedLine, DiagUnknownComponent,
	DiagOutOfRangeSignal, DiagSkippedLine, DiagUnknownEvent,
}

// DiagnosticSummary is the accurate count plus a bounded sample for one kind.
type DiagnosticSummary struct {
	Count   int      `json:"count" msgpack:"count"`
	Samples []string `json:"samples,omitempty" msgpack:"samples,omitempty"`
}

// Diagnostics is the per-kind report of one conversion.
type Diagnostics struct {
	Lines    int                                  `json:"lines" msgpack:"lines"`
	Records  int                                  `json:"records" msgpack:"records"`
	Messages int                                  `json:"messages" msgpack:"messages"`
	Kinds    map[DiagnosticKind]*DiagnosticSummary `json:"kinds" msgpack:"kinds"`

	sampleSize int
}

// DefaultSampleSize is how many examples of each kind are retained.
const DefaultSampleSize = 5

// NewDiagnostics creates an empty report keeping sampleSize examples per kind.
func NewDiagnostics(sampleSize int) *Diagnostics {
	if sampleSize < 0 {
		sampleSize = DefaultSampleSize
	}
	return &Diagnostics{
		Kinds:      make(map[DiagnosticKind]*DiagnosticSummary),
		sampleSize: sampleSize,
	}
}

// Add records one occurrence. The count is always exact; the sample is bounded.
func (d *Diagnostics) Add(kind DiagnosticKind, sample string) {
	if d.Kinds == nil {
		d.Kinds = make(map[DiagnosticKind]*DiagnosticSummary)
	}
	s, ok := d.Kinds[kind]
	if !ok {
		s = &DiagnosticSummary{}
		d.Kinds[kind] = s
	}
	s.Count++
	if len(s.Samples) < d.sampleSize {
		s.Samples = append(s.Samples, sample)
	}
}

// Count returns the number of diagnostics recorded for kind.
func (d *Diagnostics) Count(kind DiagnosticKind) int {
	if d == nil || d.Kinds == nil {
		return 0
	}
	if s, ok := d.Kinds[kind]; ok {
		return s.Count
	}
	return 0
}

// Samples returns the retained sample for kind.
func (d *Diagnostics) Samples(kind DiagnosticKind) []string {
	if d == nil || d.Kinds == nil {
		return nil
	}
	if s, ok := d.Kinds[kind]; ok {
		return s.Samples
	}
	return nil
}
