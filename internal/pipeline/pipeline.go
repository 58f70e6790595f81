// Package pipeline turns concatenated log text into UnifiedMessages.
package pipeline

import (
	"errors"

	"github.com/ecu-analyzer/backend/internal/metrics"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/normalize"
	"github.com/ecu-analyzer/backend/internal/parser"
	"github.com/ecu-analyzer/backend/internal/signal"
)

var (
	// ErrNoValidLogEntries means no line of the batch produced a record.
	ErrNoValidLogEntries = errors.New("no valid log entries found in files")
	// ErrConversionProducedNoMessages means records existed but none normalized.
	ErrConversionProducedNoMessages = errors.New("failed to convert logs to unified message format")
)

// Config selects the session parameters of a pipeline.
type Config struct {
	SessionYear int
	SampleSize  int
	SignalMode  signal.Mode
}

// Batch is the result of one conversion.
type Batch struct {
	Records     []models.ParsedRecord
	Messages    []models.UnifiedMessage
	Diagnostics *models.Diagnostics
}

// Pipeline owns a parser (and so its timestamp and signal state) plus a
// stateless normalizer. Create one per session.
type Pipeline struct {
	parser     *parser.Parser
	normalizer *normalize.Normalizer
}

// New creates a pipeline with fresh parse state.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		parser: parser.New(parser.Options{
			SessionYear: cfg.SessionYear,
			SampleSize:  cfg.SampleSize,
			SignalMode:  cfg.SignalMode,
		}),
		normalizer: normalize.New(nil),
	}
}

// Run converts text. The returned batch carries diagnostics even on error.
func (p *Pipeline) Run(text string) (*Batch, error) {
	return p.RunWithProgress(text, nil)
}

// RunWithProgress converts text, reporting parse progress.
func (p *Pipeline) RunWithProgress(text string, onProgress parser.ProgressCallback) (*Batch, error) {
	timer := metrics.NewTimer(metrics.ParseDuration)
	defer timer.ObserveDuration()

	res := p.parser.ParseWithProgress(text, onProgress)
	batch := &Batch{
		Records:     res.Records,
		Diagnostics: res.Diagnostics,
	}
	observe(res)

	if len(res.Records) == 0 {
		return batch, ErrNoValidLogEntries
	}

	batch.Messages = p.normalizer.Convert(res.Records, res.Diagnostics)
	for _, m := range batch.Messages {
		metrics.MessagesEmitted.WithLabelValues(string(m.Protocol), string(m.Type)).Inc()
	}
	if len(batch.Messages) == 0 {
		return batch, ErrConversionProducedNoMessages
	}
	return batch, nil
}

func observe(res *parser.Result) {
	metrics.LinesProcessed.Add(float64(res.Diagnostics.Lines))
	for kind, s := range res.Diagnostics.Kinds {
		metrics.LineDiagnostics.WithLabelValues(string(kind)).Add(float64(s.Count))
	}
	for _, r := range res.Records {
		metrics.RecordsParsed.WithLabelValues(string(r.Component)).Inc()
	}
}
