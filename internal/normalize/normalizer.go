package normalize

import (
	"fmt"

	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/rs/zerolog"
)

// SequenceBase is added to a message's batch position to form its sequence_id.
const SequenceBase = 10000

// Normalizer applies a rule table. It holds no per-session state.
type Normalizer struct {
	rules []Rule
	log   zerolog.Logger
}

// New creates a Normalizer over rules, or DefaultRules when rules is nil.
func New(rules []Rule) *Normalizer {
	if rules == nil {
		rules = DefaultRules
	}
	return &Normalizer{
		rules: rules,
		log:   logging.WithComponent("normalize"),
	}
}

// Classify returns the route for rec and the name of the rule that decided it.
// The name is empty when the fallback applied.
func (n *Normalizer) Classify(rec *models.ParsedRecord) (Route, string) {
	for _, r := range n.rules {
		if r.Match(rec) {
			return r.Route(rec), r.Name
		}
	}
	return fallback, ""
}

// Normalize converts one record at the given batch position. It never fails.
func (n *Normalizer) Normalize(rec *models.ParsedRecord, position int) models.UnifiedMessage {
	route, _ := n.Classify(rec)
	return build(rec, route, position)
}

// Convert normalizes records in order, assigning positions 0..n-1. Unknown
// event types are reported to diag when it is non-nil.
func (n *Normalizer) Convert(records []models.ParsedRecord, diag *models.Diagnostics) []models.UnifiedMessage {
	out := make([]models.UnifiedMessage, 0, len(records))
	for i := range records {
		rec := &records[i]
		route, rule := n.Classify(rec)
		if route.Unclassified {
			n.log.Warn().Str("component", string(rec.Component)).Str("event", rec.Event).Str("rule", rule).
				Msg("unknown event type mapped to STATUS_UPDATE")
			if diag != nil {
				diag.Add(models.DiagUnknownEvent, fmt.Sprintf("Line %d: %s/%s", rec.LineNumber, rec.Component, rec.Event))
			}
		}
		out = append(out, build(rec, route, i))
	}
	if diag != nil {
		diag.Messages = len(out)
	}
	return out
}

func build(rec *models.ParsedRecord, route Route, position int) models.UnifiedMessage {
	payload := models.Payload{
		"protocol":     string(route.Protocol),
		"message_type": rec.Event,
		"sequence_id":  SequenceBase + position,
		"timestamp":    rec.Timestamp.UnixMilli(),
		"function":     rec.Message,
		"component":    string(rec.Component),
		"line_number":  rec.LineNumber,
	}
	if rec.SourceFile != "" {
		payload["source_file"] = rec.SourceFile
		payload["source_line"] = rec.SourceLine
	}

	if rec.Component == models.ComponentMCU {
		putString(payload, "routing", rec.Routing)
		putString(payload, "duration", rec.Duration)
		putString(payload, "priority", rec.Priority)
		if rec.Event != "WAKEUP_LINE_STAT" {
			if rec.Signals != nil {
				payload["signals"] = rec.Signals
			}
			if rec.Changes != nil {
				payload["changes"] = rec.Changes
			}
			payload["signal_count"] = len(rec.Signals)
			if rec.Sequence != nil {
				payload["sequence"] = *rec.Sequence
			}
		}
	}

	return models.UnifiedMessage{
		Timestamp:     models.FormatTimestamp(rec.Timestamp),
		SourceVM:      route.Source,
		DestinationVM: route.Destination,
		Protocol:      route.Protocol,
		Type:          route.Type,
		Raw:           models.BuildRaw(route.Protocol, rec.Event, rec.Message),
		Payload:       payload,
	}
}

func putString(p models.Payload, key, value string) {
	if value != "" {
		p[key] = value
	}
}
