// Package models contains domain types for the ECU communication analyzer.
package models

import "time"

// Component identifies the subsystem that emitted a log line.
type Component string

const (
	ComponentBootManager        Component = "BootManager"
	ComponentMCU                Component = "MCU"
	ComponentMCUMgrTranslator   Component = "MCUMgrTranslator"
	ComponentOEMPMMsgTranslator Component = "OEMPMMsgTranslator"
	ComponentCSomeIpProcessor   Component = "CSomeIpProcessor"
	ComponentLA                 Component = "LA"
	ComponentLA1                Component = "LA1"
)

// ParsedRecord is one classified log line before normalization.
type ParsedRecord struct {
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
	Component  Component `json:"component" msgpack:"component"`
	LineNumber int       `json:"lineNumber" msgpack:"lineNumber"`
	Event      string    `json:"event" msgpack:"event"`
	Message    string    `json:"message" msgpack:"message"`

	// Signal-bearing MCU lines only. Signals always holds every tracked name.
	Signals map[string]int `json:"signals,omitempty" msgpack:"signals,omitempty"`
	Changes []string       `json:"changes,omitempty" msgpack:"changes,omitempty"`

	Routing  string `json:"routing,omitempty" msgpack:"routing,omitempty"`
	Duration string `json:"duration,omitempty" msgpack:"duration,omitempty"`
	Priority string `json:"priority,omitempty" msgpack:"priority,omitempty"`
	Sequence *int   `json:"sequence,omitempty" msgpack:"sequence,omitempty"`

	// Location tag of the structured component format ("[file: line]").
	SourceFile string `json:"sourceFile,omitempty" msgpack:"sourceFile,omitempty"`
	SourceLine int    `json:"sourceLine,omitempty" msgpack:"sourceLine,omitempty"`
}

// HasSignals reports whether the record carries a signal vector.
func (r *ParsedRecord) HasSignals() bool {
	return r.Signals != nil
}
