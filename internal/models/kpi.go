package models

// KPIDefinition describes one boot milestone to check.
type KPIDefinition struct {
	Name string `json:"name" yaml:"name"`
	// Pattern is the full, case-insensitive regular expression.
	Pattern string `json:"pattern" yaml:"pattern"`
	// Keyword is the simplified literal used to pre-filter lines.
	Keyword string `json:"simplifiedPattern,omitempty" yaml:"keyword,omitempty"`
	// Target is seconds; a non-numeric target means a presence check.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// ShouldFail defaults to true when omitted.
	ShouldFail *bool `json:"shouldFail,omitempty" yaml:"should_fail,omitempty"`
	// OnlyFirst samples the first matching line instead of the earliest
	// timestamp among all matches.
	OnlyFirst *bool `json:"onlyFirst,omitempty" yaml:"only_first,omitempty"`
}

// PenalizesOccurrence reports the effective shouldFail polarity.
func (d KPIDefinition) PenalizesOccurrence() bool {
	return d.ShouldFail == nil || *d.ShouldFail
}

// TargetOrNA is the target as shown before any evaluation.
func (d KPIDefinition) TargetOrNA() string {
	if d.Target == "" {
		return "N/A"
	}
	return d.Target
}

// DisplayName falls back to the keyword when no name was given.
func (d KPIDefinition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Keyword != "" {
		return d.Keyword
	}
	return "Unnamed KPI"
}

// KPIState is the outcome of a KPI check.
type KPIState string

const (
	KPIPass    KPIState = "pass"
	KPIFail    KPIState = "fail"
	KPIPending KPIState = "pending"
	KPIUnknown KPIState = "unknown"
)

// KPIStatus is the evaluated result for one definition.
type KPIStatus struct {
	Name        string   `json:"name" msgpack:"name"`
	Status      KPIState `json:"status" msgpack:"status"`
	ActualValue string   `json:"actualValue,omitempty" msgpack:"actualValue,omitempty"`
	TargetValue string   `json:"targetValue,omitempty" msgpack:"targetValue,omitempty"`
	LastChecked string   `json:"lastChecked" msgpack:"lastChecked"`
	Reason      string   `json:"reason,omitempty" msgpack:"reason,omitempty"`
}
