package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ecu-analyzer/backend/internal/models"
)

const (
	EventUnknown        = "UNKNOWN"
	EventPowerStatusLA  = "POWER_STATUS_LA"
	EventPowerStatusLA1 = "POWER_STATUS_LA1"
)

var (
	// <Mon D HH:MM:SS.mmm> oem_pm.<n> oem_pm <n> oem_pm[<file>: <line>]: <message>
	structuredRegex   = regexp.MustCompile(`(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\.\d{3})\s+oem_pm\.\d+\s+oem_pm\s+\d+\s+oem_pm\[(.*?):\s*(\d+)\]:\s*(.+)`)
	bracketEventRegex = regexp.MustCompile(`\[([A-Z_]+)\]`)
	someIPEventRegex  = regexp.MustCompile(`CSomeIpProcessor\s+(sendSafeModeEvents|ePowerMode|eSleepOrder)`)
)

// sourceRule maps one emitting source file onto a component.
type sourceRule func(message string) (models.Component, string, bool)

var sourceRules = map[string]sourceRule{
	"MCUMgrTranslator.cpp":   translatorRule(models.ComponentMCUMgrTranslator),
	"OEMPMMsgTranslator.cpp": translatorRule(models.ComponentOEMPMMsgTranslator),
	"CVMMInf.cpp": func(message string) (models.Component, string, bool) {
		switch {
		case strings.Contains(message, "/la1/"):
			return models.ComponentLA1, EventPowerStatusLA1, true
		case strings.Contains(message, "/la/"):
			return models.ComponentLA, EventPowerStatusLA, true
		}
		return "", "", false
	},
	"CSomeIpProcessor.cpp": func(message string) (models.Component, string, bool) {
		if sm := someIPEventRegex.FindStringSubmatch(message); sm != nil {
			return models.ComponentCSomeIpProcessor, sm[1], true
		}
		return models.ComponentCSomeIpProcessor, EventUnknown, true
	},
}

func translatorRule(c models.Component) sourceRule {
	return func(message string) (models.Component, string, bool) {
		if sm := bracketEventRegex.FindStringSubmatch(message); sm != nil {
			return c, sm[1], true
		}
		return c, EventUnknown, true
	}
}

// StructuredClassifier claims the power-manager component format, which tags
// each line with its emitting source file and line.
type StructuredClassifier struct{}

func NewStructuredClassifier() *StructuredClassifier {
	return &StructuredClassifier{}
}

func (c *StructuredClassifier) Name() string { return "structured" }

func (c *StructuredClassifier) Classify(line string) (Match, bool) {
	sm := structuredRegex.FindStringSubmatch(line)
	if sm == nil {
		return Match{}, false
	}
	file := strings.TrimSpace(sm[2])
	srcLine, _ := strconv.Atoi(sm[3])
	message := strings.TrimSpace(sm[4])

	m := Match{
		Stamp:      sm[1],
		StampKind:  StampMonth,
		Message:    message,
		SourceFile: file,
		SourceLine: srcLine,
	}

	if isGuestRegistration(message) {
		m.Drop = DropSkipped
		m.Detail = "guest registration: " + truncate(message, 50)
		return m, true
	}

	rule, ok := sourceRules[file]
	if !ok {
		m.Drop = DropUnknownComponent
		m.Detail = fmt.Sprintf("unknown source file %s", file)
		return m, true
	}
	comp, event, ok := rule(message)
	if !ok {
		m.Drop = DropUnknownComponent
		m.Detail = fmt.Sprintf("no guest path in %s message", file)
		return m, true
	}
	m.Component = comp
	m.Event = event
	return m, true
}

// isGuestRegistration matches the hypervisor's guest-registration chatter,
// which repeats for every VM start and carries no power state.
func isGuestRegistration(message string) bool {
	if !strings.Contains(message, "vmid for guest") {
		return false
	}
	return strings.Contains(message, "name la ") || strings.Contains(message, "name la1")
}
