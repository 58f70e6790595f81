package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/signal"
)

const (
	EventWakeupLineStat  = "WAKEUP_LINE_STAT"
	EventSignalChange    = "SIGNAL_CHANGE"
	EventSignalState     = "SIGNAL_STATE"
	EventStartSoCCommReq = "START_SOC_COMM_REQ"
	EventPMEventResp     = "PM_EVENT_RESP"
	EventAliveMsg        = "ALIVE_MSG"

	defaultDuration = "0 ms"
)

// mcuPrefix captures "<NN-[NN ]HH:MM:SS.mmm> PO <HI|MD|LO>".
const mcuPrefix = `(\d{2}-(?:\d{2}\s+)?\d{2}:\d{2}:\d{2}\.\d{3})\s+PO\s+(HI|MD|LO)\s+`

var (
	wakeupRegex     = regexp.MustCompile(mcuPrefix + `pmCpuIf_EventNotifyWakeupLineStat:\s+([0-9A-Fa-f\s]+)$`)
	signalRegex     = regexp.MustCompile(mcuPrefix + `(?:\[PM\]|\[(\d+\s+to\s+\d+)\])\s+([A-Za-z0-9_()\s]+?)(?:\s+(\d+\s+ms))?$`)
	hvpmRegex       = regexp.MustCompile(mcuPrefix + `HVPM_ProcControlCmd:\s+(.+?)(?:\s+(\d+\s+ms))?$`)
	responseRegex   = regexp.MustCompile(mcuPrefix + `Response of PM EventCmd:\s+([0-9A-Fa-f\s]+)$`)
	signalPairRegex = regexp.MustCompile(`(\w+)\((\d+)\)`)
)

// MCUClassifier claims the microcontroller's power-management trace lines.
type MCUClassifier struct {
	maxValue int
}

// NewMCUClassifier creates a classifier accepting signal values 0..maxValue.
func NewMCUClassifier(maxValue int) *MCUClassifier {
	return &MCUClassifier{maxValue: maxValue}
}

func (c *MCUClassifier) Name() string { return "mcu" }

func (c *MCUClassifier) Classify(line string) (Match, bool) {
	if sm := wakeupRegex.FindStringSubmatch(line); sm != nil {
		bytes := strings.TrimSpace(sm[3])
		return c.match(sm, EventWakeupLineStat, "pmCpuIf_EventNotifyWakeupLineStat: "+bytes, defaultDuration), true
	}
	if sm := signalRegex.FindStringSubmatch(line); sm != nil {
		return c.signalMatch(sm), true
	}
	if sm := hvpmRegex.FindStringSubmatch(line); sm != nil {
		return c.match(sm, EventStartSoCCommReq, "HVPM_ProcControlCmd: "+strings.TrimSpace(sm[3]), durationOr(sm[4])), true
	}
	if sm := responseRegex.FindStringSubmatch(line); sm != nil {
		return c.match(sm, EventPMEventResp, "Response of PM EventCmd: "+strings.TrimSpace(sm[3]), ""), true
	}
	return Match{}, false
}

func (c *MCUClassifier) match(sm []string, event, message, duration string) Match {
	return Match{
		Stamp:     sm[1],
		StampKind: StampPrefix,
		Component: models.ComponentMCU,
		Event:     event,
		Message:   message,
		Routing:   signal.DefaultRoute,
		Duration:  duration,
		Priority:  sm[2],
	}
}

func (c *MCUClassifier) signalMatch(sm []string) Match {
	route := signal.DefaultRoute
	if sm[3] != "" {
		route = strings.Join(strings.Fields(sm[3]), " ")
	}
	dump := strings.TrimSpace(sm[4])

	m := c.match(sm, EventSignalState, dump, durationOr(sm[5]))
	m.Routing = route
	m.SignalDump = true
	m.Signals = make(map[string]int)

	for _, pair := range signalPairRegex.FindAllStringSubmatch(dump, -1) {
		name := pair[1]
		if !signal.IsTracked(name) {
			continue
		}
		v, err := strconv.Atoi(pair[2])
		if err != nil || v < 0 || v > c.maxValue {
			m.Rejected = append(m.Rejected, fmt.Sprintf("%s(%s)", name, pair[2]))
			continue
		}
		m.Signals[name] = v
	}
	return m
}

func durationOr(d string) string {
	if d == "" {
		return defaultDuration
	}
	return strings.Join(strings.Fields(d), " ")
}
