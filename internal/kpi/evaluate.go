package kpi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/ecu-analyzer/backend/internal/metrics"
	"github.com/ecu-analyzer/backend/internal/models"
)

const (
	// LastCheckedNever is shown before the first evaluation.
	LastCheckedNever = "Never"
	lastCheckedFmt   = "15:04:05"
	matchTimeout     = 2 * time.Second
)

type pattern struct {
	re *regexp2.Regexp
}

// compilePattern compiles a definition pattern case-insensitively. regexp2
// supports the look-arounds that suite patterns use.
func compilePattern(expr string) (*pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return &pattern{re: re}, nil
}

func (p *pattern) matches(line string) bool {
	ok, err := p.re.MatchString(line)
	return err == nil && ok
}

// InitialStatuses returns the not-yet-evaluated status of each definition.
func InitialStatuses(defs []models.KPIDefinition) []models.KPIStatus {
	out := make([]models.KPIStatus, len(defs))
	for i, d := range defs {
		out[i] = models.KPIStatus{
			Name:        d.DisplayName(),
			Status:      models.KPIUnknown,
			TargetValue: d.TargetOrNA(),
			LastChecked: LastCheckedNever,
		}
	}
	return out
}

// Evaluate produces exactly one status per definition. A definition reads the
// block labeled with its keyword, or with its full pattern when there is no
// keyword block. Lines should have been through Rewrite.
func Evaluate(blocks []Block, defs []models.KPIDefinition, now time.Time) []models.KPIStatus {
	byLabel := make(map[string][]string, len(blocks))
	for _, b := range blocks {
		byLabel[b.Label] = append(byLabel[b.Label], b.Lines...)
	}

	checked := now.Format(lastCheckedFmt)
	out := make([]models.KPIStatus, 0, len(defs))
	for _, d := range defs {
		st := evaluateOne(d, blockLines(byLabel, d))
		st.LastChecked = checked
		metrics.KPIResults.WithLabelValues(string(st.Status)).Inc()
		out = append(out, st)
	}
	return out
}

func blockLines(byLabel map[string][]string, d models.KPIDefinition) []string {
	if d.Keyword != "" {
		if lines, ok := byLabel[d.Keyword]; ok {
			return lines
		}
	}
	return byLabel[d.Pattern]
}

func evaluateOne(d models.KPIDefinition, lines []string) models.KPIStatus {
	st := models.KPIStatus{Name: d.DisplayName()}

	re, err := compilePattern(d.Pattern)
	if err != nil {
		st.Status = models.KPIUnknown
		st.TargetValue = d.TargetOrNA()
		st.Reason = fmt.Sprintf("Invalid pattern '%s': %v", d.Pattern, err)
		return st
	}

	// With onlyFirst the first matching line in log order is the sample;
	// otherwise the earliest timestamp among all matches.
	onlyFirst := d.OnlyFirst != nil && *d.OnlyFirst
	matches := 0
	var earliest int64
	found := false
	for _, line := range lines {
		if !re.matches(line) {
			continue
		}
		matches++
		if us, ok := Micros(line); ok && (!found || us < earliest) {
			earliest, found = us, true
		}
		if onlyFirst {
			break
		}
	}

	penalize := d.PenalizesOccurrence()
	target, numeric := parseTarget(d.Target)

	switch {
	case numeric && found:
		actual := float64(earliest) / 1e6
		pass := actual <= target
		if penalize {
			pass = actual > target
		}
		st.Status = state(pass)
		st.ActualValue = strconv.FormatFloat(actual, 'f', 6, 64)
		st.TargetValue = d.Target

		verb := "within"
		if penalize == pass {
			verb = "exceeds"
		}
		st.Reason = fmt.Sprintf("Timestamp %ss %s target %ss", st.ActualValue, verb, strconv.FormatFloat(target, 'f', -1, 64))

	case numeric:
		st.Status = state(penalize)
		st.TargetValue = d.Target
		st.Reason = fmt.Sprintf("No timestamp found for '%s'", d.Pattern)

	default:
		st.Status = state((matches > 0) != penalize)
		st.TargetValue = d.TargetOrNA()
		if matches > 0 {
			st.Reason = fmt.Sprintf("Match found for '%s'", d.Pattern)
			if found {
				st.ActualValue = strconv.FormatFloat(float64(earliest)/1e6, 'f', 6, 64)
			}
		} else {
			st.Reason = fmt.Sprintf("No match found for '%s'", d.Pattern)
		}
	}
	return st
}

func parseTarget(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func state(pass bool) models.KPIState {
	if pass {
		return models.KPIPass
	}
	return models.KPIFail
}

// Check runs extraction, rewrite and evaluation over raw log text.
func Check(text string, defs []models.KPIDefinition, now time.Time) []models.KPIStatus {
	blocks := Rewrite(ExtractDefinitions(text, defs))
	return Evaluate(blocks, defs, now)
}
