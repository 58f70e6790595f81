// Package kpi extracts boot milestones from raw log text and evaluates them
// against timing targets.
package kpi

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ecu-analyzer/backend/internal/models"
)

const (
	wordHeaderFmt  = "--- Log lines containing the word: '%s' ---"
	regexHeaderFmt = "--- Log lines matching regex pattern: '%s' ---"
	footerFmt      = "--- End of search for: '%s' ---"
	footerPrefix   = "--- End of search for:"
)

var headerRegex = regexp.MustCompile(`--- Log lines (containing the word|matching regex pattern): '(.+?)' ---`)

// Block is the set of lines found for one label.
type Block struct {
	Label string
	// Regex is set when Label is a full pattern rather than a keyword.
	Regex bool
	Lines []string
}

// Extract collects, for each keyword, every trimmed line that contains it as
// a case-insensitive whole word. A line may land in several blocks. Keywords
// with no matching line produce no block.
func Extract(text string, keywords []string) []Block {
	lines := splitTrimmed(text)
	var blocks []Block
	seen := make(map[string]bool, len(keywords))

	for _, kw := range keywords {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true

		re := keywordRegex(kw)
		if b := collect(lines, kw, false, re.MatchString); len(b.Lines) > 0 {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// ExtractDefinitions extracts by each definition's keyword, falling back to
// its full pattern when no keyword is set.
func ExtractDefinitions(text string, defs []models.KPIDefinition) []Block {
	lines := splitTrimmed(text)
	var blocks []Block
	seen := make(map[string]bool, len(defs))

	for _, def := range defs {
		label, regex := def.Keyword, false
		if label == "" {
			label, regex = def.Pattern, true
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true

		var match func(string) bool
		if regex {
			re, err := compilePattern(def.Pattern)
			if err != nil {
				continue
			}
			match = re.matches
		} else {
			match = keywordRegex(label).MatchString
		}
		if b := collect(lines, label, regex, match); len(b.Lines) > 0 {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func collect(lines []string, label string, regex bool, match func(string) bool) Block {
	b := Block{Label: label, Regex: regex}
	for _, line := range lines {
		if match(line) {
			b.Lines = append(b.Lines, line)
		}
	}
	return b
}

// keywordRegex matches kw literally. Word boundaries are only asserted at
// ends of kw that are word characters, so "started!" still matches.
func keywordRegex(kw string) *regexp.Regexp {
	expr := regexp.QuoteMeta(kw)
	if isWordByte(kw[0]) {
		expr = `\b` + expr
	}
	if isWordByte(kw[len(kw)-1]) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func splitTrimmed(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		out = append(out, strings.TrimSpace(line))
	}
	return out
}

// FormatBlocks renders blocks in the labeled text form.
func FormatBlocks(blocks []Block) string {
	parts := make([]string, 0, len(blocks)*3)
	for _, b := range blocks {
		header := wordHeaderFmt
		if b.Regex {
			header = regexHeaderFmt
		}
		parts = append(parts, fmt.Sprintf(header, b.Label))
		parts = append(parts, b.Lines...)
		parts = append(parts, fmt.Sprintf(footerFmt, b.Label)+"\n")
	}
	return strings.Join(parts, "\n")
}

// ParseBlocks reads the labeled text form back. Lines outside a block are
// ignored, as are blank lines.
func ParseBlocks(text string) []Block {
	var blocks []Block
	current := -1

	for _, line := range splitTrimmed(text) {
		if line == "" {
			continue
		}
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, Block{Label: m[2], Regex: m[1] == "matching regex pattern"})
			current = len(blocks) - 1
			continue
		}
		if strings.HasPrefix(line, footerPrefix) {
			current = -1
			continue
		}
		if current >= 0 {
			blocks[current].Lines = append(blocks[current].Lines, line)
		}
	}
	return blocks
}
