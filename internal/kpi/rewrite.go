package kpi

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// microsRegex finds an existing "<n>[us]" marker.
	microsRegex = regexp.MustCompile(`(\d+)\[us\]`)

	// leadingStampRegex is "MM-DD HH:MM:SS.f" with 3 to 6 fraction digits.
	leadingStampRegex = regexp.MustCompile(`^\d{2}-\d{2}\s+(\d{2}):(\d{2}):(\d{2})\.(\d{3,6})`)
)

// Rewrite replaces leading wall-clock stamps with a microsecond count. Labels
// are kept, so several definitions sharing a keyword still share its block.
// Lines that already carry a marker, or have no leading stamp, pass through
// unchanged.
func Rewrite(blocks []Block) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		nb := Block{Label: b.Label, Regex: b.Regex, Lines: make([]string, 0, len(b.Lines))}
		for _, line := range b.Lines {
			nb.Lines = append(nb.Lines, RewriteLine(line))
		}
		out = append(out, nb)
	}
	return out
}

// RewriteLine converts one line's leading stamp to "<micros>[us]".
func RewriteLine(line string) string {
	if microsRegex.MatchString(line) {
		return line
	}
	loc := leadingStampRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}

	h, _ := strconv.ParseInt(line[loc[2]:loc[3]], 10, 64)
	m, _ := strconv.ParseInt(line[loc[4]:loc[5]], 10, 64)
	s, _ := strconv.ParseInt(line[loc[6]:loc[7]], 10, 64)
	frac := line[loc[8]:loc[9]]
	frac += strings.Repeat("0", 6-len(frac))
	f, _ := strconv.ParseInt(frac, 10, 64)

	micros := (h*3600+m*60+s)*1_000_000 + f
	return strconv.FormatInt(micros, 10) + "[us]" + line[loc[1]:]
}

// Micros returns the "<n>[us]" value carried by line.
func Micros(line string) (int64, bool) {
	m := microsRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
