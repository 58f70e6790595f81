package parser

import (
	"regexp"
	"strings"

	"github.com/ecu-analyzer/backend/internal/models"
)

const (
	EventQuickBoot = "QUICK_BOOT"
	EventColdBoot  = "COLD_BOOT"
)

var (
	bootWithTimestampRegex = regexp.MustCompile(`(?i)(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}(?:\.\d{3})?).*?(quick\s*boot|cold\s*boot)`)
	bootMarkerRegex        = regexp.MustCompile(`(?i)(quick\s*boot|cold\s*boot)`)
)

// BootTimestampClassifier claims boot-mode lines that carry a month timestamp.
type BootTimestampClassifier struct{}

func NewBootTimestampClassifier() *BootTimestampClassifier {
	return &BootTimestampClassifier{}
}

func (c *BootTimestampClassifier) Name() string { return "boot_timestamp" }

func (c *BootTimestampClassifier) Classify(line string) (Match, bool) {
	sm := bootWithTimestampRegex.FindStringSubmatch(line)
	if sm == nil {
		return Match{}, false
	}
	return Match{
		Stamp:     sm[1],
		StampKind: StampMonth,
		Component: models.ComponentBootManager,
		Event:     bootEvent(sm[2]),
		Message:   strings.TrimSpace(line),
	}, true
}

// BootClassifier claims boot-mode lines without a timestamp.
type BootClassifier struct{}

func NewBootClassifier() *BootClassifier {
	return &BootClassifier{}
}

func (c *BootClassifier) Name() string { return "boot" }

func (c *BootClassifier) Classify(line string) (Match, bool) {
	sm := bootMarkerRegex.FindStringSubmatch(line)
	if sm == nil {
		return Match{}, false
	}
	return Match{
		StampKind: StampNone,
		Component: models.ComponentBootManager,
		Event:     bootEvent(sm[1]),
		Message:   strings.TrimSpace(line),
	}, true
}

func bootEvent(marker string) string {
	if strings.HasPrefix(strings.ToLower(marker), "quick") {
		return EventQuickBoot
	}
	return EventColdBoot
}
