package models

// SessionStatus represents the status of a parse session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusParsing  SessionStatus = "parsing"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// ParseSession represents one conversion of a set of uploaded log files.
type ParseSession struct {
	ID               string        `json:"id"`
	FileIDs          []string      `json:"fileIds"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	LineCount        int           `json:"lineCount,omitempty"`
	RecordCount      int           `json:"recordCount,omitempty"`
	MessageCount     int           `json:"messageCount,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	StartTime        int64         `json:"startTime,omitempty"` // Unix ms
	EndTime          int64         `json:"endTime,omitempty"`   // Unix ms
	Errors           []ParseError  `json:"errors,omitempty"`
}

// ParseError is a per-file or per-session failure.
type ParseError struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

// NewParseSession creates a new ParseSession in pending status.
func NewParseSession(id string, fileIDs []string) *ParseSession {
	return &ParseSession{
		ID:      id,
		FileIDs: fileIDs,
		Status:  SessionStatusPending,
		Errors:  make([]ParseError, 0),
	}
}
