package models

import "time"

// FileStatus tracks what has been done with an uploaded log file.
type FileStatus string

const (
	FileStatusUploaded FileStatus = "uploaded"
	FileStatusParsing  FileStatus = "parsing"
	FileStatusParsed   FileStatus = "parsed"
	FileStatusError    FileStatus = "error"
)

// FileKind is what an upload holds, sniffed when it is stored.
type FileKind string

const (
	// FileKindLog is raw ECU console text.
	FileKindLog FileKind = "log"
	// FileKindInterchange is a JSON array of UnifiedMessages.
	FileKindInterchange FileKind = "interchange"
	// FileKindSuites is a YAML KPI suites document.
	FileKindSuites FileKind = "suites"
)

// FileInfo represents metadata about an uploaded log or interchange file.
type FileInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	Kind       FileKind   `json:"kind"`
	Compressed bool       `json:"compressed,omitempty"`
	UploadedAt time.Time  `json:"uploadedAt"`
	Status     FileStatus `json:"status"`
}
