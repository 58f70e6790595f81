// Package interchange reads and writes the structured data file: a JSON
// array of UnifiedMessage objects.
package interchange

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/goccy/go-json"
)

var (
	// ErrNotArray is returned when the top-level JSON value is not an array.
	ErrNotArray = errors.New("interchange file must contain a JSON array")
	// ErrNoValidMessages is returned when every record was dropped.
	ErrNoValidMessages = errors.New("no valid UnifiedMessage objects found in file")
)

var requiredStrings = []string{"timestamp", "source_vm", "destination_vm", "protocol", "type", "raw"}

// Result is a decoded file.
type Result struct {
	Messages []models.UnifiedMessage
	// Dropped counts records that lacked a required field.
	Dropped int
}

// Decode parses data, silently dropping records with a missing or empty
// required field.
func Decode(data []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decoding interchange file: %w", err)
	}

	res := &Result{Messages: make([]models.UnifiedMessage, 0, len(raw))}
	for _, item := range raw {
		msg, ok := decodeOne(item)
		if !ok {
			res.Dropped++
			continue
		}
		res.Messages = append(res.Messages, msg)
	}
	if len(res.Messages) == 0 {
		return res, ErrNoValidMessages
	}
	return res, nil
}

// Load reads and decodes r.
func Load(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading interchange file: %w", err)
	}
	return Decode(data)
}

func decodeOne(item json.RawMessage) (models.UnifiedMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return models.UnifiedMessage{}, false
	}
	for _, key := range requiredStrings {
		var s string
		v, ok := fields[key]
		if !ok || json.Unmarshal(v, &s) != nil || s == "" {
			return models.UnifiedMessage{}, false
		}
	}
	if p, ok := fields["payload"]; !ok || bytes.Equal(bytes.TrimSpace(p), []byte("null")) {
		return models.UnifiedMessage{}, false
	}

	var msg models.UnifiedMessage
	if err := json.Unmarshal(item, &msg); err != nil || msg.Payload == nil {
		return models.UnifiedMessage{}, false
	}
	return msg, true
}

// Encode writes msgs as an indented JSON array.
func Encode(w io.Writer, msgs []models.UnifiedMessage) error {
	if msgs == nil {
		msgs = []models.UnifiedMessage{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msgs); err != nil {
		return fmt.Errorf("encoding interchange file: %w", err)
	}
	return nil
}
