package storage

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/ecu-analyzer/backend/internal/models"
)

// sniffSize is how much of an upload DetectKind looks at.
const sniffSize = 512

var gzipMagic = []byte{0x1f, 0x8b}

// DetectKind classifies an upload from its name and first bytes. Compressed
// uploads are classified by the name without the .gz suffix.
func DetectKind(name string, head []byte) (models.FileKind, bool) {
	compressed := bytes.HasPrefix(head, gzipMagic)

	lower := strings.ToLower(name)
	if compressed || strings.HasSuffix(lower, ".gz") {
		lower = strings.TrimSuffix(lower, ".gz")
	}

	switch filepath.Ext(lower) {
	case ".yaml", ".yml":
		return models.FileKindSuites, compressed
	case ".json":
		return models.FileKindInterchange, compressed
	}

	if !compressed {
		if t := bytes.TrimLeft(head, " \t\r\n\ufeff"); len(t) > 0 && t[0] == '[' && looksLikeJSONArray(t) {
			return models.FileKindInterchange, false
		}
	}
	return models.FileKindLog, compressed
}

// looksLikeJSONArray separates "[{" and "[]" from log lines that open with a
// bracketed tag such as "[PM]".
func looksLikeJSONArray(t []byte) bool {
	rest := bytes.TrimLeft(t[1:], " \t\r\n")
	return len(rest) == 0 || rest[0] == '{' || rest[0] == ']'
}

// headWriter keeps the first sniffSize bytes written through it.
type headWriter struct {
	buf []byte
}

func (w *headWriter) Write(p []byte) (int, error) {
	if room := sniffSize - len(w.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		w.buf = append(w.buf, p[:room]...)
	}
	return len(p), nil
}
