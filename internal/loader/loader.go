// Package loader reads batches of log files concurrently. A failing file
// never aborts the rest of its batch.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/metrics"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyOrInvalidInputFile is wrapped by every per-file failure.
	ErrEmptyOrInvalidInputFile = errors.New("empty or invalid input file")
	// ErrUnsupportedFileType is returned for extensions outside the allow-list.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrNoReadableFiles means every file of the batch failed.
	ErrNoReadableFiles = errors.New("no readable files in batch")
)

// DefaultConcurrency bounds parallel reads.
const DefaultConcurrency = 4

var gzipMagic = []byte{0x1f, 0x8b}

// FileError reports a failure isolated to one file.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Source is one input file.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type fileSource struct {
	name string
	path string
}

// File returns a Source for a path on disk. name is what reports show; it
// defaults to the base name of path.
func File(path, name string) Source {
	if name == "" {
		name = filepath.Base(path)
	}
	return &fileSource{name: name, path: path}
}

func (s *fileSource) Name() string { return s.name }

func (s *fileSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

type bytesSource struct {
	name string
	data []byte
}

// Bytes returns a Source over in-memory content.
func Bytes(name string, data []byte) Source {
	return &bytesSource{name: name, data: data}
}

func (s *bytesSource) Name() string { return s.name }

func (s *bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// Result is the outcome for one file, in caller order.
type Result struct {
	Name    string
	Content string
	Err     error
}

// Batch holds per-file results in the order the sources were given.
type Batch struct {
	Files []Result
}

// Text joins the contents of the successful files with "\n", in caller order.
func (b *Batch) Text() string {
	parts := make([]string, 0, len(b.Files))
	for _, f := range b.Files {
		if f.Err == nil {
			parts = append(parts, f.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Errors returns the per-file failures.
func (b *Batch) Errors() []*FileError {
	var errs []*FileError
	for _, f := range b.Files {
		var fe *FileError
		if errors.As(f.Err, &fe) {
			errs = append(errs, fe)
		}
	}
	return errs
}

// Succeeded counts files that were read.
func (b *Batch) Succeeded() int {
	n := 0
	for _, f := range b.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Options tunes a Reader.
type Options struct {
	// Extensions is the allow-list of lower-case extensions (".txt"). Empty
	// allows everything.
	Extensions  []string
	Concurrency int
}

// Reader reads batches of sources.
type Reader struct {
	opts Options
}

// NewReader creates a Reader.
func NewReader(opts Options) *Reader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Reader{opts: opts}
}

// Read loads every source concurrently. It only fails as a whole when ctx is
// cancelled or when no file could be read.
func (r *Reader) Read(ctx context.Context, sources []Source) (*Batch, error) {
	log := logging.WithComponent("loader")
	batch := &Batch{Files: make([]Result, len(sources))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := r.readOne(src)
			batch.Files[i] = Result{Name: src.Name(), Content: content}
			if err != nil {
				metrics.FileReadErrors.Inc()
				log.Warn().Str("file", src.Name()).Err(err).Msg("skipping file")
				batch.Files[i].Err = &FileError{Name: src.Name(), Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reading files: %w", err)
	}

	if len(sources) > 0 && batch.Succeeded() == 0 {
		return batch, ErrNoReadableFiles
	}
	return batch, nil
}

func (r *Reader) readOne(src Source) (string, error) {
	if !r.allowed(src.Name()) {
		return "", fmt.Errorf("%w: %w: %s", ErrEmptyOrInvalidInputFile, ErrUnsupportedFileType, filepath.Ext(src.Name()))
	}

	rc, err := src.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmptyOrInvalidInputFile, err)
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	var in io.Reader = br
	if head, _ := br.Peek(2); bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("%w: opening gzip stream: %v", ErrEmptyOrInvalidInputFile, err)
		}
		defer zr.Close()
		in = zr
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmptyOrInvalidInputFile, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("%w: empty content in file: %s", ErrEmptyOrInvalidInputFile, src.Name())
	}
	return string(data), nil
}

func (r *Reader) allowed(name string) bool {
	if len(r.opts.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range r.opts.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// ParseExtensions splits a comma-separated allow-list such as ".txt,.log".
func ParseExtensions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, strings.ToLower(part))
	}
	return out
}
