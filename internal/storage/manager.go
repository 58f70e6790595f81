// Package storage keeps uploaded log, interchange and suites files on local
// disk, with their metadata in a JSON index next to them.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrFileNotFound is returned for an unknown file ID.
var ErrFileNotFound = errors.New("file not found")

// indexName is the metadata file inside the upload directory.
const indexName = "index.json"

// Store defines the interface for uploaded file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	SetStatus(id string, status models.FileStatus) error
	GetFilePath(id string) (string, error)
}

// LocalStore implements Store using the local filesystem. Metadata survives
// restarts through the index file.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore opens uploadDir, creating it when needed, and reloads the
// index. Entries whose content is gone are dropped; parses interrupted by a
// restart go back to uploaded.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.uploadDir, indexName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file index: %w", err)
	}

	var entries []*models.FileInfo
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decoding file index: %w", err)
	}

	log := logging.WithComponent("storage")
	for _, info := range entries {
		if info == nil || info.ID == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.uploadDir, info.ID)); err != nil {
			log.Warn().Str("file_id", info.ID).Msg("dropping index entry without content")
			continue
		}
		if info.Status == models.FileStatusParsing {
			info.Status = models.FileStatusUploaded
		}
		s.files[info.ID] = info
	}
	log.Debug().Int("files", len(s.files)).Msg("file index loaded")
	return nil
}

// persistLocked rewrites the index. Callers hold mu.
func (s *LocalStore) persistLocked() error {
	entries := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		entries = append(entries, info)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UploadedAt.Before(entries[j].UploadedAt)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding file index: %w", err)
	}

	tmp := filepath.Join(s.uploadDir, indexName+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing file index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.uploadDir, indexName)); err != nil {
		return fmt.Errorf("replacing file index: %w", err)
	}
	return nil
}

// Save writes r under a new ID and classifies it.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	var head headWriter
	size, err := io.Copy(f, io.TeeReader(r, &head))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	kind, compressed := DetectKind(name, head.buf)
	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		Kind:       kind,
		Compressed: compressed,
		UploadedAt: time.Now(),
		Status:     models.FileStatusUploaded,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	if err := s.persistLocked(); err != nil {
		delete(s.files, id)
		os.Remove(path)
		return nil, err
	}

	copied := *info
	return &copied, nil
}

// Get retrieves a copy of the file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	copied := *info
	return &copied, nil
}

// List returns up to limit files, most recent first. A limit of zero or less
// returns everything.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		copied := *info
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a file and its metadata.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	if err := os.Remove(filepath.Join(s.uploadDir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return s.persistLocked()
}

// Rename changes the display name. The kind stays what was sniffed on save.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	return s.update(id, func(info *models.FileInfo) { info.Name = newName })
}

// SetStatus records what happened to a file.
func (s *LocalStore) SetStatus(id string, status models.FileStatus) error {
	_, err := s.update(id, func(info *models.FileInfo) { info.Status = status })
	return err
}

func (s *LocalStore) update(id string, fn func(*models.FileInfo)) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	fn(info)
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	copied := *info
	return &copied, nil
}

// GetFilePath returns the on-disk path of a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return filepath.Join(s.uploadDir, id), nil
}

// Sources resolves file IDs to loader sources, keeping the given order.
// Each source reports the file's display name.
func Sources(s Store, ids []string) ([]loader.Source, error) {
	sources := make([]loader.Source, 0, len(ids))
	for _, id := range ids {
		info, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		path, err := s.GetFilePath(id)
		if err != nil {
			return nil, err
		}
		sources = append(sources, loader.File(path, info.Name))
	}
	return sources, nil
}
