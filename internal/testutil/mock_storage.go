// Package testutil holds test doubles shared by handler tests.
package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/storage"
)

// MockStorage is an in-memory storage.Store. Contents still go to a temp
// directory so the loader can read them back by path.
type MockStorage struct {
	mu     sync.RWMutex
	files  map[string]*models.FileInfo
	dir    string
	nextID atomic.Int64
	clock  time.Time

	// SaveErr, when set, makes Save fail.
	SaveErr error
}

var _ storage.Store = (*MockStorage)(nil)

// NewMockStorage creates a mock storage writing under dir.
func NewMockStorage(dir string) *MockStorage {
	return &MockStorage{
		files: make(map[string]*models.FileInfo),
		dir:   dir,
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.AddFile(fmt.Sprintf("test-id-%d", m.nextID.Add(1)), name, data), nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	copied := *info
	return &copied, nil
}

// List orders by upload time, newest first, like the real store.
func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(m.files))
	for _, info := range m.files {
		copied := *info
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UploadedAt.After(list[j].UploadedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(id); err != nil {
		return err
	}
	os.Remove(filepath.Join(m.dir, id))
	delete(m.files, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	info.Name = newName
	copied := *info
	return &copied, nil
}

func (m *MockStorage) SetStatus(id string, status models.FileStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, err := m.lookup(id)
	if err != nil {
		return err
	}
	info.Status = status
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.lookup(id); err != nil {
		return "", err
	}
	return filepath.Join(m.dir, id), nil
}

// lookup expects mu to be held.
func (m *MockStorage) lookup(id string) (*models.FileInfo, error) {
	info, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrFileNotFound, id)
	}
	return info, nil
}

// AddFile stores data under id. Each call is stamped one second after the
// previous one so List order is deterministic.
func (m *MockStorage) AddFile(id string, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.WriteFile(filepath.Join(m.dir, id), data, 0644); err != nil {
		panic(fmt.Sprintf("failed to write test file: %v", err))
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	kind, compressed := storage.DetectKind(name, head)

	m.clock = m.clock.Add(time.Second)
	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		Kind:       kind,
		Compressed: compressed,
		UploadedAt: m.clock,
		Status:     models.FileStatusUploaded,
	}
	m.files[id] = info
	copied := *info
	return &copied
}

// FileCount returns the number of stored files.
func (m *MockStorage) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
