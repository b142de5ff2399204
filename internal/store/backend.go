package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Backend reads and writes the serialized document
type Backend interface {
	// Load returns the stored document bytes, or ErrNotFound if nothing has been saved
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored document
	Save(ctx context.Context, data []byte) error

	// Close releases any resources held by the backend
	Close() error
}

// Quarantiner is implemented by backends that can set an undecodable
// document aside so a fresh one can be written in its place
type Quarantiner interface {
	// Quarantine preserves the stored document elsewhere and reports where
	Quarantine(ctx context.Context) (string, error)
}

// FileBackend stores the document as a single JSON file
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend rooted at path
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file location
func (f *FileBackend) Path() string {
	return f.path
}

// Load reads the file
func (f *FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the target,
// so a crash mid-write leaves the previous document intact.
func (f *FileBackend) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

// Quarantine renames the file to <path>.corrupt-<unix seconds>
func (f *FileBackend) Quarantine(_ context.Context) (string, error) {
	dest := fmt.Sprintf("%s.corrupt-%d", f.path, time.Now().Unix())
	if err := os.Rename(f.path, dest); err != nil {
		return "", fmt.Errorf("failed to move %s aside: %w", f.path, err)
	}
	return dest, nil
}

// Close is a no-op for files
func (f *FileBackend) Close() error {
	return nil
}

// MemoryBackend keeps the document in memory. Useful for tests and dry runs.
type MemoryBackend struct {
	mu          sync.Mutex
	data        []byte
	quarantined []byte
	saves       int
	saveErr     error
	loadErr     error
}

// NewMemoryBackend returns a backend seeded with data (may be nil)
func NewMemoryBackend(data []byte) *MemoryBackend {
	return &MemoryBackend{data: data}
}

// FailNextLoad makes the next Load return err
func (m *MemoryBackend) FailNextLoad(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Load returns the last saved bytes
func (m *MemoryBackend) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadErr; err != nil {
		m.loadErr = nil
		return nil, err
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

// FailSaves makes every following Save return err (nil restores normal behavior)
func (m *MemoryBackend) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Save records data unless a failure has been injected
func (m *MemoryBackend) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Data returns the stored bytes
func (m *MemoryBackend) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Quarantine moves the stored bytes aside
func (m *MemoryBackend) Quarantine(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quarantined, m.data = m.data, nil
	return "memory", nil
}

// Quarantined returns the bytes set aside by Quarantine
func (m *MemoryBackend) Quarantined() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.quarantined...)
}

// Saves returns how many successful writes have happened
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op
func (m *MemoryBackend) Close() error {
	return nil
}
