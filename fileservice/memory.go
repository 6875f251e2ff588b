package fileservice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

type memoryFile struct {
	name     string
	parentID string
	payload  []byte
	modified time.Time
}

// Memory is an in-process Service backed by a map, the standard test/CLI
// stand-in for an object store (mirrors the JSON-catalog-in-a-map shape
// bundoc/metadata.go uses for its own local persistence, see DESIGN.md).
type Memory struct {
	mu    sync.RWMutex
	files map[string]*memoryFile
}

// NewMemory returns an empty Memory file service.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]*memoryFile)}
}

func (m *Memory) Create(_ context.Context, name string, payload []byte, parentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.files[id] = &memoryFile{
		name:     name,
		parentID: parentID,
		payload:  append([]byte{}, payload...),
		modified: time.Now(),
	}
	return id, nil
}

func (m *Memory) Read(_ context.Context, fileID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[fileID]
	if !ok {
		return nil, gasdberr.NewError(gasdberr.FileNotFound, "fileservice.Read", "no file with id '"+fileID+"'", nil)
	}
	return append([]byte{}, f.payload...), nil
}

func (m *Memory) Write(_ context.Context, fileID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[fileID]
	if !ok {
		return gasdberr.NewError(gasdberr.FileNotFound, "fileservice.Write", "no file with id '"+fileID+"'", nil)
	}
	f.payload = append([]byte{}, payload...)
	f.modified = time.Now()
	return nil
}

func (m *Memory) Delete(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileID)
	return nil
}

func (m *Memory) Exists(_ context.Context, fileID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[fileID]
	return ok, nil
}

func (m *Memory) Metadata(_ context.Context, fileID string) (Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[fileID]
	if !ok {
		return Metadata{}, gasdberr.NewError(gasdberr.FileNotFound, "fileservice.Metadata", "no file with id '"+fileID+"'", nil)
	}
	return Metadata{ID: fileID, Name: f.name, ModifiedTime: f.modified}, nil
}
