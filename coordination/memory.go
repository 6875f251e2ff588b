package coordination

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store backed by a map and a single sync.Mutex,
// standing in for the "script-level lock" per spec.md §5 when a real shared
// coordination service isn't available (tests, the cmd/gasdb CLI's
// single-process REPL).
type Memory struct {
	mu         sync.RWMutex
	props      map[string]string
	lockMu     sync.Mutex
	lockTaken  bool
	lockHandle MutexHandle
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{props: make(map[string]string)}
}

func (m *Memory) GetProperty(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.props[key]
	return v, ok, nil
}

func (m *Memory) SetProperty(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[key] = value
	return nil
}

func (m *Memory) DeleteProperty(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.props, key)
	return nil
}

// memoryLockPollInterval is how often TryAcquireProcessMutex re-checks the
// lock while waiting, mirroring Redis's poll loop for the in-memory adapter.
const memoryLockPollInterval = 5 * time.Millisecond

// TryAcquireProcessMutex polls for up to timeoutMs for the lock to free up,
// the same bounded-wait contract Redis's SET NX PX loop implements, so
// goroutines genuinely contending for one Memory store block rather than
// failing immediately.
func (m *Memory) TryAcquireProcessMutex(ctx context.Context, timeoutMs int) (MutexHandle, bool, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	handle := MutexHandle(uuid.NewString())

	for {
		m.lockMu.Lock()
		if !m.lockTaken {
			m.lockTaken = true
			m.lockHandle = handle
			m.lockMu.Unlock()
			return handle, true, nil
		}
		m.lockMu.Unlock()

		if time.Now().After(deadline) {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(memoryLockPollInterval):
		}
	}
}

func (m *Memory) ReleaseProcessMutex(_ context.Context, handle MutexHandle) error {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	if m.lockTaken && m.lockHandle == handle {
		m.lockTaken = false
		m.lockHandle = ""
	}
	return nil
}
