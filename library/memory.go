package library

import (
	"context"
	"sync"
)

// MemoryKV is an in-process KV. Nothing survives Close.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]Entry)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{Value: append([]byte(nil), e.Value...), Version: e.Version}, true, nil
}

func (m *MemoryKV) Apply(_ context.Context, writes ...Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		if w.IfVersion != AnyVersion && m.entries[w.Key].Version != w.IfVersion {
			return ErrVersionMismatch
		}
	}
	for _, w := range writes {
		if w.Delete {
			delete(m.entries, w.Key)
			continue
		}
		m.entries[w.Key] = Entry{
			Value:   append([]byte(nil), w.Value...),
			Version: m.entries[w.Key].Version + 1,
		}
	}
	return nil
}

func (m *MemoryKV) Close() error { return nil }
