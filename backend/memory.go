package backend

import (
	"sort"
	"sync"
)

type memoryKey struct {
	service     string
	account     string
	accessGroup string
}

type memoryEntry struct {
	data       []byte
	accessible Accessible
}

// Memory is an in-memory Backend for tests and platforms without a native
// store. Entries do not survive the process.
type Memory struct {
	mu      sync.RWMutex
	entries map[memoryKey]memoryEntry
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{entries: make(map[memoryKey]memoryEntry)}
}

func (m *Memory) key(q Query) memoryKey {
	return memoryKey{service: q.Service, account: q.Account, accessGroup: q.AccessGroup}
}

func (m *Memory) Add(q Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(q)
	if _, ok := m.entries[k]; ok {
		return StatusDuplicateItem
	}
	m.entries[k] = memoryEntry{data: cloneBytes(q.Data), accessible: q.Accessible}
	return nil
}

func (m *Memory) Update(q Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(q)
	if _, ok := m.entries[k]; !ok {
		return StatusItemNotFound
	}
	m.entries[k] = memoryEntry{data: cloneBytes(q.Data), accessible: q.Accessible}
	return nil
}

func (m *Memory) Get(q Query) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[m.key(q)]
	if !ok {
		return nil, StatusItemNotFound
	}
	return cloneBytes(entry.data), nil
}

func (m *Memory) Remove(q Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(q)
	if _, ok := m.entries[k]; !ok {
		return StatusItemNotFound
	}
	delete(m.entries, k)
	return nil
}

func (m *Memory) Accounts(service, accessGroup string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	for k := range m.entries {
		if k.service != service {
			continue
		}
		if accessGroup != "" && k.accessGroup != accessGroup {
			continue
		}
		seen[k.account] = true
	}
	accounts := make([]string, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() error { return nil }

// Accessible returns the accessibility recorded for an entry, for tests that
// check default resolution. The second result is false when the entry does
// not exist.
func (m *Memory) Accessible(q Query) (Accessible, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[m.key(q)]
	return entry.accessible, ok
}

// cloneBytes copies a payload so callers and the store never share a slice.
// A non-nil empty slice is preserved as empty, not nil.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
