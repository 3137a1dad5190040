package lockbox

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lockbox-sh/lockbox/backend"
)

// gateway wraps a Backend behind a single reader-writer exclusion domain.
// Reads share the lock; writes and removals hold it exclusively, so the
// add-then-update fallback and the check-then-write sequences inside adapters
// can never interleave with another writer.
//
// The store-wide default accessibility lives here and is resolved into each
// write query under the same lock.
type gateway struct {
	mu         sync.RWMutex
	backend    backend.Backend
	accessible backend.Accessible
	logger     *slog.Logger
}

func newGateway(b backend.Backend, accessible backend.Accessible, logger *slog.Logger) *gateway {
	return &gateway{backend: b, accessible: accessible, logger: logger}
}

// resolveLocked fills the store default into a write query that carries no
// per-item accessibility. Caller must hold mu.
func (g *gateway) resolveLocked(q backend.Query) backend.Query {
	if q.Accessible == backend.AccessibleDefault {
		q.Accessible = g.accessible
	}
	return q
}

// put stores a payload under a key that may or may not exist yet. A duplicate
// is not a failure: the entry is updated in place with the same bytes.
func (g *gateway) put(q backend.Query) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	q = g.resolveLocked(q)
	err := g.backend.Add(q)
	if errors.Is(err, backend.StatusDuplicateItem) {
		g.logger.Debug("item exists, updating in place",
			"service", q.Service, "account", q.Account)
		if err := g.backend.Update(q); err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("adding item: %w", err)
	}
	return nil
}

// update overwrites the payload at an existing key. Unlike put it never
// creates: a missing entry is a failure carrying StatusItemNotFound.
func (g *gateway) update(q backend.Query) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	q = g.resolveLocked(q)
	if err := g.backend.Update(q); err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// get returns the stored payload. Absence is not an error at this layer:
// found is false and err is nil.
func (g *gateway) get(q backend.Query) (data []byte, found bool, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	data, err = g.backend.Get(q)
	if err != nil {
		if errors.Is(err, backend.StatusItemNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading item: %w", err)
	}
	return data, true, nil
}

// remove deletes an entry. Absence surfaces as ErrNotFound so the caller can
// translate it into a non-failure outcome.
func (g *gateway) remove(q backend.Query) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.backend.Remove(q); err != nil {
		if errors.Is(err, backend.StatusItemNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, q.Service, q.Account)
		}
		return fmt.Errorf("removing item: %w", err)
	}
	return nil
}

// accounts lists the accounts stored under a service.
func (g *gateway) accounts(service, accessGroup string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	accounts, err := g.backend.Accounts(service, accessGroup)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return accounts, nil
}

func (g *gateway) setAccessible(a backend.Accessible) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accessible = a
}

func (g *gateway) defaultAccessible() backend.Accessible {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.accessible
}
