// Package lockbox provides a concurrency-safe facade over a platform secret
// store: the macOS Keychain, the Windows Credential Manager, an OS keyring,
// an encrypted file, or SQLite (see package backend).
//
// Secrets are JSON-encoded values keyed by service and account, optionally
// scoped to an access group. Every operation has a blocking form and a
// context-aware form; both validate parameters before touching storage and
// return the same structured outcome. Saving an existing key updates it in
// place, and deleting a missing key reports false rather than failing.
package lockbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lockbox-sh/lockbox/backend"
)

// Store is a secret store bound to one backend. Construct it once with New
// and pass it around; all methods are safe for concurrent use from any
// goroutine.
type Store struct {
	backend    backend.Backend
	logger     *slog.Logger
	accessible backend.Accessible
	gw         *gateway
}

// Option configures a Store at construction.
type Option func(*Store)

// WithBackend selects the storage backend. The default is the platform
// backend from backend.NewSystem.
func WithBackend(b backend.Backend) Option {
	return func(s *Store) { s.backend = b }
}

// WithLogger sets the logger for operation telemetry. Telemetry never
// carries secret payloads.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithDefaultAccessible sets the store-wide accessibility applied to writes
// that carry no per-item override.
func WithDefaultAccessible(a backend.Accessible) Option {
	return func(s *Store) { s.accessible = a }
}

// New creates a Store. Without WithBackend it opens the platform backend,
// which can fail on hosts with no usable store.
func New(opts ...Option) (*Store, error) {
	s := &Store{logger: slog.With("component", "lockbox")}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		b, err := backend.NewSystem()
		if err != nil {
			return nil, fmt.Errorf("opening system backend: %w", err)
		}
		s.backend = b
	}
	s.gw = newGateway(s.backend, s.accessible, s.logger)
	return s, nil
}

// Close releases the backend's resources. The Store must not be used after
// Close.
func (s *Store) Close() error {
	return s.backend.Close()
}

// BackendName identifies the backend this store writes to.
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// SetDefaultAccessible changes the store-wide accessibility for later writes.
// In-flight operations are unaffected.
func (s *Store) SetDefaultAccessible(a backend.Accessible) {
	s.gw.setAccessible(a)
}

// DefaultAccessible returns the store-wide accessibility.
func (s *Store) DefaultAccessible() backend.Accessible {
	return s.gw.defaultAccessible()
}

type itemOptions struct {
	accessGroup    string
	hasAccessGroup bool
	accessible     backend.Accessible
}

// ItemOption scopes a single operation.
type ItemOption func(*itemOptions)

// WithAccessGroup addresses the entry under an access group. The group is
// part of the entry identity: the same service and account under two groups
// are two entries.
func WithAccessGroup(group string) ItemOption {
	return func(o *itemOptions) {
		o.accessGroup = group
		o.hasAccessGroup = true
	}
}

// WithAccessible overrides the store-wide default accessibility for this
// write.
func WithAccessible(a backend.Accessible) ItemOption {
	return func(o *itemOptions) { o.accessible = a }
}

func newItemOptions(opts []ItemOption) itemOptions {
	var o itemOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (s *Store) query(service, account string, o itemOptions) backend.Query {
	return backend.Query{
		Class:       backend.ClassGenericPassword,
		Service:     service,
		Account:     account,
		AccessGroup: o.accessGroup,
		Accessible:  o.accessible,
	}
}

// Save stores value under (service, account), JSON-encoded. An existing entry
// is updated in place.
func (s *Store) Save(service, account string, value any, opts ...ItemOption) error {
	return s.save(context.Background(), service, account, value, opts)
}

// SaveContext is Save with cancellation. The context is checked after
// validation and encoding, before the write is admitted to storage; an
// admitted write always runs to completion.
func (s *Store) SaveContext(ctx context.Context, service, account string, value any, opts ...ItemOption) error {
	return s.save(ctx, service, account, value, opts)
}

func (s *Store) save(ctx context.Context, service, account string, value any, opts []ItemOption) error {
	o := newItemOptions(opts)
	if err := validateKey(service, account, o.accessGroup, o.hasAccessGroup); err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q := s.query(service, account, o)
	q.Data = data
	if err := s.gw.put(q); err != nil {
		s.logger.Error("save failed", "service", service, "account", account, "error", err)
		return fmt.Errorf("saving secret: %w", err)
	}
	s.logger.Debug("secret saved", "service", service, "account", account)
	return nil
}

// Read loads the entry for (service, account) and decodes it into out, which
// must be a pointer. A missing entry fails with ErrNotFound.
func (s *Store) Read(service, account string, out any, opts ...ItemOption) error {
	return s.read(context.Background(), service, account, out, opts)
}

// ReadContext is Read with cancellation, checked before the lookup is
// admitted to storage.
func (s *Store) ReadContext(ctx context.Context, service, account string, out any, opts ...ItemOption) error {
	return s.read(ctx, service, account, out, opts)
}

func (s *Store) read(ctx context.Context, service, account string, out any, opts []ItemOption) error {
	o := newItemOptions(opts)
	if err := validateKey(service, account, o.accessGroup, o.hasAccessGroup); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, found, err := s.gw.get(s.query(service, account, o))
	if err != nil {
		s.logger.Error("read failed", "service", service, "account", account, "error", err)
		return fmt.Errorf("reading secret: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, service, account)
	}
	if err := decode(data, out); err != nil {
		return err
	}
	s.logger.Debug("secret read", "service", service, "account", account)
	return nil
}

// Delete removes the entry for (service, account). It reports whether an
// entry existed: deleting a missing entry returns (false, nil), not an
// error.
func (s *Store) Delete(service, account string, opts ...ItemOption) (bool, error) {
	return s.delete(context.Background(), service, account, opts)
}

// DeleteContext is Delete with cancellation, checked before the removal is
// admitted to storage.
func (s *Store) DeleteContext(ctx context.Context, service, account string, opts ...ItemOption) (bool, error) {
	return s.delete(ctx, service, account, opts)
}

func (s *Store) delete(ctx context.Context, service, account string, opts []ItemOption) (bool, error) {
	o := newItemOptions(opts)
	if err := validateKey(service, account, o.accessGroup, o.hasAccessGroup); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.gw.remove(s.query(service, account, o))
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("secret already absent", "service", service, "account", account)
		return false, nil
	}
	if err != nil {
		s.logger.Error("delete failed", "service", service, "account", account, "error", err)
		return false, fmt.Errorf("deleting secret: %w", err)
	}
	s.logger.Debug("secret deleted", "service", service, "account", account)
	return true, nil
}

// Accounts lists the accounts stored under a service, sorted. Use
// WithAccessGroup to list one group only.
func (s *Store) Accounts(service string, opts ...ItemOption) ([]string, error) {
	return s.accountList(context.Background(), service, opts)
}

// AccountsContext is Accounts with cancellation, checked before the listing
// is admitted to storage.
func (s *Store) AccountsContext(ctx context.Context, service string, opts ...ItemOption) ([]string, error) {
	return s.accountList(ctx, service, opts)
}

func (s *Store) accountList(ctx context.Context, service string, opts []ItemOption) ([]string, error) {
	o := newItemOptions(opts)
	if err := validateService(service, o.accessGroup, o.hasAccessGroup); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accounts, err := s.gw.accounts(service, o.accessGroup)
	if err != nil {
		s.logger.Error("list failed", "service", service, "error", err)
		return nil, fmt.Errorf("listing secrets: %w", err)
	}
	return accounts, nil
}
