package audit

import (
	"github.com/lockbox-sh/lockbox/backend"
)

// AuditedBackend wraps a Backend and records every operation, failures
// included, before passing the result through unchanged.
type AuditedBackend struct {
	inner  backend.Backend
	logger *Logger
	actor  string
}

// Wrap decorates a backend with audit logging. actor names the caller in each
// entry, e.g. "cli".
func Wrap(inner backend.Backend, logger *Logger, actor string) *AuditedBackend {
	return &AuditedBackend{inner: inner, logger: logger, actor: actor}
}

// record logs an operation outcome. Logging is best-effort; a log failure
// never blocks or fails the operation itself.
func (a *AuditedBackend) record(action Action, q backend.Query, err error) {
	entry := Entry{
		Action:      action,
		Service:     q.Service,
		Account:     q.Account,
		AccessGroup: q.AccessGroup,
		Backend:     a.inner.Name(),
		Actor:       a.actor,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	a.logger.Log(entry)
}

func (a *AuditedBackend) Add(q backend.Query) error {
	err := a.inner.Add(q)
	a.record(ActionSecretWrite, q, err)
	return err
}

func (a *AuditedBackend) Update(q backend.Query) error {
	err := a.inner.Update(q)
	a.record(ActionSecretWrite, q, err)
	return err
}

func (a *AuditedBackend) Get(q backend.Query) ([]byte, error) {
	data, err := a.inner.Get(q)
	a.record(ActionSecretRead, q, err)
	return data, err
}

func (a *AuditedBackend) Remove(q backend.Query) error {
	err := a.inner.Remove(q)
	a.record(ActionSecretDelete, q, err)
	return err
}

func (a *AuditedBackend) Accounts(service, accessGroup string) ([]string, error) {
	accounts, err := a.inner.Accounts(service, accessGroup)
	a.record(ActionSecretList, backend.Query{Service: service, AccessGroup: accessGroup}, err)
	return accounts, err
}

func (a *AuditedBackend) Name() string { return a.inner.Name() }

// Close closes the wrapped backend. The audit logger is owned by the caller
// and stays open.
func (a *AuditedBackend) Close() error { return a.inner.Close() }
