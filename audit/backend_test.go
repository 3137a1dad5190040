package audit

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lockbox-sh/lockbox/backend"
)

func setupAudited(t *testing.T) (*AuditedBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return Wrap(backend.NewMemory(), logger, "test"), path
}

func TestAuditedBackendRecordsOperations(t *testing.T) {
	audited, path := setupAudited(t)
	q := backend.Query{Service: "svc", Account: "acct", Data: []byte("v1")}

	if err := audited.Add(q); err != nil {
		t.Fatalf("Add: %v", err)
	}
	q.Data = []byte("v2")
	if err := audited.Update(q); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := audited.Get(backend.Query{Service: "svc", Account: "acct"}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := audited.Accounts("svc", ""); err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if err := audited.Remove(backend.Query{Service: "svc", Account: "acct"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	entries := readEntries(t, path)
	want := []Action{
		ActionSecretWrite,
		ActionSecretWrite,
		ActionSecretRead,
		ActionSecretList,
		ActionSecretDelete,
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, action := range want {
		if entries[i].Action != action {
			t.Errorf("entry %d: action = %v, want %v", i, entries[i].Action, action)
		}
		if entries[i].Actor != "test" {
			t.Errorf("entry %d: actor = %q, want test", i, entries[i].Actor)
		}
		if entries[i].Backend != "memory" {
			t.Errorf("entry %d: backend = %q, want memory", i, entries[i].Backend)
		}
		if entries[i].Error != "" {
			t.Errorf("entry %d: unexpected error %q", i, entries[i].Error)
		}
	}
}

func TestAuditedBackendRecordsFailures(t *testing.T) {
	audited, path := setupAudited(t)

	_, err := audited.Get(backend.Query{Service: "svc", Account: "ghost"})
	if !errors.Is(err, backend.StatusItemNotFound) {
		t.Fatalf("expected StatusItemNotFound, got %v", err)
	}

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Error != backend.StatusItemNotFound.Error() {
		t.Errorf("error = %q, want %q", entries[0].Error, backend.StatusItemNotFound.Error())
	}
}

func TestAuditedBackendToleratesLogFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	audited := Wrap(backend.NewMemory(), logger, "test")

	// A dead logger must not take the store down with it.
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	q := backend.Query{Service: "svc", Account: "acct", Data: []byte("v")}
	if err := audited.Add(q); err != nil {
		t.Fatalf("Add with closed logger: %v", err)
	}
	data, err := audited.Get(backend.Query{Service: "svc", Account: "acct"})
	if err != nil {
		t.Fatalf("Get with closed logger: %v", err)
	}
	if !bytes.Equal(data, []byte("v")) {
		t.Errorf("expected v, got %q", data)
	}
}

func TestAuditedBackendPassesThrough(t *testing.T) {
	audited, _ := setupAudited(t)
	q := backend.Query{Service: "svc", Account: "acct", Data: []byte("payload")}

	if err := audited.Add(q); err != nil {
		t.Fatalf("Add: %v", err)
	}
	data, err := audited.Get(backend.Query{Service: "svc", Account: "acct"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Errorf("expected payload, got %q", data)
	}

	if audited.Name() != "memory" {
		t.Errorf("Name = %q, want memory", audited.Name())
	}
}
