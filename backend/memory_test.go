package backend

import (
	"bytes"
	"testing"
)

func TestMemoryBackend(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		return NewMemory()
	})
}

func TestMemoryCloneIsolation(t *testing.T) {
	m := NewMemory()
	q := Query{Class: ClassGenericPassword, Service: "svc", Account: "acct"}

	payload := []byte("original")
	q.Data = payload
	if err := m.Add(q); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Mutating the caller's slice after the write must not reach the store.
	payload[0] = 'X'
	got, err := m.Get(Query{Service: "svc", Account: "acct"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("original")) {
		t.Errorf("store shares the caller's slice: %q", got)
	}

	// Mutating a returned slice must not reach the store either.
	got[0] = 'Y'
	again, err := m.Get(Query{Service: "svc", Account: "acct"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(again, []byte("original")) {
		t.Errorf("store shares the returned slice: %q", again)
	}
}

func TestMemoryRecordsAccessible(t *testing.T) {
	m := NewMemory()
	q := Query{
		Service:    "svc",
		Account:    "acct",
		Accessible: AccessibleAfterFirstUnlock,
		Data:       []byte("v"),
	}
	if err := m.Add(q); err != nil {
		t.Fatalf("Add: %v", err)
	}

	accessible, ok := m.Accessible(Query{Service: "svc", Account: "acct"})
	if !ok {
		t.Fatal("entry not found")
	}
	if accessible != AccessibleAfterFirstUnlock {
		t.Errorf("accessible = %v, want %v", accessible, AccessibleAfterFirstUnlock)
	}

	q.Accessible = AccessibleWhenUnlocked
	if err := m.Update(q); err != nil {
		t.Fatalf("Update: %v", err)
	}
	accessible, _ = m.Accessible(Query{Service: "svc", Account: "acct"})
	if accessible != AccessibleWhenUnlocked {
		t.Errorf("accessible after update = %v, want %v", accessible, AccessibleWhenUnlocked)
	}

	if _, ok := m.Accessible(Query{Service: "svc", Account: "ghost"}); ok {
		t.Error("expected ok=false for a missing entry")
	}
}
