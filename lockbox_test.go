package lockbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lockbox-sh/lockbox/backend"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(WithBackend(backend.NewMemory()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// recordingBackend wraps Memory and records which primitives were reached.
type recordingBackend struct {
	mu    sync.Mutex
	inner *backend.Memory
	ops   []string
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{inner: backend.NewMemory()}
}

func (r *recordingBackend) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingBackend) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recordingBackend) Add(q backend.Query) error {
	r.record("add")
	return r.inner.Add(q)
}

func (r *recordingBackend) Update(q backend.Query) error {
	r.record("update")
	return r.inner.Update(q)
}

func (r *recordingBackend) Get(q backend.Query) ([]byte, error) {
	r.record("get")
	return r.inner.Get(q)
}

func (r *recordingBackend) Remove(q backend.Query) error {
	r.record("remove")
	return r.inner.Remove(q)
}

func (r *recordingBackend) Accounts(service, accessGroup string) ([]string, error) {
	r.record("accounts")
	return r.inner.Accounts(service, accessGroup)
}

func (r *recordingBackend) Name() string { return "recording" }

func (r *recordingBackend) Close() error { return nil }

func TestSaveAndRead(t *testing.T) {
	s := testStore(t)

	if err := s.Save("app", "api-token", "tok-123"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got string
	if err := s.Read("app", "api-token", &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("expected tok-123, got %q", got)
	}
}

func TestRoundTripStruct(t *testing.T) {
	type dbCreds struct {
		Host     string `json:"host"`
		User     string `json:"user"`
		Password string `json:"password"`
	}
	s := testStore(t)

	in := dbCreds{Host: "db.internal:5432", User: "app", Password: "s3cret"}
	if err := s.Save("app", "database", in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out dbCreds
	if err := s.Read("app", "database", &out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestRoundTripEmptyString(t *testing.T) {
	s := testStore(t)

	if err := s.Save("app", "empty", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got string
	if err := s.Read("app", "empty", &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSaveTwiceUpdatesInPlace(t *testing.T) {
	rec := newRecordingBackend()
	s, err := New(WithBackend(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Save("app", "rotating", "first"); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save("app", "rotating", "second"); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	var got string
	if err := s.Read("app", "rotating", &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "second" {
		t.Errorf("expected second, got %q", got)
	}

	// The duplicate is resolved inside the gateway: add, then add failing
	// with a duplicate, then the in-place update.
	want := []string{"add", "add", "update", "get"}
	calls := rec.calls()
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, calls)
		}
	}
}

func TestReadAbsent(t *testing.T) {
	s := testStore(t)

	var got string
	err := s.Read("app", "never-saved", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Read: expected ErrNotFound, got %v", err)
	}

	err = s.ReadContext(context.Background(), "app", "never-saved", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadContext: expected ErrNotFound, got %v", err)
	}
}

func TestReadTypeMismatch(t *testing.T) {
	s := testStore(t)

	if err := s.Save("app", "token", "a string"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out int
	err := s.Read("app", "token", &out)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("expected *DecodeError, got %v", err)
	}
}

func TestDeleteAbsentIsNotFailure(t *testing.T) {
	s := testStore(t)

	deleted, err := s.Delete("app", "never-saved")
	if err != nil {
		t.Fatalf("Delete of absent entry must not fail: %v", err)
	}
	if deleted {
		t.Error("expected deleted=false")
	}

	deleted, err = s.DeleteContext(context.Background(), "app", "never-saved")
	if err != nil {
		t.Fatalf("DeleteContext of absent entry must not fail: %v", err)
	}
	if deleted {
		t.Error("expected deleted=false")
	}
}

func TestDeleteThenRead(t *testing.T) {
	s := testStore(t)

	if err := s.Save("app", "doomed", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	deleted, err := s.Delete("app", "doomed")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("expected deleted=true for existing entry")
	}

	var got string
	if err := s.Read("app", "doomed", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// A second delete sees nothing and still succeeds.
	deleted, err = s.Delete("app", "doomed")
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if deleted {
		t.Error("expected deleted=false on second delete")
	}
}

func TestValidationPrecedesStorage(t *testing.T) {
	rec := newRecordingBackend()
	s, err := New(WithBackend(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Save("", "acct", "v"); !errors.Is(err, ErrEmptyService) {
		t.Errorf("expected ErrEmptyService, got %v", err)
	}
	if err := s.Save("svc", "", "v"); !errors.Is(err, ErrEmptyAccount) {
		t.Errorf("expected ErrEmptyAccount, got %v", err)
	}
	if err := s.Save("svc", "acct", "v", WithAccessGroup("")); !errors.Is(err, ErrEmptyAccessGroup) {
		t.Errorf("expected ErrEmptyAccessGroup, got %v", err)
	}

	var out string
	if err := s.Read("", "acct", &out); !errors.Is(err, ErrEmptyService) {
		t.Errorf("Read: expected ErrEmptyService, got %v", err)
	}
	if _, err := s.Delete("svc", ""); !errors.Is(err, ErrEmptyAccount) {
		t.Errorf("Delete: expected ErrEmptyAccount, got %v", err)
	}
	if _, err := s.Accounts(""); !errors.Is(err, ErrEmptyService) {
		t.Errorf("Accounts: expected ErrEmptyService, got %v", err)
	}

	// Validation failures and encoding failures must never reach storage.
	if err := s.Save("svc", "acct", make(chan int)); err == nil {
		t.Error("expected encoding failure")
	}
	if calls := rec.calls(); len(calls) != 0 {
		t.Errorf("backend reached before validation/encoding passed: %v", calls)
	}
}

func TestValidationPrecedesEncoding(t *testing.T) {
	s := testStore(t)

	// The value cannot be encoded, but the empty service must win.
	err := s.Save("", "acct", make(chan int))
	if !errors.Is(err, ErrEmptyService) {
		t.Errorf("expected ErrEmptyService, got %v", err)
	}
}

func TestEncodeFailureCarriesCause(t *testing.T) {
	s := testStore(t)

	err := s.Save("svc", "acct", make(chan int))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodeError, got %v", err)
	}
}

func TestContextCanceled(t *testing.T) {
	rec := newRecordingBackend()
	s, err := New(WithBackend(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SaveContext(ctx, "svc", "acct", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("SaveContext: expected context.Canceled, got %v", err)
	}
	var out string
	if err := s.ReadContext(ctx, "svc", "acct", &out); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadContext: expected context.Canceled, got %v", err)
	}
	if _, err := s.DeleteContext(ctx, "svc", "acct"); !errors.Is(err, context.Canceled) {
		t.Errorf("DeleteContext: expected context.Canceled, got %v", err)
	}
	if _, err := s.AccountsContext(ctx, "svc"); !errors.Is(err, context.Canceled) {
		t.Errorf("AccountsContext: expected context.Canceled, got %v", err)
	}

	if calls := rec.calls(); len(calls) != 0 {
		t.Errorf("canceled operations reached the backend: %v", calls)
	}
}

func TestAccessGroupSeparatesEntries(t *testing.T) {
	s := testStore(t)

	if err := s.Save("svc", "shared", "plain"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save("svc", "shared", "grouped", WithAccessGroup("team")); err != nil {
		t.Fatalf("Save with group: %v", err)
	}

	var got string
	if err := s.Read("svc", "shared", &got); err != nil || got != "plain" {
		t.Errorf("ungrouped read: got %q err %v", got, err)
	}
	if err := s.Read("svc", "shared", &got, WithAccessGroup("team")); err != nil || got != "grouped" {
		t.Errorf("grouped read: got %q err %v", got, err)
	}

	// Deleting the grouped entry leaves the ungrouped one.
	if deleted, err := s.Delete("svc", "shared", WithAccessGroup("team")); err != nil || !deleted {
		t.Fatalf("Delete grouped: deleted=%v err=%v", deleted, err)
	}
	if err := s.Read("svc", "shared", &got); err != nil || got != "plain" {
		t.Errorf("ungrouped entry lost: got %q err %v", got, err)
	}
}

func TestAccounts(t *testing.T) {
	s := testStore(t)

	for _, account := range []string{"charlie", "alice", "bob"} {
		if err := s.Save("svc", account, "v"); err != nil {
			t.Fatalf("Save %s: %v", account, err)
		}
	}
	if err := s.Save("unrelated", "dave", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	accounts, err := s.Accounts("svc")
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	want := []string{"alice", "bob", "charlie"}
	if len(accounts) != len(want) {
		t.Fatalf("expected %v, got %v", want, accounts)
	}
	for i := range want {
		if accounts[i] != want[i] {
			t.Errorf("accounts[%d] = %q, want %q", i, accounts[i], want[i])
		}
	}
}

func TestDefaultAccessible(t *testing.T) {
	mem := backend.NewMemory()
	s, err := New(
		WithBackend(mem),
		WithDefaultAccessible(backend.AccessibleAfterFirstUnlock),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Save("svc", "a", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	q := backend.Query{Service: "svc", Account: "a"}
	if got, _ := mem.Accessible(q); got != backend.AccessibleAfterFirstUnlock {
		t.Errorf("expected construction default, got %v", got)
	}

	s.SetDefaultAccessible(backend.AccessibleWhenUnlocked)
	if got := s.DefaultAccessible(); got != backend.AccessibleWhenUnlocked {
		t.Errorf("DefaultAccessible = %v", got)
	}
	if err := s.Save("svc", "b", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	q.Account = "b"
	if got, _ := mem.Accessible(q); got != backend.AccessibleWhenUnlocked {
		t.Errorf("expected updated default, got %v", got)
	}

	// Per-item option beats the store default.
	if err := s.Save("svc", "c", "v", WithAccessible(backend.AccessibleWhenPasscodeSetThisDeviceOnly)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	q.Account = "c"
	if got, _ := mem.Accessible(q); got != backend.AccessibleWhenPasscodeSetThisDeviceOnly {
		t.Errorf("expected per-item accessibility, got %v", got)
	}
}

func TestConcurrentSavesSameKey(t *testing.T) {
	s := testStore(t)

	const writers = 32
	values := make(map[string]bool, writers)
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		value := string(rune('a' + i%26))
		values[value] = true
		wg.Add(1)
		go func(i int, value string) {
			defer wg.Done()
			errs[i] = s.Save("svc", "contended", value)
		}(i, value)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	var got string
	if err := s.Read("svc", "contended", &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !values[got] {
		t.Errorf("final value %q was never written", got)
	}
}

func TestConcurrentDeletesSameKey(t *testing.T) {
	s := testStore(t)

	if err := s.Save("svc", "contended", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	const deleters = 16
	results := make([]bool, deleters)
	errs := make([]error, deleters)
	var wg sync.WaitGroup
	for i := 0; i < deleters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Delete("svc", "contended")
		}(i)
	}
	wg.Wait()

	// Deletes serialize on the gateway lock: exactly one observes the entry,
	// the rest see a successful no-op.
	var hits int
	for i := 0; i < deleters; i++ {
		if errs[i] != nil {
			t.Fatalf("deleter %d failed: %v", i, errs[i])
		}
		if results[i] {
			hits++
		}
	}
	if hits != 1 {
		t.Errorf("expected exactly one deleter to observe the entry, got %d", hits)
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	s := testStore(t)

	const workers = 24
	var wg sync.WaitGroup
	errCh := make(chan error, workers*3)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account := string(rune('a' + i%4))
			if err := s.Save("svc", account, i); err != nil {
				errCh <- err
			}
			var out int
			if err := s.Read("svc", account, &out); err != nil && !errors.Is(err, ErrNotFound) {
				errCh <- err
			}
			if _, err := s.Delete("svc", account); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent operation failed: %v", err)
	}
}
