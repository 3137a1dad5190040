package backend

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"golang.org/x/crypto/scrypt"
)

const (
	fileLockTimeout = 10 * time.Second
	fileLockRetry   = 100 * time.Millisecond

	saltSize = 16

	// scrypt parameters for deriving the AES key from the passphrase.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// fileEntry is the stored form of one secret inside the encrypted file.
type fileEntry struct {
	Data       []byte     `json:"data"`
	Accessible Accessible `json:"accessible,omitempty"`
}

// File is a Backend backed by a single AES-256-GCM encrypted file, for hosts
// without a usable OS keyring (WSL, headless servers, containers).
//
// Writes hold a cross-process file lock around the read-modify-write cycle
// and land via an atomic rename. Reads are served from an in-memory copy that
// a directory watcher drops whenever another process rewrites the file.
type File struct {
	path   string
	key    []byte
	flock  *flock.Flock
	logger *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.Mutex
	cache map[string]fileEntry // nil means it must be reloaded from disk
}

// NewFile opens (or prepares) an encrypted secrets file. An empty path means
// the default under the user data directory. An empty passphrase derives the
// key from the machine identity, which only guards against casual reads.
func NewFile(path, passphrase string) (*File, error) {
	if path == "" {
		path = filepath.Join(xdg.DataHome, "lockbox", "secrets.enc")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}

	logger := slog.With("component", "backend.file")
	if passphrase == "" {
		hostname, _ := os.Hostname()
		user := os.Getenv("USER")
		if user == "" {
			user = os.Getenv("USERNAME")
		}
		passphrase = user + "@" + hostname
		logger.Warn("no passphrase configured, deriving file key from machine identity",
			"hint", "set LOCKBOX_PASSPHRASE for a real key")
	}

	salt, err := loadOrCreateSalt(path + ".salt")
	if err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("deriving file key: %w", err)
	}

	f := &File{
		path:   path,
		key:    key,
		flock:  flock.New(path + ".lock"),
		logger: logger,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating secrets watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching secrets directory: %w", err)
	}
	f.watcher = watcher
	go f.watch()

	return f, nil
}

// loadOrCreateSalt reads the key-derivation salt, creating it on first use.
// O_EXCL keeps two processes from writing different salts.
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltSize {
			return nil, fmt.Errorf("key salt %s is corrupt", path)
		}
		return salt, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading key salt: %w", err)
	}

	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating key salt: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Another process created it first; use theirs.
			return loadOrCreateSalt(path)
		}
		return nil, fmt.Errorf("writing key salt: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(salt); err != nil {
		return nil, fmt.Errorf("writing key salt: %w", err)
	}
	return salt, nil
}

// watch drops the in-memory copy whenever the secrets file changes on disk.
func (f *File) watch() {
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.logger.Debug("secrets file changed on disk", "op", event.Op.String())
			f.mu.Lock()
			f.cache = nil
			f.mu.Unlock()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("secrets watcher error", "error", err)
		}
	}
}

func (f *File) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (f *File) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("decrypting secrets file: %w", StatusDecode)
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Wrong passphrase and corruption are indistinguishable here.
		return nil, fmt.Errorf("decrypting secrets file: %w", StatusDecode)
	}
	return plaintext, nil
}

// loadLocked returns the entry map, reading and decrypting the file when no
// valid in-memory copy exists. Caller must hold f.mu.
func (f *File) loadLocked() (map[string]fileEntry, error) {
	if f.cache != nil {
		return f.cache, nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.cache = make(map[string]fileEntry)
			return f.cache, nil
		}
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	if len(data) == 0 {
		f.cache = make(map[string]fileEntry)
		return f.cache, nil
	}
	plaintext, err := f.decrypt(data)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]fileEntry)
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	f.cache = entries
	return entries, nil
}

// saveLocked encrypts and writes the entry map via a temp file and rename, so
// other processes never observe a partial file. Caller must hold f.mu.
func (f *File) saveLocked(entries map[string]fileEntry) error {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding secrets file: %w", err)
	}
	ciphertext, err := f.encrypt(plaintext)
	if err != nil {
		return err
	}
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, ciphertext, 0600); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}
	f.cache = entries
	return nil
}

// mutate runs fn over a freshly loaded entry map and persists the result,
// holding the cross-process lock for the whole read-modify-write cycle.
func (f *File) mutate(fn func(entries map[string]fileEntry) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), fileLockTimeout)
	defer cancel()
	locked, err := f.flock.TryLockContext(ctx, fileLockRetry)
	if err != nil {
		return fmt.Errorf("locking secrets file: %w", err)
	}
	if !locked {
		return fmt.Errorf("locking secrets file: %w", StatusNotAvailable)
	}
	defer f.flock.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Another process may have written since the last load.
	f.cache = nil
	entries, err := f.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(entries); err != nil {
		return err
	}
	return f.saveLocked(entries)
}

func (f *File) Add(q Query) error {
	target := encodeTarget(q.Service, q.Account, q.AccessGroup)
	return f.mutate(func(entries map[string]fileEntry) error {
		if _, ok := entries[target]; ok {
			return StatusDuplicateItem
		}
		entries[target] = fileEntry{Data: cloneBytes(q.Data), Accessible: q.Accessible}
		return nil
	})
}

func (f *File) Update(q Query) error {
	target := encodeTarget(q.Service, q.Account, q.AccessGroup)
	return f.mutate(func(entries map[string]fileEntry) error {
		if _, ok := entries[target]; !ok {
			return StatusItemNotFound
		}
		entries[target] = fileEntry{Data: cloneBytes(q.Data), Accessible: q.Accessible}
		return nil
	})
}

func (f *File) Get(q Query) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.loadLocked()
	if err != nil {
		return nil, err
	}
	entry, ok := entries[encodeTarget(q.Service, q.Account, q.AccessGroup)]
	if !ok {
		return nil, StatusItemNotFound
	}
	return cloneBytes(entry.Data), nil
}

func (f *File) Remove(q Query) error {
	target := encodeTarget(q.Service, q.Account, q.AccessGroup)
	return f.mutate(func(entries map[string]fileEntry) error {
		if _, ok := entries[target]; !ok {
			return StatusItemNotFound
		}
		delete(entries, target)
		return nil
	})
}

func (f *File) Accounts(service, accessGroup string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.loadLocked()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for target := range entries {
		account, ok := matchesTarget(target, service, accessGroup)
		if !ok {
			continue
		}
		seen[account] = true
	}
	accounts := make([]string, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

func (f *File) Name() string { return "file" }

// Close stops the change watcher. The file itself needs no teardown.
func (f *File) Close() error {
	close(f.done)
	return f.watcher.Close()
}
