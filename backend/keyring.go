package backend

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"
)

// Keyring is a Backend over the OS keyring via 99designs/keyring: macOS
// Keychain, Windows Credential Manager, Secret Service, KWallet, pass, or an
// encrypted file, whichever the host provides.
//
// The underlying ring only exposes an upsert-style Set, so Add, Update and
// Remove check existence first. Those two-step sequences are safe because the
// lockbox gateway serializes writes.
type Keyring struct {
	ring keyring.Keyring
}

// NewKeyring opens the OS keyring under the "lockbox" service name. fileDir
// is where the encrypted-file fallback keeps its entries; empty means the
// default under the user data directory.
func NewKeyring(fileDir string) (*Keyring, error) {
	if fileDir == "" {
		fileDir = filepath.Join(xdg.DataHome, "lockbox", "keyring")
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              "lockbox",
		KeychainTrustApplication: true,
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.TerminalPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// NewKeyringFrom wraps an already-open ring. Tests use it with
// keyring.NewArrayKeyring.
func NewKeyringFrom(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func (k *Keyring) exists(target string) (bool, error) {
	_, err := k.ring.Get(target)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("keyring get %q: %w", target, err)
	}
	return true, nil
}

func (k *Keyring) set(q Query, target string) error {
	item := keyring.Item{
		Key:   target,
		Data:  q.Data,
		Label: fmt.Sprintf("%s: %s", q.Service, q.Account),
	}
	if err := k.ring.Set(item); err != nil {
		return fmt.Errorf("keyring set %q: %w", target, err)
	}
	return nil
}

func (k *Keyring) Add(q Query) error {
	target := encodeTarget(q.Service, q.Account, q.AccessGroup)
	found, err := k.exists(target)
	if err != nil {
		return err
	}
	if found {
		return StatusDuplicateItem
	}
	return k.set(q, target)
}

func (k *Keyring) Update(q Query) error {
	target := encodeTarget(q.Service, q.Account, q.AccessGroup)
	found, err := k.exists(target)
	if err != nil {
		return err
	}
	if !found {
		return StatusItemNotFound
	}
	return k.set(q, target)
}

func (k *Keyring) Get(q Query) ([]byte, error) {
	target := encodeTarget(q.Service, q.Account, q.AccessGroup)
	item, err := k.ring.Get(target)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, StatusItemNotFound
		}
		return nil, fmt.Errorf("keyring get %q: %w", target, err)
	}
	return item.Data, nil
}

func (k *Keyring) Remove(q Query) error {
	target := encodeTarget(q.Service, q.Account, q.AccessGroup)
	found, err := k.exists(target)
	if err != nil {
		return err
	}
	if !found {
		return StatusItemNotFound
	}
	if err := k.ring.Remove(target); err != nil {
		return fmt.Errorf("keyring remove %q: %w", target, err)
	}
	return nil
}

func (k *Keyring) Accounts(service, accessGroup string) ([]string, error) {
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("keyring keys: %w", err)
	}
	seen := make(map[string]bool)
	for _, key := range keys {
		account, ok := matchesTarget(key, service, accessGroup)
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

func (k *Keyring) Name() string { return "keyring" }

func (k *Keyring) Close() error { return nil }
