//go:build windows

package backend

import (
	"errors"
	"sort"
	"strings"

	"github.com/danieljoos/wincred"
	"golang.org/x/sys/windows"
)

// wincredPrefix namespaces lockbox entries inside the shared Windows
// Credential Manager.
const wincredPrefix = "lockbox/"

// maxBlobSize is CRED_MAX_CREDENTIAL_BLOB_SIZE, the Credential Manager limit
// on a generic credential payload.
const maxBlobSize = 2560

// Wincred is a Backend over the Windows Credential Manager. Entries are
// generic credentials named lockbox/<service>/<account>[/<group>].
type Wincred struct{}

// NewWincred creates a Windows Credential Manager backend.
func NewWincred() *Wincred {
	return &Wincred{}
}

func wincredTarget(q Query) string {
	return wincredPrefix + encodeTarget(q.Service, q.Account, q.AccessGroup)
}

func isWincredNotFound(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_FOUND)
}

func (w *Wincred) write(q Query) error {
	if len(q.Data) > maxBlobSize {
		return StatusParam
	}
	cred := wincred.NewGenericCredential(wincredTarget(q))
	cred.CredentialBlob = q.Data
	cred.UserName = q.Account
	cred.Persist = wincred.PersistLocalMachine
	if q.Accessible != AccessibleDefault {
		cred.Attributes = []wincred.CredentialAttribute{
			{Keyword: "lockbox:accessible", Value: []byte(q.Accessible.String())},
		}
	}
	if err := cred.Write(); err != nil {
		return err
	}
	return nil
}

func (w *Wincred) Add(q Query) error {
	_, err := wincred.GetGenericCredential(wincredTarget(q))
	if err == nil {
		return StatusDuplicateItem
	}
	if !isWincredNotFound(err) {
		return err
	}
	return w.write(q)
}

func (w *Wincred) Update(q Query) error {
	if _, err := wincred.GetGenericCredential(wincredTarget(q)); err != nil {
		if isWincredNotFound(err) {
			return StatusItemNotFound
		}
		return err
	}
	return w.write(q)
}

func (w *Wincred) Get(q Query) ([]byte, error) {
	cred, err := wincred.GetGenericCredential(wincredTarget(q))
	if err != nil {
		if isWincredNotFound(err) {
			return nil, StatusItemNotFound
		}
		return nil, err
	}
	return cred.CredentialBlob, nil
}

func (w *Wincred) Remove(q Query) error {
	cred, err := wincred.GetGenericCredential(wincredTarget(q))
	if err != nil {
		if isWincredNotFound(err) {
			return StatusItemNotFound
		}
		return err
	}
	return cred.Delete()
}

func (w *Wincred) Accounts(service, accessGroup string) ([]string, error) {
	creds, err := wincred.FilteredList(wincredPrefix + "*")
	if err != nil {
		if isWincredNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	seen := make(map[string]bool)
	for _, c := range creds {
		name := strings.TrimPrefix(c.TargetName, wincredPrefix)
		account, ok := matchesTarget(name, service, accessGroup)
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

func (w *Wincred) Name() string { return "wincred" }

func (w *Wincred) Close() error { return nil }
