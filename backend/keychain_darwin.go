//go:build darwin

package backend

import (
	"errors"
	"fmt"
	"sort"

	gokeychain "github.com/keybase/go-keychain"
)

// Keychain is a Backend over the macOS Keychain. Entries are generic
// passwords, never synced to iCloud.
type Keychain struct{}

// NewKeychain creates a macOS Keychain backend.
func NewKeychain() *Keychain {
	return &Keychain{}
}

// baseQuery builds the item attributes shared by every operation.
func baseQuery(q Query) gokeychain.Item {
	item := gokeychain.NewItem()
	item.SetSecClass(gokeychain.SecClassGenericPassword)
	item.SetService(q.Service)
	item.SetAccount(q.Account)
	if q.AccessGroup != "" {
		item.SetAccessGroup(q.AccessGroup)
	}
	return item
}

func nativeAccessible(a Accessible) gokeychain.Accessible {
	switch a {
	case AccessibleWhenUnlocked:
		return gokeychain.AccessibleWhenUnlocked
	case AccessibleWhenUnlockedThisDeviceOnly:
		return gokeychain.AccessibleWhenUnlockedThisDeviceOnly
	case AccessibleAfterFirstUnlock:
		return gokeychain.AccessibleAfterFirstUnlock
	case AccessibleAfterFirstUnlockThisDeviceOnly:
		return gokeychain.AccessibleAfterFirstUnlockThisDeviceOnly
	case AccessibleWhenPasscodeSetThisDeviceOnly:
		return gokeychain.AccessibleWhenPasscodeSetThisDeviceOnly
	default:
		return gokeychain.AccessibleDefault
	}
}

// mapStatus converts a go-keychain error into a Status. The underlying
// values are both OSStatus, so the conversion is exact.
func mapStatus(err error) error {
	if err == nil {
		return nil
	}
	var kcErr gokeychain.Error
	if errors.As(err, &kcErr) {
		return Status(kcErr)
	}
	return err
}

func (k *Keychain) Add(q Query) error {
	item := baseQuery(q)
	item.SetLabel(fmt.Sprintf("%s: %s", q.Service, q.Account))
	item.SetData(q.Data)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	if q.Accessible != AccessibleDefault {
		item.SetAccessible(nativeAccessible(q.Accessible))
	}
	return mapStatus(gokeychain.AddItem(item))
}

func (k *Keychain) Update(q Query) error {
	update := gokeychain.NewItem()
	update.SetData(q.Data)
	if q.Accessible != AccessibleDefault {
		update.SetAccessible(nativeAccessible(q.Accessible))
	}
	return mapStatus(gokeychain.UpdateItem(baseQuery(q), update))
}

func (k *Keychain) Get(q Query) ([]byte, error) {
	query := baseQuery(q)
	query.SetMatchLimit(gokeychain.MatchLimitOne)
	query.SetReturnData(true)
	results, err := gokeychain.QueryItem(query)
	if err != nil {
		return nil, mapStatus(err)
	}
	if len(results) == 0 {
		return nil, StatusItemNotFound
	}
	return results[0].Data, nil
}

func (k *Keychain) Remove(q Query) error {
	return mapStatus(gokeychain.DeleteItem(baseQuery(q)))
}

func (k *Keychain) Accounts(service, accessGroup string) ([]string, error) {
	query := gokeychain.NewItem()
	query.SetSecClass(gokeychain.SecClassGenericPassword)
	query.SetService(service)
	if accessGroup != "" {
		query.SetAccessGroup(accessGroup)
	}
	query.SetMatchLimit(gokeychain.MatchLimitAll)
	query.SetReturnAttributes(true)
	results, err := gokeychain.QueryItem(query)
	if err != nil {
		return nil, mapStatus(err)
	}
	seen := make(map[string]bool)
	for _, r := range results {
		seen[r.Account] = true
	}
	accounts := make([]string, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

func (k *Keychain) Name() string { return "keychain" }

func (k *Keychain) Close() error { return nil }
