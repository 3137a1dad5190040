// Package backend defines the native secret-store capability consumed by
// lockbox, along with adapters for the stores found on real systems.
//
// A Backend keeps opaque byte payloads as generic-password entries keyed by
// (service, account, optional access group). Known outcomes are reported as
// Status values so callers can match them exactly across platforms: adding an
// existing key fails with StatusDuplicateItem, and updating, fetching, or
// removing a missing key fails with StatusItemNotFound.
//
// Backends must be safe for concurrent use call by call, but multi-call
// sequences (such as an existence check followed by a write) are not atomic
// at this layer. The lockbox gateway serializes those.
package backend

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Class identifies the kind of entry a Query addresses. Only generic
// passwords are supported.
type Class int

// ClassGenericPassword is the class for all lockbox entries.
const ClassGenericPassword Class = iota

// Accessible controls when a stored entry is readable. The values mirror the
// macOS keychain accessibility classes. Adapters without a native equivalent
// record the value where their store allows it but do not enforce it.
type Accessible int

const (
	// AccessibleDefault defers to the store-wide default, or to the native
	// store's own default when none is configured.
	AccessibleDefault Accessible = iota
	AccessibleWhenUnlocked
	AccessibleWhenUnlockedThisDeviceOnly
	AccessibleAfterFirstUnlock
	AccessibleAfterFirstUnlockThisDeviceOnly
	AccessibleWhenPasscodeSetThisDeviceOnly
)

var accessibleNames = map[Accessible]string{
	AccessibleDefault:                        "default",
	AccessibleWhenUnlocked:                   "when-unlocked",
	AccessibleWhenUnlockedThisDeviceOnly:     "when-unlocked-this-device",
	AccessibleAfterFirstUnlock:               "after-first-unlock",
	AccessibleAfterFirstUnlockThisDeviceOnly: "after-first-unlock-this-device",
	AccessibleWhenPasscodeSetThisDeviceOnly:  "when-passcode-set-this-device",
}

func (a Accessible) String() string {
	if name, ok := accessibleNames[a]; ok {
		return name
	}
	return "accessible(" + strconv.Itoa(int(a)) + ")"
}

// ParseAccessible converts a config or flag string into an Accessible value.
func ParseAccessible(s string) (Accessible, error) {
	for a, name := range accessibleNames {
		if s == name {
			return a, nil
		}
	}
	return AccessibleDefault, fmt.Errorf("unknown accessibility %q", s)
}

// Status is a native store result code. It mirrors the macOS Security
// framework OSStatus values so adapters on every platform report failures in
// one vocabulary, and it implements error so it can be returned directly or
// wrapped and later recovered with errors.Is.
type Status int32

const (
	StatusSuccess               Status = 0
	StatusUnimplemented         Status = -4
	StatusIO                    Status = -36
	StatusParam                 Status = -50
	StatusNotAvailable          Status = -25291
	StatusAuthFailed            Status = -25293
	StatusDuplicateItem         Status = -25299
	StatusItemNotFound          Status = -25300
	StatusInteractionNotAllowed Status = -25308
	StatusDecode                Status = -26275
)

var statusText = map[Status]string{
	StatusSuccess:               "success",
	StatusUnimplemented:         "function not implemented",
	StatusIO:                    "i/o error",
	StatusParam:                 "invalid parameters",
	StatusNotAvailable:          "no store available",
	StatusAuthFailed:            "authorization failed",
	StatusDuplicateItem:         "item already exists",
	StatusItemNotFound:          "item not found",
	StatusInteractionNotAllowed: "user interaction not allowed",
	StatusDecode:                "unable to decode data",
}

func (s Status) Error() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return "status " + strconv.Itoa(int(s))
}

// Query identifies a single entry and, for writes, carries its payload and
// accessibility. Service and Account are required; AccessGroup is optional
// and part of the entry identity when set.
type Query struct {
	Class       Class
	Service     string
	Account     string
	AccessGroup string
	Accessible  Accessible
	Data        []byte
}

// Backend is the native store capability. Implementations must preserve
// payloads byte for byte, including zero-length payloads.
type Backend interface {
	// Add creates a new entry. It fails with StatusDuplicateItem when an
	// entry with the same key already exists.
	Add(q Query) error

	// Update overwrites the payload (and accessibility, where supported) of
	// an existing entry. It fails with StatusItemNotFound when absent.
	Update(q Query) error

	// Get returns the stored payload. It fails with StatusItemNotFound when
	// absent.
	Get(q Query) ([]byte, error)

	// Remove deletes an entry. It fails with StatusItemNotFound when absent.
	Remove(q Query) error

	// Accounts lists the accounts stored under a service, sorted. An empty
	// accessGroup matches entries in every group.
	Accounts(service, accessGroup string) ([]string, error)

	// Name identifies the adapter, e.g. "keychain" or "file".
	Name() string

	// Close releases any resources held by the adapter.
	Close() error
}

// encodeTarget flattens an entry key into a single name for stores that have
// no native (service, account, group) attributes. Segments are path-escaped
// so keys containing the separator cannot collide.
func encodeTarget(service, account, accessGroup string) string {
	target := url.PathEscape(service) + "/" + url.PathEscape(account)
	if accessGroup != "" {
		target += "/" + url.PathEscape(accessGroup)
	}
	return target
}

// splitTarget reverses encodeTarget. ok is false for names written by other
// tools under the same service name.
func splitTarget(target string) (service, account, accessGroup string, ok bool) {
	parts := strings.Split(target, "/")
	if len(parts) != 2 && len(parts) != 3 {
		return "", "", "", false
	}
	unescaped := make([]string, len(parts))
	for i, p := range parts {
		u, err := url.PathUnescape(p)
		if err != nil {
			return "", "", "", false
		}
		unescaped[i] = u
	}
	service, account = unescaped[0], unescaped[1]
	if len(unescaped) == 3 {
		accessGroup = unescaped[2]
	}
	return service, account, accessGroup, true
}

// matchesTarget reports whether a flattened name belongs to service, and to
// accessGroup when one is given. It returns the account on match.
func matchesTarget(target, service, accessGroup string) (string, bool) {
	svc, account, group, ok := splitTarget(target)
	if !ok || svc != service {
		return "", false
	}
	if accessGroup != "" && group != accessGroup {
		return "", false
	}
	return account, true
}
