package lockbox

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Store operations. Compare with errors.Is.
var (
	// ErrEmptyService is returned when the service parameter is empty.
	ErrEmptyService = errors.New("service must not be empty")

	// ErrEmptyAccount is returned when the account parameter is empty.
	ErrEmptyAccount = errors.New("account must not be empty")

	// ErrEmptyAccessGroup is returned when an access group was supplied but
	// is empty.
	ErrEmptyAccessGroup = errors.New("access group must not be empty")

	// ErrNotFound is returned by Read when no entry exists for the key.
	// Delete reports the same condition as (false, nil), not as an error.
	ErrNotFound = errors.New("secret not found")
)

// EncodeError reports that a value could not be serialized for storage. The
// store is never touched when encoding fails.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encoding secret value: %v", e.Err) }

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports that a stored payload could not be deserialized into
// the caller's value, usually a type mismatch or an entry written by another
// tool.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decoding secret value: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }
