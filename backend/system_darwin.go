//go:build darwin

package backend

// NewSystem returns the platform backend: the macOS Keychain.
func NewSystem() (*Keychain, error) {
	return NewKeychain(), nil
}
