//go:build windows

package backend

// NewSystem returns the platform backend: the Windows Credential Manager.
func NewSystem() (*Wincred, error) {
	return NewWincred(), nil
}
