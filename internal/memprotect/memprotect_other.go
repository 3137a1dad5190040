//go:build !linux && !darwin

package memprotect

// Harden is a no-op on platforms without the required primitives.
func Harden() error { return nil }
