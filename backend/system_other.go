//go:build !darwin && !windows

package backend

import (
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// NewSystem returns the platform backend. It prefers the OS keyring and falls
// back to the encrypted file store on hosts where no keyring can answer (WSL,
// headless sessions, containers). The file store passphrase comes from
// LOCKBOX_PASSPHRASE.
func NewSystem() (Backend, error) {
	logger := slog.With("component", "backend")

	if isWSL() || isHeadless() {
		logger.Warn("no usable keyring on this host, using encrypted file store")
		return NewFile("", os.Getenv("LOCKBOX_PASSPHRASE"))
	}

	ring, err := NewKeyring("")
	if err != nil {
		logger.Warn("keyring unavailable, using encrypted file store", "error", err)
		return NewFile("", os.Getenv("LOCKBOX_PASSPHRASE"))
	}
	return ring, nil
}

// isWSL reports whether this is Windows Subsystem for Linux, where the
// Secret Service bus is usually absent.
func isWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// isHeadless reports whether no display server is present. Secret Service
// implementations generally need a desktop session to unlock.
func isHeadless() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}
