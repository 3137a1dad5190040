//go:build darwin

package memprotect

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// Harden pins process memory so secret material never reaches swap. macOS has
// no prctl equivalent; core dumps are already off by default there.
func Harden() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		slog.Warn("mlockall failed, secrets may reach swap", "error", err)
	}
	return nil
}
