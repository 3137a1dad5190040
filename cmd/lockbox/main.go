package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockbox-sh/lockbox/internal/memprotect"
)

var rootCmd = &cobra.Command{
	Use:   "lockbox",
	Short: "Store secrets in the platform secret store",
	Long: `lockbox keeps secrets in the best store the host offers: the macOS
Keychain, the Windows Credential Manager, the OS keyring, an encrypted file,
or SQLite. Secrets are keyed by service and account.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/lockbox/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "Backend to use: system, keychain, wincred, keyring, file, sqlite, memory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := memprotect.Harden(); err != nil {
		slog.Warn("process hardening failed", "error", err)
	}

	cobra.OnInitialize(func() {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
