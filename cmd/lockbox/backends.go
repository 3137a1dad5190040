package main

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Show the available storage backends",
	RunE:  runBackends,
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func runBackends(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	type info struct {
		name      string
		available bool
		notes     string
	}
	backends := []info{
		{"system", true, "best native store for this platform"},
		{"keychain", runtime.GOOS == "darwin", "macOS Keychain"},
		{"wincred", runtime.GOOS == "windows", "Windows Credential Manager"},
		{"keyring", true, "OS keyring (Keychain, Secret Service, KWallet, pass)"},
		{"file", true, "AES-256-GCM encrypted file"},
		{"sqlite", true, "local SQLite database, not encrypted"},
		{"memory", true, "in-process only, for tests"},
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAVAILABLE\tNOTES")
	for _, b := range backends {
		available := "yes"
		if !b.available {
			available = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", b.name, available, b.notes)
	}
	w.Flush()

	selected := cfg.Backend
	if selected == "" {
		selected = "system"
	}
	fmt.Printf("\nConfigured backend: %s\n", selected)
	return nil
}
