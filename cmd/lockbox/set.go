package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lockbox-sh/lockbox"
	"github.com/lockbox-sh/lockbox/backend"
)

var setCmd = &cobra.Command{
	Use:   "set <service> <account> [value]",
	Short: "Store a secret",
	Long:  "Store a secret. If value is omitted, reads from stdin (useful for piping).",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runSet,
}

var (
	setAccessGroup string
	setAccessible  string
	setJSON        bool
)

func init() {
	setCmd.Flags().StringVar(&setAccessGroup, "access-group", "", "Scope the entry to an access group")
	setCmd.Flags().StringVar(&setAccessible, "accessible", "", "When the entry is readable: when-unlocked, after-first-unlock, ...")
	setCmd.Flags().BoolVar(&setJSON, "json", false, "Treat the value as a JSON document and store it as-is")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	service, account := args[0], args[1]

	var value string
	if len(args) == 3 {
		value = args[2]
	} else {
		v, err := readSecretValue()
		if err != nil {
			return err
		}
		value = v
	}

	store, cfg, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	opts := itemOptions(setAccessGroup, cfg)
	if setAccessible != "" {
		a, err := backend.ParseAccessible(setAccessible)
		if err != nil {
			return err
		}
		opts = append(opts, lockbox.WithAccessible(a))
	}

	var payload any = value
	if setJSON {
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("value is not valid JSON")
		}
		payload = json.RawMessage(value)
	}

	if err := store.SaveContext(cmd.Context(), service, account, payload, opts...); err != nil {
		return err
	}
	fmt.Printf("Secret %s/%s stored\n", service, account)
	return nil
}

// readSecretValue reads the secret from the terminal without echo, or from a
// pipe when stdin is not a terminal.
func readSecretValue() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Enter secret value: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		fmt.Println()
		return string(b), nil
	}

	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}
