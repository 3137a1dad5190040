package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <service> <account>",
	Short: "Retrieve a secret",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var (
	getAccessGroup string
	getJSON        bool
)

func init() {
	getCmd.Flags().StringVar(&getAccessGroup, "access-group", "", "Scope the lookup to an access group")
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Print the stored JSON document instead of the decoded string")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	service, account := args[0], args[1]

	store, cfg, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	opts := itemOptions(getAccessGroup, cfg)

	if getJSON {
		var raw json.RawMessage
		if err := store.ReadContext(cmd.Context(), service, account, &raw, opts...); err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	var value string
	if err := store.ReadContext(cmd.Context(), service, account, &value, opts...); err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}
