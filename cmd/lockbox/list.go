package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list <service>",
	Short:   "List the accounts stored under a service",
	Aliases: []string{"ls"},
	Args:    cobra.ExactArgs(1),
	RunE:    runList,
}

var listAccessGroup string

func init() {
	listCmd.Flags().StringVar(&listAccessGroup, "access-group", "", "List one access group only")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	service := args[0]

	store, cfg, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	accounts, err := store.AccountsContext(cmd.Context(), service, itemOptions(listAccessGroup, cfg)...)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		fmt.Println("No secrets stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT")
	for _, account := range accounts {
		fmt.Fprintln(w, account)
	}
	w.Flush()
	return nil
}
