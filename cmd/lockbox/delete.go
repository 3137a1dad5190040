package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <service> <account>",
	Short:   "Remove a secret",
	Long:    "Remove a secret. Deleting a secret that does not exist is not an error.",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(2),
	RunE:    runDelete,
}

var deleteAccessGroup string

func init() {
	deleteCmd.Flags().StringVar(&deleteAccessGroup, "access-group", "", "Scope the removal to an access group")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	service, account := args[0], args[1]

	store, cfg, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	existed, err := store.DeleteContext(cmd.Context(), service, account, itemOptions(deleteAccessGroup, cfg)...)
	if err != nil {
		return err
	}
	if !existed {
		fmt.Printf("Secret %s/%s not found, nothing to delete\n", service, account)
		return nil
	}
	fmt.Printf("Secret %s/%s deleted\n", service, account)
	return nil
}
