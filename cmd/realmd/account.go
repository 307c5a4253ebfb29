package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmmo/realmd/pkg/account"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts in the configured database",
	}
	cmd.AddCommand(accountCreateCmd())
	return cmd
}

func accountCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <password>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			repo, err := account.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer repo.Close()

			created, err := repo.Create(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("created account %q with id %d\n", created.Name, created.ID)
			return nil
		},
	}
}
