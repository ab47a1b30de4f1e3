package main

import (
	"fmt"

	"github.com/KramerO/ollama-flow-sub002/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	cmd.AddCommand(newDBMigrateCmd(g))
	return cmd
}

func newDBMigrateCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the message, agent and workflow tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables (%s)\n", len(db.AllModels()), a.cfg.Database.Driver)
			return nil
		},
	}
}
