package main

import (
	"fmt"

	"github.com/mistapp/backend/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, err := openDB(); err != nil {
			return err
		}
		defer database.Close()

		if err := database.Migrate(); err != nil {
			return err
		}
		fmt.Println(success("Migrations completed"))
		return nil
	},
}
