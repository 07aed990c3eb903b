package main

import (
	"fmt"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/seed"
	"github.com/spf13/cobra"
)

var (
	seedUsers int
	seedPosts int
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with development or test data",
}

var seedDevCmd = &cobra.Command{
	Use:   "dev",
	Short: "Seed the development database with realistic data",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.MigrateDB(db); err != nil {
			return err
		}

		seeder := seed.NewSeeder(db)
		if err := seeder.SeedDev(cmd.Context(), seedUsers, seedPosts); err != nil {
			return err
		}
		if len(cfg.Jobs.SystemVoters) > 0 {
			if err := seeder.SeedSystemVoters(cmd.Context(), cfg.Jobs.SystemVoters); err != nil {
				return err
			}
		}
		fmt.Println(success("Development database seeded"))
		fmt.Printf("All seeded accounts use the password %q\n", seed.DefaultPassword)
		return nil
	},
}

var seedTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Seed fixed test accounts (alice, bob, charlie, diana, admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.MigrateDB(db); err != nil {
			return err
		}

		if err := seed.NewSeeder(db).SeedTest(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(success("Test data seeded"))
		return nil
	},
}

var seedCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete ALL data (use with caution)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if cfg.Environment == "production" && !seedForce {
			return fmt.Errorf("refusing to clean a production database without --force")
		}
		if err := seed.NewSeeder(db).Clean(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(warning("All data deleted"))
		return nil
	},
}

func init() {
	seedDevCmd.Flags().IntVar(&seedUsers, "users", 50, "Number of users to create")
	seedDevCmd.Flags().IntVar(&seedPosts, "posts", 200, "Number of posts to create")
	seedCleanCmd.Flags().BoolVar(&seedForce, "force", false, "Allow cleaning a production database")

	seedCmd.AddCommand(seedDevCmd)
	seedCmd.AddCommand(seedTestCmd)
	seedCmd.AddCommand(seedCleanCmd)
}
