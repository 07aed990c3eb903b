package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mistapp/backend/internal/config"
	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	logLevel string

	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "mist",
	Short: "Mist CLI - administer a Mist backend",
	Long: `Mist CLI runs maintenance tasks against the database configured by the
environment (.env, DATABASE_DRIVER, DATABASE_URL) and drives load tests
against a running API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return logger.Initialize(logLevel, "")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(loadtestCmd)
}

// openDB loads configuration and connects to its database
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := database.Initialize(cfg.Database.Driver, cfg.Database.URL, false); err != nil {
		return nil, nil, err
	}
	return cfg, database.DB, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "%s %v\n", failure("Error:"), err)
		os.Exit(1)
	}
}
