package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/deckbinder/deckbinder/internal/config"
	"github.com/deckbinder/deckbinder/internal/database"
	"github.com/deckbinder/deckbinder/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "deckbinder-admin",
	Short: "administrative tasks for the trade database",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config")
}

// connect loads the config and opens the database for a subcommand run.
func connect(ctx context.Context) (*database.DB, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return database.New(ctx, cfg.DB)
}

func main() {
	customHandler := logger.NewHandler("Deckbinder-Admin")
	slog.SetDefault(slog.New(customHandler))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
