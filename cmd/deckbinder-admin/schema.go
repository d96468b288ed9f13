package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "create missing tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := connect(ctx)
		if err != nil {
			slog.Error("Failed to connect to database", slog.Any("error", err))
			return err
		}
		defer db.Close()

		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Schema initialization failed", slog.Any("error", err))
			return err
		}

		slog.Info("Schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
