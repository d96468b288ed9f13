package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/deckbinder/deckbinder/internal/migration"
)

var (
	importDataDir   string
	importBatchSize int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "import a legacy collection export into the trade database",
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

		importer := migration.NewImporter(db.BunDB(), importDataDir)
		importer.SetBatchSize(importBatchSize)

		if err := importer.ImportAll(ctx); err != nil {
			slog.Error("Import failed", slog.Any("error", err))
			return err
		}

		slog.Info("Import completed successfully!")
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDataDir, "data", "data", "directory holding the legacy export")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 1000, "rows per insert batch")
	rootCmd.AddCommand(importCmd)
}
