package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Runs database migrations for the trade aggregates and the event
outbox. Useful for CI/CD pipelines or initial setup.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log.Info().Msg("Connecting to database")
	db, _, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	log.Info().Msg("Running database migrations")
	if err := database.Migrate(db); err != nil {
		return err
	}

	log.Info().Msg("Database migrations completed")
	return nil
}
