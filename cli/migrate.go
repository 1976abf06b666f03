package cli

import (
	"log"

	"github.com/camden-git/studiobackend/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.InitGormDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		if err := database.AutoMigrateModels(db); err != nil {
			return err
		}
		log.Printf("Database schema is up to date (%s)", cfg.DatabaseDriver)
		return nil
	},
}
