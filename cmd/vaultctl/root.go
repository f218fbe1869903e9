package main

import (
	"github.com/spf13/cobra"

	"guestvault/internal/config"
	"guestvault/internal/database"
	"guestvault/internal/domain/vault"
	"guestvault/internal/pkg/blobstore"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Maintenance commands for the file vault storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(
		newSweepCmd(cfg, &jsonOutput),
		newVerifyCmd(cfg, &jsonOutput),
		newListCmd(cfg, &jsonOutput),
	)
	return cmd
}

// withVault opens the catalog and storage named by cfg for the duration of fn.
func withVault(cfg *config.Config, fn func(*vault.Service) error) error {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := vault.Migrate(db); err != nil {
		return err
	}
	store, err := blobstore.New(cfg.UploadDir)
	if err != nil {
		return err
	}
	return fn(vault.NewService(vault.NewRepository(db), store))
}
