package main

import (
	"github.com/spf13/cobra"

	"guestvault/internal/config"
	"guestvault/internal/domain/vault"
)

func newSweepCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete blobs that no file record references",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cfg, func(svc *vault.Service) error {
				res, err := svc.Sweep(cmd.Context(), !dryRun)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				action := "deleted"
				if res.DryRun {
					action = "would delete"
				}
				return writePlain(cmd.OutOrStdout(), "scanned %d blobs, %d orphaned, %s %d (%s), %d failed\n",
					res.Scanned, res.Orphans, action, orphanCount(res), formatBytes(res.ReclaimedBytes), res.Failed)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report orphans")
	return cmd
}

func orphanCount(res vault.SweepResult) int {
	if res.DryRun {
		return res.Orphans
	}
	return res.Deleted
}
