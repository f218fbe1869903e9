package main

import (
	"github.com/spf13/cobra"

	"guestvault/internal/config"
	"guestvault/internal/domain/vault"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List file records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cfg, func(svc *vault.Service) error {
				files, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					items := make([]vault.FileResponse, 0, len(files))
					for _, f := range files {
						items = append(items, vault.NewFileResponse(f))
					}
					return writeJSON(cmd.OutOrStdout(), items)
				}
				return writeFileTable(cmd.OutOrStdout(), files)
			})
		},
	}
}
