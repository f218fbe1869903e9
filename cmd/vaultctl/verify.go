package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"guestvault/internal/config"
	"guestvault/internal/domain/vault"
)

func newVerifyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Rehash stored blobs and report missing or corrupt files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cfg, func(svc *vault.Service) error {
				res, err := svc.Verify(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					if err := writePlain(out, "checked %d records, %d blobs\n", res.Records, res.Blobs); err != nil {
						return err
					}
					for _, id := range res.Missing {
						if err := writePlain(out, "missing: file %d\n", id); err != nil {
							return err
						}
					}
					for _, id := range res.Corrupt {
						if err := writePlain(out, "corrupt: file %d\n", id); err != nil {
							return err
						}
					}
				}
				if n := len(res.Missing) + len(res.Corrupt); n > 0 {
					return fmt.Errorf("%d file(s) failed verification", n)
				}
				return nil
			})
		},
	}
}
