package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/server"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

func resendNotificationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend-notifications [id...]",
		Short: "resend failed notifications",
		Long:  "resend the given failed notifications, or all pending ones when no ids are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			deps, cleanup, err := server.Connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			res, err := deps.Notifier.Resend(cmd.Context(), args)
			if err != nil {
				return err
			}
			logger.Infof("resend: %d sent, %d failed, %d skipped", len(res.Sent), len(res.Failed), len(res.Skipped))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func syncAutorisatiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-autorisaties",
		Short: "bring autorisaties in line with their autorisatie specs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			deps, cleanup, err := server.Connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			srv, err := server.New(*deps)
			if err != nil {
				return err
			}
			if err := srv.Autorisaties.Sync(cmd.Context(), srv.Catalogi); err != nil {
				return err
			}
			logger.Infof("autorisaties synchronised")
			return nil
		},
	}
}
