package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/server"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the Catalogi, Documenten and Besluiten APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v notifications=%s",
				cfg.Keycloak.URL != "", cfg.Storage.Backend == "mongo", cfg.Redis.Host != "",
				cfg.MinIO.Endpoint != "", cfg.Notifications.Backend)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, cleanup, err := server.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			srv, err := server.New(*deps)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
