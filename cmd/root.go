package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/config"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

// newRootCmd builds the command tree; tests build their own copy.
func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "openzaak",
		Short: "Open Zaak registration APIs",
		Example: `openzaak serve
openzaak generate-jwt --client-id <client-id> --secret <secret>
openzaak resend-notifications [<id>...]
openzaak sync-autorisaties`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug|info|warn|error")

	root.AddCommand(serveCmd())
	root.AddCommand(generateJWTCmd())
	root.AddCommand(resendNotificationsCmd())
	root.AddCommand(syncAutorisatiesCmd())
	root.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	root.CompletionOptions.HiddenDefaultCmd = true
	return root
}

// Execute runs the command line. This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig is shared by the commands that need the backends. A LOG_LEVEL from
// .env applies when --log-level was not given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if f := cmd.Flag("log-level"); f != nil && f.Value.String() == "" {
		logger.Init(cfg.LogLevel)
	}
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())
	return cfg, nil
}
