package cli

import (
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths     config.Paths
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slotchat",
		Short: "slotchat: realtime chat for link-slot purchases",
		Long: "slotchat connects buyers, publishers and admins of a link-slot purchase " +
			"over a shared realtime channel, and runs a development relay that serves it.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load(".env")

			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			opts := logging.Options{Level: "info"}
			if cfg, err := config.Load(paths.Config); err == nil {
				opts = logging.Options{
					Level: cfg.Logging.Level,
					Style: cfg.Logging.ConsoleStyle,
					File:  cfg.Logging.File,
				}
			}
			if logLevel != "" {
				opts.Level = logLevel
			}
			log, logCloser, err = logging.Open(opts)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.slotchat/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newRelayCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig loads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, &config.ConfigError{Message: "validation failed, run `slotchat status` for details"}
	}
	return cfg, nil
}
