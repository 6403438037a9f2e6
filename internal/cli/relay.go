package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/soyeahso/slotchat/internal/hooks"
	"github.com/soyeahso/slotchat/internal/metrics"
	"github.com/soyeahso/slotchat/internal/relay"
	"github.com/soyeahso/slotchat/internal/store"
)

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Manage the development relay server",
	}

	cmd.AddCommand(newRelayRunCmd())
	return cmd
}

func newRelayRunCmd() *cobra.Command {
	var (
		port   int
		bind   string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay (WebSocket fan-out plus chat history API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Relay.Port = port
			}
			if bind != "" {
				cfg.Relay.Bind = bind
			}
			if dbPath != "" {
				cfg.Relay.Database = dbPath
			}
			if cfg.Relay.Database == "" {
				if err := paths.EnsureDirs(); err != nil {
					return fmt.Errorf("creating data directories: %w", err)
				}
				cfg.Relay.Database = paths.RelayDatabase()
			}

			db, err := store.Open(cfg.Relay.Database, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			log.Info().Str("path", cfg.Relay.Database).Msg("using SQLite message store")

			hookMgr := hooks.NewManager(log)
			if n := hooks.RegisterCommands(hookMgr, cfg.Hooks); n > 0 {
				log.Info().Int("hooks", n).Msg("command hooks registered")
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			srv := relay.New(cfg.Relay, store.NewMessageStore(db), log,
				relay.WithHooks(hookMgr),
				relay.WithMetrics(metrics.New(reg), reg),
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback, lan, custom (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path, or :memory:")

	return cmd
}
