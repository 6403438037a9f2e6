package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slotchat/internal/envelope"
	"github.com/soyeahso/slotchat/internal/transport"
)

func newWatchCmd() *cobra.Command {
	var (
		idf         identityFlags
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch <threadId>...",
		Short: "Print incoming messages and unread counts for several threads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			id, err := idf.resolve(ctx, cfg.Identity)
			if err != nil {
				return err
			}

			con := newConsole(cmd.OutOrStdout(), id.ID)
			hub, reg := newHub(cfg)
			if metricsAddr != "" {
				if _, err := serveMetrics(ctx, metricsAddr, reg); err != nil {
					return err
				}
			}
			hub.OnStateChange(func(st transport.Status) { con.println(describeState(st)) })

			surface := hub.NewSurface(id)
			defer surface.Close()
			surface.Watch(args...)

			// Subscribed after Watch so the counts already include the message.
			for _, threadID := range args {
				sub := hub.Router().Subscribe(threadID, func(c envelope.Chat) {
					if c.Message.Sender == id.ID {
						return
					}
					con.println(fmt.Sprintf("[%s] %s  (unread %d, total %d)",
						c.ThreadID, formatMessage(c.Message, id.ID), surface.Unread(c.ThreadID), surface.TotalUnread()))
				})
				defer hub.Router().Unsubscribe(sub)
			}

			hub.Start()
			defer hub.Close()

			con.println(fmt.Sprintf("* watching %d thread(s) as %s, Ctrl-C to stop", len(args), id))
			<-ctx.Done()
			return nil
		},
	}

	idf.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	return cmd
}
