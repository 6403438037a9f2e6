package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slotchat/internal/chat"
	"github.com/soyeahso/slotchat/internal/transport"
)

func newChatCmd() *cobra.Command {
	var (
		idf         identityFlags
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "chat <threadId>",
		Short: "Open an interactive chat on one purchase thread",
		Long: "Open an interactive chat on one purchase thread. Lines typed are sent to the thread.\n" +
			"Commands: /status, /reconnect, /quit.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID := args[0]
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
			hub.Start()
			defer hub.Close()

			surface := hub.NewSurface(id)
			defer surface.Close()

			sess, err := surface.Open(ctx, threadID, true)
			var he *chat.HistoryError
			switch {
			case errors.As(err, &he):
				con.println(fmt.Sprintf("! history unavailable (%v), showing live messages only", he.Err))
			case err != nil:
				return err
			}

			con.println(fmt.Sprintf("* thread %s as %s", threadID, id))
			for _, m := range sess.Messages() {
				con.message(m)
			}
			go func() {
				for m := range sess.Updates() {
					con.message(m)
				}
			}()
			go func() {
				for {
					select {
					case err := <-hub.Errors():
						log.Debug().Err(err).Msg("transport error")
					case <-ctx.Done():
						return
					}
				}
			}()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					select {
					case lines <- scanner.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if quit := handleChatLine(ctx, con, hub, sess, line); quit {
						return nil
					}
				}
			}
		},
	}

	idf.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	return cmd
}

// handleChatLine runs one line of input and reports whether to exit.
func handleChatLine(ctx context.Context, con *console, hub *chat.Hub, sess *chat.Session, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "/quit" || line == "/exit":
		return true
	case line == "/reconnect":
		hub.Reconnect()
	case line == "/status":
		con.println(describeState(hub.Status()))
	case strings.HasPrefix(line, "/"):
		con.println("! unknown command " + line + " (try /status, /reconnect, /quit)")
	default:
		if _, err := sess.Send(ctx, line); err != nil {
			con.println(describeSendError(err))
		}
	}
	return false
}
