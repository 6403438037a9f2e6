package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/soyeahso/slotchat/internal/chat"
	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/history"
	"github.com/soyeahso/slotchat/internal/hooks"
	"github.com/soyeahso/slotchat/internal/identity"
	"github.com/soyeahso/slotchat/internal/metrics"
	"github.com/soyeahso/slotchat/internal/transport"
)

// identityFlags override the configured identity for one invocation.
type identityFlags struct {
	id   string
	role string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "as", "", "user id (overrides identity.id)")
	cmd.Flags().StringVar(&f.role, "role", "", "role: consumer, publisher, admin, superadmin (overrides identity.role)")
}

func (f identityFlags) resolve(ctx context.Context, cfg config.IdentityConfig) (domain.Identity, error) {
	if f.id != "" {
		cfg.ID = f.id
	}
	if f.role != "" {
		cfg.Role = strings.ToLower(f.role)
	}
	id, err := identity.FromConfig(cfg).Resolve(ctx)
	if errors.Is(err, identity.ErrMissingID) {
		return id, fmt.Errorf("%w: set identity.id or pass --as", err)
	}
	return id, err
}

// newHub wires the transport, history client, command hooks and a fresh
// metrics registry. The registry is only scraped when --metrics-addr is set.
func newHub(cfg config.Config) (*chat.Hub, *prometheus.Registry) {
	hookMgr := hooks.NewManager(log)
	if n := hooks.RegisterCommands(hookMgr, cfg.Hooks); n > 0 {
		log.Debug().Int("hooks", n).Msg("command hooks registered")
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := chat.NewHub(
		transport.New(cfg.Transport, log, transport.WithMetrics(m)),
		history.New(cfg.API),
		log,
		chat.WithHooks(hookMgr),
		chat.WithMetrics(m),
	)
	return hub, reg
}

// console serializes terminal output and prints each message once.
type console struct {
	mu      sync.Mutex
	out     io.Writer
	self    string
	printed map[string]struct{}
}

func newConsole(out io.Writer, self string) *console {
	return &console{out: out, self: self, printed: make(map[string]struct{})}
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *console) message(m domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := m.Key()
	if _, dup := c.printed[k]; dup {
		return
	}
	c.printed[k] = struct{}{}
	fmt.Fprintln(c.out, formatMessage(m, c.self))
}

func formatMessage(m domain.Message, self string) string {
	who := fmt.Sprintf("%s (%s)", m.Sender, m.SenderRole)
	if m.Sender == self {
		who = "you"
	}
	return fmt.Sprintf("%s %s: %s", m.Timestamp.Local().Format("15:04:05"), who, m.Content)
}

func describeState(st transport.Status) string {
	switch st.State {
	case transport.Connecting:
		return "* connecting"
	case transport.Connected:
		return "* connected"
	case transport.Reconnecting:
		return fmt.Sprintf("* connection lost, retrying in %s (attempt %d)", st.Delay.Round(time.Millisecond), st.Attempt)
	case transport.GivenUp:
		return "* gave up reconnecting, type /reconnect to try again"
	default:
		return "* " + st.State.String()
	}
}

func describeSendError(err error) string {
	var nce *transport.NotConnectedError
	var pe *chat.PersistError
	var le *chat.LiveError
	switch {
	case errors.As(err, &nce):
		return fmt.Sprintf("! not sent: %s", nce.State)
	case errors.As(err, &pe):
		return fmt.Sprintf("! delivered live but not saved: %v", pe.Err)
	case errors.As(err, &le):
		return fmt.Sprintf("! saved, live delivery failed (do not resend): %v", le.Err)
	default:
		return "! " + err.Error()
	}
}
