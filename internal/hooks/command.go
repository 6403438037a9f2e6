package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/slotchat/internal/config"
)

const defaultCommandTimeout = 10 * time.Second

// RegisterCommands binds every configured shell command to its event and
// returns how many were registered.
func RegisterCommands(m *Manager, cfg config.HooksConfig) int {
	sets := []struct {
		event   Event
		entries []config.HookEntry
	}{
		{EventConnectionState, cfg.ConnectionState},
		{EventGivenUp, cfg.GivenUp},
		{EventMessageReceived, cfg.MessageReceived},
		{EventMessageSending, cfg.MessageSending},
		{EventRelayStart, cfg.RelayStart},
		{EventRelayStop, cfg.RelayStop},
	}

	n := 0
	for _, set := range sets {
		for i, entry := range set.entries {
			m.On(set.event, fmt.Sprintf("command:%s[%d]", set.event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}

// CommandHandler runs entry.Command through sh with the JSON payload on
// stdin and SLOTCHAT_EVENT set to the event name.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := time.Duration(entry.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	return func(ctx context.Context, p Payload) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(data)
		cmd.Env = append(os.Environ(), "SLOTCHAT_EVENT="+string(p.Event))
		cmd.WaitDelay = time.Second

		out, err := cmd.CombinedOutput()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook %q timed out after %s", entry.Command, timeout)
			}
			return fmt.Errorf("hook %q: %w: %s", entry.Command, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
