package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/slotchat/internal/chat"
	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/logging"
	"github.com/soyeahso/slotchat/internal/transport"
)

// run executes the CLI against an isolated home directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := root.Execute()
	return out.String(), err
}

func isolatedHome(t *testing.T) {
	t.Helper()
	t.Setenv("SLOTCHAT_HOME", t.TempDir())
	for _, k := range []string{"SLOTCHAT_TRANSPORT_URL", "SLOTCHAT_API_URL", "SLOTCHAT_API_TOKEN", "SLOTCHAT_IDENTITY_ID", "SLOTCHAT_IDENTITY_ROLE"} {
		t.Setenv(k, "")
	}
}

func TestVersionCommand(t *testing.T) {
	isolatedHome(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "slotchat")

	out, err = run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestStatusCommand(t *testing.T) {
	isolatedHome(t)
	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Transport: ws://localhost:3001")
	assert.Contains(t, out, "Identity:  (not configured)")
	assert.Contains(t, out, "token unset")
}

func TestConfigRoundTrip(t *testing.T) {
	isolatedHome(t)

	_, err := run(t, "config", "set", "relay.port", "4000")
	require.NoError(t, err)
	out, err := run(t, "config", "get", "relay.port")
	require.NoError(t, err)
	assert.Equal(t, "4000\n", out)

	_, err = run(t, "config", "set", "api.token", "abc123")
	require.NoError(t, err)
	out, err = run(t, "config", "get", "api")
	require.NoError(t, err)
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "abc123")

	out, err = run(t, "config", "get", "api.token", "--show-secrets")
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", out)

	_, err = run(t, "config", "unset", "api.token")
	require.NoError(t, err)
	_, err = run(t, "config", "get", "api.token")
	assert.Error(t, err)
}

func TestConfigValidateCommand(t *testing.T) {
	isolatedHome(t)

	out, err := run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	_, err = run(t, "config", "set", "identity.role", "guest")
	require.NoError(t, err)
	out, err = run(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "identity.role")
}

func TestChatRequiresIdentity(t *testing.T) {
	isolatedHome(t)
	_, err := run(t, "chat", "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--as")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "ws://relay:3001", parseValue("ws://relay:3001"))
}

func TestRedactSecrets(t *testing.T) {
	in := map[string]any{
		"baseUrl": "http://localhost:3001",
		"token":   "abc",
		"nested":  map[string]any{"token": "${CHAT_TOKEN}"},
	}
	got := redactSecrets("api", in).(map[string]any)
	assert.Equal(t, "http://localhost:3001", got["baseUrl"])
	assert.Equal(t, redacted, got["token"])
	assert.Equal(t, "${CHAT_TOKEN}", got["nested"].(map[string]any)["token"])
	assert.Equal(t, "abc", in["token"], "input must not be modified")
}

func TestFormatMessage(t *testing.T) {
	m := domain.Message{Sender: "u2", SenderRole: domain.RolePublisher, Content: "hi", Timestamp: time.Now()}
	assert.Contains(t, formatMessage(m, "c1"), "u2 (publisher): hi")
	assert.Contains(t, formatMessage(m, "u2"), "you: hi")
}

func TestDescribeState(t *testing.T) {
	assert.Equal(t, "* connected", describeState(transport.Status{State: transport.Connected}))
	assert.Equal(t, "* disconnected", describeState(transport.Status{State: transport.Disconnected}))
	assert.Contains(t,
		describeState(transport.Status{State: transport.Reconnecting, Delay: 1500 * time.Millisecond, Attempt: 2}),
		"retrying in 1.5s (attempt 2)")
	assert.Contains(t, describeState(transport.Status{State: transport.GivenUp}), "/reconnect")
}

func TestDescribeSendError(t *testing.T) {
	assert.Equal(t, "! not sent: reconnecting",
		describeSendError(&transport.NotConnectedError{State: transport.Reconnecting}))
	assert.Contains(t,
		describeSendError(&chat.PersistError{ThreadID: "p1", Err: errors.New("status 500")}),
		"not saved: status 500")
	assert.Equal(t, "! saved, live delivery failed (do not resend): broken pipe",
		describeSendError(&chat.LiveError{ThreadID: "p1", Err: errors.New("broken pipe")}))
	assert.Equal(t, "! boom", describeSendError(errors.New("boom")))
}

type emptyHistory struct{}

func (emptyHistory) Fetch(context.Context, string) ([]domain.Message, error) { return nil, nil }
func (emptyHistory) Persist(context.Context, string, domain.Message) error  { return nil }

func TestHandleChatLine(t *testing.T) {
	silent := logging.New(nil, "silent")
	hub := chat.NewHub(transport.New(config.Defaults().Transport, silent), emptyHistory{}, silent)
	surface := hub.NewSurface(domain.Identity{ID: "c1", Role: domain.RoleConsumer})
	sess, err := surface.Open(context.Background(), "p1", true)
	require.NoError(t, err)

	var out bytes.Buffer
	con := newConsole(&out, "c1")
	ctx := context.Background()

	assert.False(t, handleChatLine(ctx, con, hub, sess, "   "))
	assert.False(t, handleChatLine(ctx, con, hub, sess, "hello"))
	assert.False(t, handleChatLine(ctx, con, hub, sess, "/status"))
	assert.False(t, handleChatLine(ctx, con, hub, sess, "/bogus"))
	assert.True(t, handleChatLine(ctx, con, hub, sess, "/quit"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "! not sent: disconnected", lines[0])
	assert.Equal(t, "* disconnected", lines[1])
	assert.Contains(t, lines[2], "unknown command /bogus")
}

func TestConsolePrintsMessageOnce(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(&out, "c1")
	m := domain.Message{Sender: "u2", SenderRole: domain.RolePublisher, Content: "hi", Timestamp: time.Now()}
	con.message(m)
	con.message(m)
	assert.Equal(t, 1, strings.Count(out.String(), "hi"))
}
