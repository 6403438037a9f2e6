package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/version"
)

func newStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show slotchat status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slotchat %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}

			b := cfg.Transport.Backoff
			fmt.Fprintf(out, "Transport: %s\n", cfg.Transport.URL)
			fmt.Fprintf(out, "Backoff:   initial=%s factor=%g max=%s jitter=%g giveUp=%v\n",
				b.Initial(), b.Factor, b.Max(), b.Jitter, b.GiveUpEnabled())
			fmt.Fprintf(out, "History:   %s (token %s)\n", cfg.API.BaseURL, present(cfg.API.Token))

			if cfg.Identity.ID != "" {
				fmt.Fprintf(out, "Identity:  %s (%s)\n", cfg.Identity.ID, cfg.Identity.Role)
			} else {
				fmt.Fprintln(out, "Identity:  (not configured)")
			}

			db := cfg.Relay.Database
			if db == "" {
				db = paths.RelayDatabase()
			}
			fmt.Fprintf(out, "Relay:     port=%d bind=%s db=%s rate=%g/s burst=%d token %s\n",
				cfg.Relay.Port, cfg.Relay.Bind, db, cfg.Relay.RateLimit.RPS, cfg.Relay.RateLimit.Burst, present(cfg.Relay.Token))

			h := cfg.Hooks
			fmt.Fprintf(out, "Hooks:     %d command(s)\n",
				len(h.ConnectionState)+len(h.GivenUp)+len(h.MessageReceived)+len(h.MessageSending)+len(h.RelayStart)+len(h.RelayStop))

			if check {
				fmt.Fprintf(out, "Reachable: %s\n", checkHealth(cmd.Context(), cfg.API.BaseURL))
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "check that the history endpoint answers /health")
	return cmd
}

func present(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

// checkHealth reports whether baseURL/health answers.
func checkHealth(ctx context.Context, baseURL string) string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/health", nil)
	if err != nil {
		return "error: " + err.Error()
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "no: " + err.Error()
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &health) != nil {
		return fmt.Sprintf("no: status %d", resp.StatusCode)
	}
	return fmt.Sprintf("yes (%s, %d client(s))", health.Status, health.Clients)
}
