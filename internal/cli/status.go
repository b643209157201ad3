package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/soyeahso/funnelbot/internal/config"
	"github.com/soyeahso/funnelbot/internal/gateway"
	"github.com/soyeahso/funnelbot/internal/version"
)

func newStatusCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connection status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			gray := color.New(color.FgHiBlack)

			fmt.Fprintf(out, "FunnelBot %s\n", version.Version)
			gray.Fprintf(out, "  config: %s\n  data:   %s\n\n", paths.Config, paths.Data)

			cfg, err := loadConfig()
			if err != nil {
				color.New(color.FgRed).Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := fetchStatus(ctx, gatewayURL(cfg.Gateway), cfg.Gateway.Auth.Token)
			printStatus(out, st, err)
			fmt.Fprintln(out)
			printConfigSummary(out, cfg)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for the running server")
	return cmd
}

// gatewayURL is the local address of a running gateway.
func gatewayURL(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	if cfg.Bind == "custom" && cfg.CustomBindHost != "" && cfg.CustomBindHost != "0.0.0.0" {
		host = cfg.CustomBindHost
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

// fetchStatus queries GET /status of a running server.
func fetchStatus(ctx context.Context, baseURL, token string) (gateway.StatusResponse, error) {
	var st gateway.StatusResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/status", nil)
	if err != nil {
		return st, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("GET /status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decoding status: %w", err)
	}
	return st, nil
}

func printStatus(out io.Writer, st gateway.StatusResponse, err error) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprint(out, "Server:  ")
	if err != nil {
		red.Fprintf(out, "not reachable (%v)\n", err)
		return
	}
	green.Fprintln(out, "running")

	fmt.Fprint(out, "WhatsApp: ")
	switch {
	case st.Connected:
		green.Fprintln(out, st.State)
	case st.HasQR:
		yellow.Fprintf(out, "%s (pairing code waiting, see /qr)\n", st.State)
	default:
		red.Fprint(out, st.State)
		if st.LastReason != "" {
			fmt.Fprintf(out, " (%s)", st.LastReason)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Attempts: %d\n", st.ConnectionAttempts)
	fmt.Fprintf(out, "Updated:  %s\n", st.Timestamp.Local().Format(time.RFC3339))
}

func printConfigSummary(out io.Writer, cfg config.Config) {
	fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%v\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Token != "")
	fmt.Fprintf(out, "Gemini:  model=%s timeout=%ds rpm=%d\n",
		cfg.Gemini.Model, cfg.Gemini.TimeoutSeconds, cfg.Gemini.RequestsPerMinute)
	fmt.Fprintf(out, "Bridge:  %s (max attempts %d)\n",
		cfg.WhatsApp.BridgeURL, cfg.WhatsApp.MaxReconnectAttempts)
	fmt.Fprintf(out, "Agents:  store=%s\n", cfg.Agents.Store)

	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
}
