package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/funnelbot/internal/agent"
)

func newAskCmd() *cobra.Command {
	var selectOnly bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Route a message to an agent and print the reply, without WhatsApp",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, err := openAgentStore(cfg, paths.Database, log)
			if err != nil {
				return err
			}
			defer backend.Close()

			agents, err := agent.NewCatalog(backend.Store, log).List(cmd.Context())
			if err != nil {
				return err
			}

			systemPrompt := ""
			if a, ok := agent.Select(text, agents); ok {
				systemPrompt = a.SystemPrompt
				fmt.Fprintf(out, "Agent: %s (%s)\n", a.Name, a.ID)
			} else {
				fmt.Fprintln(out, "Agent: (none)")
			}
			if selectOnly {
				return nil
			}

			if cfg.Gemini.APIKey == "" {
				return fmt.Errorf("gemini.apiKey is not set (or export GEMINI_API_KEY)")
			}
			reply := newGenerator(cfg, log).Generate(cmd.Context(), text, systemPrompt)
			fmt.Fprintln(out)
			fmt.Fprintln(out, reply)
			return nil
		},
	}

	cmd.Flags().BoolVar(&selectOnly, "select-only", false, "only show which agent would answer")
	return cmd
}
