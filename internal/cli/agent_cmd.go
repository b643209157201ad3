package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soyeahso/funnelbot/internal/agent"
	"github.com/soyeahso/funnelbot/internal/domain"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agents",
		Aliases: []string{"agent"},
		Short:   "Manage agents in the configured store",
	}

	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsAddCmd())
	cmd.AddCommand(newAgentsRemoveCmd())
	cmd.AddCommand(newAgentsSetDefaultCmd())
	return cmd
}

// withCatalog opens the configured store for the duration of fn.
func withCatalog(fn func(*agent.Catalog) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := openAgentStore(cfg, paths.Database, log)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(agent.NewCatalog(backend.Store, log))
}

func newAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(c *agent.Catalog) error {
				agents, err := c.List(cmd.Context())
				if err != nil {
					return err
				}
				printAgents(cmd.OutOrStdout(), agents)
				return nil
			})
		},
	}
}

func printAgents(out io.Writer, agents []domain.AgentConfig) {
	if len(agents) == 0 {
		fmt.Fprintln(out, "(no agents)")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEFAULT\tKEYWORDS")
	for _, a := range agents {
		def := ""
		if a.IsDefault {
			def = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Name, def, strings.Join(a.Keywords, ", "))
	}
	tw.Flush()
}

func newAgentsAddCmd() *cobra.Command {
	var in agent.AgentInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(c *agent.Catalog) error {
				created, err := c.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created agent %s (%s)\n", created.ID, created.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "agent name")
	cmd.Flags().StringVar(&in.SystemPrompt, "prompt", "", "system prompt")
	cmd.Flags().StringSliceVar(&in.Keywords, "keywords", nil, "comma-separated routing keywords; a lone * never matches")
	cmd.Flags().BoolVar(&in.IsDefault, "default", false, "make this the default agent")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newAgentsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an agent",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(c *agent.Catalog) error {
				if err := c.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed agent %s\n", args[0])
				return nil
			})
		},
	}
}

func newAgentsSetDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <id>",
		Short: "Make an agent the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(c *agent.Catalog) error {
				a, err := c.SetDefault(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Default agent is now %s (%s)\n", a.ID, a.Name)
				return nil
			})
		},
	}
}
