package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/funnelbot/internal/agent"
	"github.com/soyeahso/funnelbot/internal/channel/whatsapp"
	"github.com/soyeahso/funnelbot/internal/config"
	"github.com/soyeahso/funnelbot/internal/connection"
	"github.com/soyeahso/funnelbot/internal/dedupe"
	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/gateway"
	"github.com/soyeahso/funnelbot/internal/hooks"
	"github.com/soyeahso/funnelbot/internal/routing"
)

func newServeCmd() *cobra.Command {
	cmd := newRunCmd()
	cmd.Use = "serve"
	cmd.Short = "Connect to WhatsApp and serve the HTTP API"
	return cmd
}

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the funnelbot gateway server",
	}

	cmd.AddCommand(newRunCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot and the gateway server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating funnelbot home: %w", err)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (lan, loopback, custom)")

	return cmd
}

// serve wires every component and runs until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	rootLog, logFile, err := openServeLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	backend, err := openAgentStore(cfg, paths.Database, rootLog)
	if err != nil {
		return err
	}
	defer backend.Close()
	rootLog.Info().Str("store", cfg.Agents.Store).Msg("agent store ready")

	catalog := agent.NewCatalog(backend.Store, rootLog)

	hookMgr := hooks.NewManager(rootLog)
	if config.Enabled(cfg.Hooks.LogEvents, true) {
		hookMgr.LogEvents(rootLog)
	}

	wa := cfg.WhatsApp
	dialer := whatsapp.NewDialer(wa.BridgeURL, whatsapp.Browser{
		Name:    wa.Browser.Name,
		Client:  wa.Browser.Client,
		Version: wa.Browser.Version,
	}, rootLog)
	mgr := connection.NewManager(dialer, rootLog,
		connection.WithMaxAttempts(wa.MaxReconnectAttempts),
		connection.WithReconnectDelay(time.Duration(wa.ReconnectDelaySeconds)*time.Second),
		connection.WithRestartDelay(time.Duration(wa.RestartDelaySeconds)*time.Second),
		connection.WithCredentials(whatsapp.NewCredentialStore(wa.AuthDir)),
	)

	dispatchOpts := []routing.Option{
		routing.WithHooks(hookMgr),
		routing.WithDedupe(dedupe.New(
			time.Duration(cfg.Dispatch.DedupeTTLMinutes)*time.Minute,
			cfg.Dispatch.DedupeMaxEntries,
		)),
		routing.WithPresence(config.Enabled(cfg.Dispatch.Presence, true)),
	}
	if cfg.Replies.Failure != "" {
		dispatchOpts = append(dispatchOpts, routing.WithFailureReply(cfg.Replies.Failure))
	}

	srvOpts := []gateway.ServerOption{
		gateway.WithConnection(mgr),
		gateway.WithCatalog(catalog),
		gateway.WithHooks(hookMgr),
	}

	if backend.DB != nil && config.Enabled(cfg.Dispatch.Journal, true) {
		dispatchOpts = append(dispatchOpts, routing.WithJournal(backend.DB))
		srvOpts = append(srvOpts, gateway.WithJournal(backend.DB))
		rootLog.Info().Msg("dispatch journal enabled")
	}

	dispatcher := routing.NewDispatcher(mgr, catalog, newGenerator(cfg, rootLog), rootLog, dispatchOpts...)
	mgr.SetMessageHandler(dispatcher.Handle)
	mgr.OnStatusChange(func(st domain.ConnectionStatus) {
		hookMgr.EmitAsync(context.WithoutCancel(ctx), hooks.EventConnectionState, map[string]any{
			"state":          st.State.String(),
			"attempts":       st.Attempts,
			"hasPairingCode": st.HasPairingCode(),
			"reason":         st.LastReason,
		})
	})

	srv := gateway.New(cfg.Gateway, rootLog, srvOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error { return srv.Start(gctx) })

	rootLog.Info().
		Int("port", cfg.Gateway.Port).
		Str("model", cfg.Gemini.Model).
		Str("bridge", wa.BridgeURL).
		Msg("funnelbot running")

	return g.Wait()
}
