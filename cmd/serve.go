package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/streetlabs/bobwire/internal/config"
	"github.com/streetlabs/bobwire/internal/control"
	"github.com/streetlabs/bobwire/internal/orchestrator"
	"github.com/streetlabs/bobwire/internal/platform/discord"
	"github.com/streetlabs/bobwire/internal/providers"
	"github.com/streetlabs/bobwire/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and start responding",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	if err := serve(); err != nil {
		slog.Error("serve failed", "error", err)
		os.Exit(1)
	}
}

func serve() error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	agent, disc, ctl, _ := cfg.Snapshot()
	if disc.Token == "" {
		return fmt.Errorf("no discord token: set BOBWIRE_DISCORD_TOKEN or run `bobwire onboard`")
	}

	st, err := store.NewSQLite(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	gen := pickGenerator(agent)
	slog.Info("generation backend selected", "provider", gen.Name())

	var vault *control.Vault
	var issueToken func() string
	if ctl.Enabled {
		vault = control.NewVault()
		issueToken = vault.Issue
	}

	client, err := discord.New(discord.Config{
		Token:             disc.Token,
		OwnerID:           disc.OwnerID,
		IssueControlToken: issueToken,
	})
	if err != nil {
		return err
	}

	orch := orchestrator.New(client, st, gen, orchestrator.Config{
		CallName:     agent.CallName,
		OwnerID:      disc.OwnerID,
		Model:        agent.Model,
		HistoryLimit: agent.HistoryLimit,
	})
	defer orch.Stop()

	var handler discord.Handler = orch
	var ctlServer *control.Server
	if ctl.Enabled {
		ctlServer = control.NewServer(fmt.Sprintf("%s:%d", ctl.Host, ctl.Port), orch, vault)
		handler = &eventTap{inner: orch, server: ctlServer}
	}
	client.SetHandler(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if ctlServer != nil {
		g.Go(func() error {
			return ctlServer.Start(ctx)
		})
	}

	g.Go(func() error {
		return config.Watch(ctx, cfgPath, cfg, func() {
			freshAgent, freshDisc, _, _ := cfg.Snapshot()
			orch.ApplyConfig(orchestrator.Config{
				CallName:     freshAgent.CallName,
				OwnerID:      freshDisc.OwnerID,
				Model:        freshAgent.Model,
				HistoryLimit: freshAgent.HistoryLimit,
			})
			slog.Info("reloadable settings applied; restart to change connection settings")
		})
	})

	g.Go(func() error {
		<-ctx.Done()
		return client.Stop(context.Background())
	})

	slog.Info("bobwire running", "call_name", agent.CallName, "control_enabled", ctl.Enabled)
	return g.Wait()
}

// pickGenerator selects the backend from config. With no API key configured
// the bot still runs, replying with a fixed apology so the rest of the
// pipeline stays observable.
func pickGenerator(agent config.AgentConfig) providers.Generator {
	switch agent.Provider {
	case "openai":
		if agent.OpenAIAPIKey != "" {
			var opts []providers.OpenAIOption
			if agent.Model != "" {
				opts = append(opts, providers.WithOpenAIModel(agent.Model))
			}
			return providers.NewOpenAIGenerator(agent.OpenAIAPIKey, opts...)
		}
	default:
		if agent.AnthropicAPIKey != "" {
			var opts []providers.AnthropicOption
			if agent.Model != "" {
				opts = append(opts, providers.WithAnthropicModel(agent.Model))
			}
			return providers.NewAnthropicGenerator(agent.AnthropicAPIKey, opts...)
		}
	}
	slog.Warn("no provider API key configured; responses will be a fixed notice",
		"provider", agent.Provider)
	return providers.NewUnconfigured()
}

// eventTap forwards platform events to the orchestrator and mirrors them to
// the control surface's event stream.
type eventTap struct {
	inner  discord.Handler
	server *control.Server
}

func (t *eventTap) OnMessage(ctx context.Context, ev orchestrator.MessageEvent) {
	t.inner.OnMessage(ctx, ev)
	t.server.Broadcast(control.Event{
		Name: "message",
		Payload: map[string]string{
			"channel_id": ev.ChannelID,
			"author":     ev.AuthorName,
		},
	})
}

func (t *eventTap) OnTyping(ev orchestrator.TypingEvent) {
	t.inner.OnTyping(ev)
}
