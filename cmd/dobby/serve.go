package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alekspetrov/dobby/internal/adapters/feishu"
	"github.com/alekspetrov/dobby/internal/banner"
	"github.com/alekspetrov/dobby/internal/comms"
	"github.com/alekspetrov/dobby/internal/dispatch"
	"github.com/alekspetrov/dobby/internal/gateway"
	"github.com/alekspetrov/dobby/internal/health"
	"github.com/alekspetrov/dobby/internal/intent"
	"github.com/alekspetrov/dobby/internal/logging"
	"github.com/alekspetrov/dobby/internal/mention"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		Long: `Start the event gateway and the dispatcher.

Feishu event callbacks are received on /webhook/event. With
gateway.dev_console enabled, a websocket chat console is served on /ws.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logCloser, err := logging.Init(cfg.Logging)
			if err != nil {
				return fmt.Errorf("initializing logging: %w", err)
			}
			defer func() { _ = logCloser.Close() }()
			log := logging.WithComponent("serve")

			dates, err := dateParser(cfg)
			if err != nil {
				return err
			}

			client := feishu.NewClient(cfg.Feishu)
			records, storeCloser, err := openRecordStore(cfg, client)
			if err != nil {
				return err
			}
			defer func() { _ = storeCloser.Close() }()

			llm := intent.NewLLMClient(cfg.LLM)
			if !llm.Enabled() {
				log.Warn("LLM not configured; every message uses the rule-based classifier")
			}

			window := comms.DefaultDedupWindow
			if cfg.Dispatch != nil {
				window = cfg.Dispatch.DedupWindow
			}

			bot := mention.NewBotIdentity(client.BotID)
			d := dispatch.New(dispatch.Deps{
				Dedup:      comms.NewDedupWindow(window),
				Resolver:   mention.NewResolver(cfg.Feishu.BotAliases),
				Bot:        bot,
				Classifier: intent.NewClassifier(llm),
				Tasks:      newAdapter(records, llm),
				Native:     client,
				Dates:      dates,
			})

			srv := gateway.NewServer(cfg.Gateway, d,
				gateway.WithReplySink(client),
				gateway.WithVerificationToken(cfg.Feishu.VerificationToken),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Start(gctx)
			})
			g.Go(func() error {
				// Resolve the bot id up front; the dispatcher retries on demand if this fails.
				if id := bot.ID(gctx); id == "" {
					log.Warn("Bot id unknown; group messages rely on alias matching until it resolves")
				}
				return nil
			})

			addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
			banner.StartupWithHealth(cmd.OutOrStdout(), version, addr, health.RunChecks(cfg))
			log.Info("Dobby started",
				slog.String("store", cfg.Store.Backend),
				slog.Bool("llm", llm.Enabled()))

			err = g.Wait()
			d.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("Dobby stopped")
			return nil
		},
	}
}
