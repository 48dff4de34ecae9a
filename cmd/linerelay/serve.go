package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/linerelay/internal/adapters/line"
	"github.com/alekspetrov/linerelay/internal/admission"
	"github.com/alekspetrov/linerelay/internal/banner"
	"github.com/alekspetrov/linerelay/internal/briefs"
	"github.com/alekspetrov/linerelay/internal/config"
	"github.com/alekspetrov/linerelay/internal/delivery"
	"github.com/alekspetrov/linerelay/internal/gateway"
	"github.com/alekspetrov/linerelay/internal/generator"
	"github.com/alekspetrov/linerelay/internal/indicator"
	"github.com/alekspetrov/linerelay/internal/logging"
	"github.com/alekspetrov/linerelay/internal/orchestrator"
)

const drainTimeout = time.Minute

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook gateway",
		Long: `Start the HTTP gateway that receives LINE webhook events.

Routes:
  POST /callback   LINE webhook (signature verified)
  GET  /health     liveness and gate usage
  GET  /metrics    Prometheus text exposition
  GET  /ws         live pipeline event stream

Examples:
  linerelay serve
  linerelay serve --port 8080
  linerelay serve --config ./linerelay.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Gateway.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
			banner.StartupWithHealth(cmd.OutOrStdout(), "v"+version, addr, cfg)

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override gateway port")

	return cmd
}

// relay holds the wired pipeline.
type relay struct {
	orchestrator *orchestrator.Orchestrator
	gateway      *gateway.Server
	scheduler    *briefs.Scheduler
}

func buildRelay(cfg *config.Config) *relay {
	p := cfg.Pipeline

	lineClient := line.NewClient(cfg.Line)
	sessions := gateway.NewSessionManager()

	orch := orchestrator.New(p.OrchestratorConfig(), orchestrator.Deps{
		Gate:       admission.NewGate(p.MaxConcurrent),
		Generator:  generator.NewClient(cfg.Generator),
		Indicator:  indicator.New(lineClient, p.IndicatorDuration, indicator.WithSignalTimeout(p.IndicatorTimeout)),
		Dispatcher: delivery.New(lineClient, p.DeliveryConfig()),
		Events:     sessions,
	})

	webhook := line.NewWebhookHandler(cfg.Line.ChannelSecret, orch)
	server := gateway.NewServer(cfg.Gateway, webhook,
		gateway.WithAuthConfig(cfg.Auth),
		gateway.WithMetrics(orch.Metrics()),
		gateway.WithGate(orch.Gate()),
		gateway.WithSessions(sessions),
	)

	scheduler := briefs.NewScheduler(
		briefs.NewGenerator(orch.Metrics(), orch.Gate()),
		briefs.NewDeliveryService(cfg.Briefs, briefs.WithPlatform(lineClient)),
		cfg.Briefs,
		nil,
	)

	return &relay{orchestrator: orch, gateway: server, scheduler: scheduler}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.WithComponent("serve")
	r := buildRelay(cfg)

	if err := r.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start brief scheduler: %w", err)
	}
	defer r.scheduler.Stop()

	// Start returns once ctx is cancelled and the listener is closed.
	if err := r.gateway.Start(ctx); err != nil {
		return fmt.Errorf("gateway error: %w", err)
	}

	log.Info("draining in-flight messages")
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := r.orchestrator.Wait(drainCtx); err != nil {
		log.Warn("in-flight messages abandoned", "error", err)
	}

	fmt.Fprintln(os.Stderr, "linerelay stopped")
	return nil
}
