package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/netwatch/internal/alert"
	"github.com/netwatch/internal/api"
	"github.com/netwatch/internal/config"
	"github.com/netwatch/internal/database"
	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/monitor"
	"github.com/netwatch/internal/notify"
	"github.com/netwatch/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert engine, scheduler and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("server")

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	var (
		catalog   alert.RuleCatalog
		ruleStore api.RuleStore
	)
	if cfg.Engine.RulesFile != "" {
		fc, err := alert.NewFileCatalog(cfg.Engine.RulesFile)
		if err != nil {
			return err
		}
		catalog = fc
	} else {
		rm := alert.NewRuleManager(db)
		if cfg.Engine.SeedDefaultRules {
			if err := rm.CreateDefaultRules(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to create default rules")
			}
		}
		catalog, ruleStore = rm, rm
	}

	repo := database.NewAlertRepository(db)
	store := alert.NewStore(alert.WithPersister(repo))

	hub := notify.NewHub()
	router := buildRouter(cfg.Notify, hub)
	buffer := telemetry.NewBuffer(cfg.Telemetry.BufferSize)

	engine := alert.NewEngine(alert.Config{
		Catalog:        catalog,
		Source:         buffer,
		Dispatcher:     router,
		Store:          store,
		DedupPersister: repo,
		Workers:        cfg.Engine.Workers,
	})
	if err := engine.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore engine state: %w", err)
	}
	if _, err := engine.ReloadRules(ctx); err != nil {
		log.Warn().Err(err).Msg("initial rule load failed")
	}

	scheduler := monitor.NewScheduler(engine, cfg.Engine.Interval)

	gin.SetMode(cfg.Server.Mode)
	server := api.NewServer(api.Options{
		Engine:    engine,
		Rules:     ruleStore,
		Catalog:   catalog,
		Buffer:    buffer,
		Hub:       hub,
		Scheduler: scheduler,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if cfg.Telemetry.Kafka.Enabled {
		source, err := telemetry.NewKafkaSource(cfg.Telemetry.Kafka, buffer)
		if err != nil {
			return err
		}
		defer source.Close()
		g.Go(func() error {
			return source.Start(gctx)
		})
	}

	if cfg.Telemetry.Host.Enabled {
		host := telemetry.NewHostCollector(cfg.Telemetry.Host, buffer)
		g.Go(func() error {
			return host.Start(gctx)
		})
	}

	scheduler.Start(gctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.Server.Port)
	})

	log.Info().
		Int("port", cfg.Server.Port).
		Dur("interval", cfg.Engine.Interval).
		Bool("kafka", cfg.Telemetry.Kafka.Enabled).
		Msg("netwatch started")

	err = g.Wait()

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := router.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("notifications dropped on shutdown")
	}

	log.Info().Msg("netwatch stopped")
	return err
}

// buildRouter registers a notifier for every configured channel.
func buildRouter(cfg config.NotifyConfig, hub *notify.Hub) *notify.Router {
	router := notify.NewRouter(cfg.Targets, cfg.Timeout)
	router.Register(notify.ChannelPush, hub)

	if cfg.Email.SMTPHost != "" {
		router.Register(notify.ChannelEmail, notify.NewEmailNotifier(cfg.Email))
	}
	if cfg.SMS.GatewayURL != "" {
		router.Register(notify.ChannelSMS, notify.NewSMSNotifier(cfg.SMS))
	}
	if cfg.Webhook.URL != "" {
		router.Register(notify.ChannelWebhook, notify.NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Slack.Token != "" {
		router.Register(notify.ChannelSlack, notify.NewSlackNotifier(cfg.Slack))
	}
	return router
}
