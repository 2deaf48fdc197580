package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	internalapi "github.com/potooio/ondeath/internal/api"
	"github.com/potooio/ondeath/internal/config"
	"github.com/potooio/ondeath/internal/console"
	"github.com/potooio/ondeath/internal/correlator"
	"github.com/potooio/ondeath/internal/natsbus"
	"github.com/potooio/ondeath/internal/notifier"
	"github.com/potooio/ondeath/internal/roster"
	"github.com/potooio/ondeath/internal/subscription"
)

func main() {
	var (
		configPath  string
		httpAddr    string
		logLevel    string
		logDev      bool
		envFile     string
		healthStale time.Duration
	)

	flag.StringVar(&configPath, "config", "ondeath.yaml", "Path to the YAML configuration file. Empty uses built-in defaults.")
	flag.StringVar(&httpAddr, "http-address", "", "The address the status API binds to. Overrides http.address.")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	flag.BoolVar(&logDev, "log-dev", false, "Use human-readable development logging.")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment.")
	flag.DurationVar(&healthStale, "health-stale-after", 30*time.Second, "Report degraded when no poll cycle completed for this long.")
	flag.Parse()

	// A missing dotenv file is normal outside development.
	_ = godotenv.Load(envFile)

	logger, err := buildLogger(logLevel, logDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Unable to load configuration", zap.Error(err))
	}
	// Environment overrides for NATS and webhook credentials (allows Secret mounting).
	cfg.ApplyEnv(os.Getenv)
	if httpAddr != "" {
		cfg.HTTP.Address = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting ondeath",
		zap.String("version", "dev"),
		zap.Duration("poll_interval", cfg.PollInterval()),
		zap.String("console_mode", cfg.Console.Mode),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("nats_enabled", cfg.UsesNATS()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build NATS client (optional)
	var bus *natsbus.Client
	if cfg.UsesNATS() {
		natsOpts := natsbus.DefaultOptions()
		natsOpts.Token = cfg.NATS.Token
		bus, err = natsbus.NewClient(cfg.NATS.URL, logger, natsOpts)
		if err != nil {
			logger.Fatal("Failed to create NATS client", zap.Error(err))
		}
		if err := bus.Connect(ctx); err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
	}

	// Build subscriber directory from configured plugins
	dir, webhooks, err := buildDirectory(cfg, bus, logger)
	if err != nil {
		logger.Fatal("Failed to configure plugins", zap.Error(err))
	}

	store, err := buildStore(ctx, cfg, bus)
	if err != nil {
		logger.Fatal("Failed to open subscriber store", zap.Error(err))
	}

	dispatcher := notifier.NewDispatcher(logger, notifier.DispatcherOptions{
		RatePerSecond: cfg.RateLimit.PerSecond,
		Burst:         cfg.RateLimit.Burst,
	})
	registry := subscription.NewRegistry(dir, store, dispatcher, logger)

	// Connect to the server console. An exec-mode server is left running when
	// ondeath stops.
	link, err := openConsole(cfg.Console, logger)
	if err != nil {
		logger.Fatal("Failed to open server console", zap.Error(err))
	}
	cons := console.New(link.source, link.commands, logger)

	query := console.QueryOptions{
		Timeout: cfg.FetchTimeoutDuration(),
		Idle:    cfg.IdleTimeoutDuration(),
	}

	rosterOpts := roster.DefaultOptions()
	rosterOpts.Interval = cfg.RosterIntervalDuration()
	rosterOpts.Query.Timeout = query.Timeout
	rosterOpts.Query.Idle = query.Idle
	players := roster.New(cons, logger, rosterOpts)

	corrOpts := correlator.DefaultOptions()
	corrOpts.PollInterval = cfg.PollInterval()
	corrOpts.Retention = cfg.RetentionDuration()
	corrOpts.JanitorInterval = cfg.JanitorIntervalDuration()
	corrOpts.Query = query
	corrOpts.KillColumn = cfg.KillColumn
	corr := correlator.New(cons, players, registry, logger, corrOpts)

	server := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: internalapi.NewMux(internalapi.Sources{
			Stats:   corr,
			Subs:    registry,
			Players: players,
			Stale:   healthStale,
		}, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	dir.Start(gctx)
	if err := registry.Init(gctx); err != nil {
		logger.Fatal("Failed to restore subscribers", zap.Error(err))
	}
	if bus != nil {
		if err := subscription.Listen(gctx, bus, cfg.NATS.Prefix, registry, logger); err != nil {
			logger.Fatal("Failed to listen for subscription requests", zap.Error(err))
		}
	}

	g.Go(func() error {
		if err := cons.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("server console closed")
		}
		return nil
	})
	g.Go(func() error {
		return players.Start(gctx)
	})
	g.Go(func() error {
		return corr.Start(gctx)
	})
	g.Go(func() error {
		logger.Info("Serving status API", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	// Drain in-flight webhook deliveries before exiting.
	for _, ws := range webhooks {
		ws.Close()
	}
	if err := link.close(); err != nil {
		logger.Warn("Server process exited with error", zap.Error(err))
	}

	if runErr != nil {
		logger.Error("ondeath stopped", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("ondeath stopped")
}

func buildLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logConfig := zap.NewProductionConfig()
	if dev {
		logConfig = zap.NewDevelopmentConfig()
	}
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return logConfig.Build()
}

// buildDirectory creates a sender per configured plugin and, when enabled,
// routes any other name to "<prefix>.<name>" on NATS.
func buildDirectory(cfg config.Config, bus *natsbus.Client, logger *zap.Logger) (*subscription.StaticDirectory, []*notifier.WebhookSender, error) {
	dir := subscription.NewStaticDirectory(logger)
	var webhooks []*notifier.WebhookSender

	for _, p := range cfg.Plugins {
		switch {
		case p.Webhook != nil:
			ws, err := notifier.NewWebhookSender(logger, notifier.WebhookSenderConfig{
				Name:               p.Name,
				URL:                p.Webhook.URL,
				TimeoutSeconds:     p.Webhook.TimeoutSeconds,
				InsecureSkipVerify: p.Webhook.InsecureSkipVerify,
				Events:             p.Events,
				AuthToken:          p.Webhook.AuthToken,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("plugin %s: %w", p.Name, err)
			}
			dir.Add(ws)
			webhooks = append(webhooks, ws)
			logger.Info("Webhook plugin configured",
				zap.String("plugin", p.Name),
				zap.String("url", notifier.RedactURL(p.Webhook.URL)),
			)
		case p.NATS != nil:
			subject := p.NATS.Subject
			if subject == "" {
				subject = cfg.NATS.Prefix + "." + p.Name
			}
			ns, err := notifier.NewNATSSender(bus, logger, notifier.NATSSenderConfig{
				Name:    p.Name,
				Subject: subject,
				Events:  p.Events,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("plugin %s: %w", p.Name, err)
			}
			dir.Add(ns)
			logger.Info("NATS plugin configured", zap.String("plugin", p.Name), zap.String("subject", subject))
		}
	}

	if cfg.NATS.AutoRoute {
		dir.WithRoute(func(name string) (notifier.Sender, error) {
			return notifier.NewNATSSender(bus, logger, notifier.NATSSenderConfig{
				Name:    name,
				Subject: cfg.NATS.Prefix + "." + name,
			})
		})
	}
	return dir, webhooks, nil
}

func buildStore(ctx context.Context, cfg config.Config, bus *natsbus.Client) (subscription.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreNATS:
		kv, err := bus.KeyValue(ctx, cfg.Store.Bucket)
		if err != nil {
			return nil, err
		}
		return subscription.NewKVStore(kv), nil
	default:
		return subscription.NewFileStore(cfg.Store.Path), nil
	}
}
