package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonny/hookaudit/internal/adapter/inbound/slackbot"
	"github.com/jonny/hookaudit/internal/adapter/inbound/webhook"
	"github.com/jonny/hookaudit/internal/adapter/inbound/webhook/parser"
	"github.com/jonny/hookaudit/internal/config"
	"github.com/jonny/hookaudit/internal/domain/service"
	"github.com/jonny/hookaudit/internal/metrics"
	"github.com/jonny/hookaudit/pkg/health"
	"github.com/jonny/hookaudit/pkg/version"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := buildLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to open log output", "error", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("hookaudit stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.close()

	// --- Notifiers ---
	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}

	// --- Domain services ---
	m := metrics.New(prometheus.DefaultRegisterer)
	recorder := service.NewRecorder(store.repo, notifier, m, logger)

	// --- Webhook + API ---
	sources := make(map[string]webhook.SourceConfig, len(cfg.Webhook.Sources))
	for name, src := range cfg.Webhook.Sources {
		sources[name] = webhook.SourceConfig{
			Disabled:          src.Disabled,
			Secret:            src.Secret,
			ValidateSignature: src.ValidateSignature,
			Actor:             src.Actor,
		}
	}

	rateLimit := 0
	if cfg.Webhook.RateLimit.Enabled {
		rateLimit = cfg.Webhook.RateLimit.RequestsPerMinute
	}

	webhookServer := webhook.NewServer(webhook.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       rateLimit,
		TrustProxy:      cfg.Server.TrustProxy,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		APITokens:       cfg.API.Tokens,
	},
		webhook.NewHandler(parser.NewDefaultRegistry(), recorder, sources, logger),
		webhook.NewAPIHandler(recorder, recorder, logger),
		logger,
	)

	// --- Health checker ---
	checker := health.NewChecker(0)
	checker.Register("database", store.ping)

	// --- Metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", checker.LivenessHandler())
	metricsMux.HandleFunc("/readyz", checker.ReadinessHandler())
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Webhook HTTP server.
	g.Go(func() error {
		return webhookServer.Start(gCtx)
	})

	// Metrics/health server.
	if cfg.Server.MetricsPort > 0 {
		g.Go(func() error {
			logger.Info("starting metrics server", "port", cfg.Server.MetricsPort)
			errCh := make(chan error, 1)
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			select {
			case <-gCtx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				return metricsServer.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		})
	}

	// Slack bot (optional).
	if cfg.Slack.Enabled && cfg.Slack.Bot.Enabled {
		g.Go(func() error {
			bot := slackbot.NewBot(slackbot.Config{
				BotToken: cfg.Slack.BotToken,
				AppToken: cfg.Slack.AppToken,
				Command:  cfg.Slack.Bot.Command,
			}, recorder, logger)
			return bot.Start(gCtx)
		})
	} else {
		logger.Info("slack bot disabled")
	}

	logger.Info("hookaudit started",
		"version", version.String(),
		"database", cfg.Database.Driver,
		"notifier", notifier.Name(),
	)

	return g.Wait()
}

// buildLogger constructs a slog.Logger based on config. The returned func
// closes the log file when output is a path.
func buildLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out, closeFn := os.Stdout, func() {}
	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out, closeFn = f, func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts)), closeFn, nil
	}
	return slog.New(slog.NewJSONHandler(out, opts)), closeFn, nil
}
