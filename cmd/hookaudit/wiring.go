package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonny/hookaudit/internal/adapter/outbound/kubernetes"
	"github.com/jonny/hookaudit/internal/adapter/outbound/notification"
	slacknotifier "github.com/jonny/hookaudit/internal/adapter/outbound/notification/slack"
	"github.com/jonny/hookaudit/internal/adapter/outbound/persistence/memory"
	"github.com/jonny/hookaudit/internal/adapter/outbound/persistence/postgres"
	"github.com/jonny/hookaudit/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/hookaudit/internal/config"
	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

// storage bundles the configured repository with its lifecycle hooks.
type storage struct {
	repo  outbound.AuditRepository
	ping  func(context.Context) error
	close func()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*storage, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN(),
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return &storage{
			repo:  postgres.NewAuditRepo(store),
			ping:  store.Ping,
			close: func() { _ = store.Close() },
		}, nil

	case "memory":
		logger.Warn("using in-memory audit store; records are lost on restart")
		return &storage{
			repo:  memory.NewAuditRepo(),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil

	default:
		store, err := sqlite.NewStore(sqlite.Config{
			Path:              cfg.SQLite.Path,
			MaxOpenConns:      cfg.SQLite.MaxOpenConns,
			PragmaJournalMode: cfg.SQLite.PragmaJournalMode,
			PragmaBusyTimeout: cfg.SQLite.PragmaBusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return &storage{
			repo:  sqlite.NewAuditRepo(store),
			ping:  store.Ping,
			close: func() { _ = store.Close() },
		}, nil
	}
}

// buildNotifier assembles the enabled sinks. With none enabled, records are
// only logged.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (outbound.Notifier, error) {
	var sinks []outbound.Notifier

	if cfg.Slack.Enabled {
		channels := make(map[model.Kind]string, len(cfg.Slack.Channels))
		for k, ch := range cfg.Slack.Channels {
			kind, err := model.ParseKind(k)
			if err != nil {
				return nil, fmt.Errorf("slack channels: %w", err)
			}
			channels[kind] = ch
		}
		var kinds []model.Kind
		for _, k := range cfg.Slack.NotifyKinds {
			kind, err := model.ParseKind(k)
			if err != nil {
				return nil, fmt.Errorf("slack notifyKinds: %w", err)
			}
			kinds = append(kinds, kind)
		}
		sinks = append(sinks, slacknotifier.NewNotifier(slacknotifier.Config{
			BotToken:       cfg.Slack.BotToken,
			DefaultChannel: cfg.Slack.DefaultChannel,
			Channels:       channels,
			NotifyKinds:    kinds,
		}))
	}

	if cfg.Kubernetes.Enabled {
		clientset, err := kubernetes.NewClientset(kubernetes.ClientConfig{
			InCluster:  cfg.Kubernetes.InCluster,
			Kubeconfig: cfg.Kubernetes.Kubeconfig,
			QPS:        cfg.Kubernetes.QPS,
			Burst:      cfg.Kubernetes.Burst,
		})
		if err != nil {
			logger.Warn("kubernetes clientset unavailable; event sink disabled", "error", err)
		} else {
			sinks = append(sinks, kubernetes.NewEventSink(clientset, kubernetes.EventSinkConfig{
				Namespace:    cfg.Kubernetes.Namespace,
				InvolvedKind: cfg.Kubernetes.InvolvedKind,
				InvolvedName: cfg.Kubernetes.InvolvedName,
			}))
		}
	}

	switch len(sinks) {
	case 0:
		return notification.NewNoopNotifier(logger), nil
	case 1:
		return sinks[0], nil
	default:
		return notification.NewMulti(sinks...), nil
	}
}
