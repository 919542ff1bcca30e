package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonny/hookaudit/internal/domain/model"
)

var knownSources = map[string]bool{"github": true, "generic": true}

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		errs = append(errs, "server.metricsPort must be between 0 and 65535")
	}
	if cfg.Server.MetricsPort != 0 && cfg.Server.MetricsPort == cfg.Server.Port {
		errs = append(errs, "server.metricsPort must differ from server.port")
	}

	for _, name := range sortedKeys(cfg.Webhook.Sources) {
		src := cfg.Webhook.Sources[name]
		if !knownSources[name] {
			errs = append(errs, fmt.Sprintf("webhook.sources.%s is not a known source (github, generic)", name))
		}
		if src.ValidateSignature && src.Secret == "" {
			errs = append(errs, fmt.Sprintf("webhook.sources.%s.secret is required when validateSignature is set", name))
		}
	}
	if cfg.Webhook.RateLimit.Enabled && cfg.Webhook.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "webhook.rateLimit.requestsPerMinute must be positive when rate limiting is enabled")
	}

	for token, actor := range cfg.API.Tokens {
		if token == "" || strings.TrimSpace(actor) == "" {
			errs = append(errs, "api.tokens entries need a non-empty token and actor")
			break
		}
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path is required when driver is sqlite")
		}
	case "postgres":
		pg := cfg.Database.Postgres
		if pg.URL == "" && (pg.Host == "" || pg.Database == "") {
			errs = append(errs, "database.postgres.url or host and database are required when driver is postgres")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be sqlite, postgres, or memory (got %q)", cfg.Database.Driver))
	}

	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" {
			errs = append(errs, "slack.botToken is required when slack is enabled")
		}
		if cfg.Slack.Bot.Enabled && cfg.Slack.AppToken == "" {
			errs = append(errs, "slack.appToken is required when the slack bot is enabled")
		}
		for _, k := range sortedKeys(cfg.Slack.Channels) {
			if _, err := model.ParseKind(k); err != nil {
				errs = append(errs, fmt.Sprintf("slack.channels: %v", err))
			}
		}
		for _, k := range cfg.Slack.NotifyKinds {
			if _, err := model.ParseKind(k); err != nil {
				errs = append(errs, fmt.Sprintf("slack.notifyKinds: %v", err))
			}
		}
	}

	if cfg.Kubernetes.Enabled && !cfg.Kubernetes.InCluster && cfg.Kubernetes.Kubeconfig == "" {
		errs = append(errs, "kubernetes.kubeconfig is required when inCluster is false")
	}
	if cfg.Kubernetes.QPS < 0 || cfg.Kubernetes.Burst < 0 {
		errs = append(errs, "kubernetes.qps and kubernetes.burst must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level must be debug, info, warn, or error (got %q)", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or text (got %q)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
