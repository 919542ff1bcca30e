package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Slack      SlackConfig      `yaml:"slack"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MetricsPort     int           `yaml:"metricsPort"`
	TrustProxy      bool          `yaml:"trustProxy"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

type WebhookConfig struct {
	Sources   map[string]WebhookSourceConfig `yaml:"sources"`
	RateLimit RateLimitConfig                `yaml:"rateLimit"`
}

// WebhookSourceConfig configures one webhook source. Sources that are not
// listed are accepted without signature checks.
type WebhookSourceConfig struct {
	Disabled          bool   `yaml:"disabled"`
	Secret            string `yaml:"secret"`
	ValidateSignature bool   `yaml:"validateSignature"`
	// Actor is attributed to unauthenticated deliveries from this source.
	Actor string `yaml:"actor"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

// APIConfig maps bearer tokens to the actor they authenticate.
type APIConfig struct {
	Tokens map[string]string `yaml:"tokens"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"maxOpenConns"`
	PragmaJournalMode string `yaml:"pragmaJournalMode"`
	PragmaBusyTimeout int    `yaml:"pragmaBusyTimeout"`
}

type PostgresConfig struct {
	// URL takes precedence over the individual connection fields.
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type SlackConfig struct {
	Enabled        bool              `yaml:"enabled"`
	BotToken       string            `yaml:"botToken"`
	AppToken       string            `yaml:"appToken"`
	DefaultChannel string            `yaml:"defaultChannel"`
	Channels       map[string]string `yaml:"channels"` // kind -> channel
	NotifyKinds    []string          `yaml:"notifyKinds"`
	Bot            SlackBotConfig    `yaml:"bot"`
}

type SlackBotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

type KubernetesConfig struct {
	Enabled      bool   `yaml:"enabled"`
	InCluster    bool   `yaml:"inCluster"`
	Kubeconfig   string `yaml:"kubeconfig"`
	Namespace    string `yaml:"namespace"`
	InvolvedKind string `yaml:"involvedKind"`
	InvolvedName string `yaml:"involvedName"`
	// QPS and Burst throttle event writes to the API server.
	QPS   float32 `yaml:"qps"`
	Burst int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads a YAML config file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MetricsPort:     9090,
			MaxBodyBytes:    10 << 20,
		},
		Webhook: WebhookConfig{
			Sources:   map[string]WebhookSourceConfig{},
			RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 60},
		},
		API: APIConfig{Tokens: map[string]string{}},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:              "/data/hookaudit.db",
				MaxOpenConns:      1,
				PragmaJournalMode: "wal",
				PragmaBusyTimeout: 5000,
			},
			Postgres: PostgresConfig{
				Port:            5432,
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Slack: SlackConfig{
			DefaultChannel: "#audit",
			Bot:            SlackBotConfig{Command: "/audit"},
		},
		Kubernetes: KubernetesConfig{
			InCluster:    true,
			Namespace:    "default",
			InvolvedKind: "Deployment",
			InvolvedName: "hookaudit",
			QPS:          5,
			Burst:        10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

// ChannelForKind returns the Slack channel for the given record kind.
// Keys are matched case-insensitively.
func (c *SlackConfig) ChannelForKind(kind string) string {
	for k, ch := range c.Channels {
		if strings.EqualFold(k, kind) {
			return ch
		}
	}
	return c.DefaultChannel
}

// DSN returns the lib/pq connection string.
func (c *PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("dbname=%s", c.Database),
	}
	if c.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", c.User))
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	if c.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", c.SSLMode))
	}
	return strings.Join(parts, " ")
}
