package slack

import (
	"context"
	"fmt"
	"slices"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/hookaudit/internal/adapter/inbound/slackbot/template"
	"github.com/jonny/hookaudit/internal/domain/model"
)

// Config holds Slack notifier configuration.
type Config struct {
	BotToken       string
	DefaultChannel string
	Channels       map[model.Kind]string // kind -> channel ID
	// NotifyKinds limits forwarding to the listed kinds; empty forwards all.
	NotifyKinds []model.Kind
	// APIURL overrides the Slack Web API base URL.
	APIURL string
}

// Notifier implements outbound.Notifier via the Slack API.
type Notifier struct {
	client *slackapi.Client
	config Config
}

// NewNotifier creates a new Slack Notifier.
func NewNotifier(cfg Config) *Notifier {
	var opts []slackapi.Option
	if cfg.APIURL != "" {
		opts = append(opts, slackapi.OptionAPIURL(cfg.APIURL))
	}
	return &Notifier{
		client: slackapi.New(cfg.BotToken, opts...),
		config: cfg,
	}
}

func (n *Notifier) Name() string { return "slack" }

// channelFor returns the channel to post to for a given kind.
func (n *Notifier) channelFor(kind model.Kind) string {
	if ch, ok := n.config.Channels[kind]; ok {
		return ch
	}
	return n.config.DefaultChannel
}

func (n *Notifier) wants(kind model.Kind) bool {
	return len(n.config.NotifyKinds) == 0 || slices.Contains(n.config.NotifyKinds, kind)
}

// NotifyRecord posts a Block Kit record card. Kinds outside NotifyKinds and
// kinds without a channel are skipped.
func (n *Notifier) NotifyRecord(ctx context.Context, rec model.Record) error {
	if !n.wants(rec.Kind()) {
		return nil
	}
	channel := n.channelFor(rec.Kind())
	if channel == "" {
		return nil
	}

	_, _, err := n.client.PostMessageContext(ctx, channel,
		slackapi.MsgOptionBlocks(template.BuildRecordBlocks(rec)...),
		slackapi.MsgOptionText(rec.Headline(), false),
	)
	if err != nil {
		return fmt.Errorf("slack NotifyRecord: %w", err)
	}
	return nil
}
