package slackbot

import (
	"context"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// handleEventsAPI processes Slack Events API payloads. Mentions of the bot
// are treated as commands and answered in a thread.
func (b *Bot) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	b.socketMode.Ack(*evt.Request)

	eventsPayload, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}

	switch ev := eventsPayload.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		b.processMention(ctx, ev)
	}
}

// processMention answers an @-mention in the thread it came from.
func (b *Bot) processMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	// Ignore bot messages to prevent loops.
	if ev.BotID != "" {
		return
	}

	resp := b.commands.Handle(ctx, stripMention(ev.Text))

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	opts := []slackapi.MsgOption{
		slackapi.MsgOptionText(resp.Text, false),
		slackapi.MsgOptionTS(threadTS),
	}
	if len(resp.Blocks) > 0 {
		opts = append(opts, slackapi.MsgOptionBlocks(resp.Blocks...))
	}
	if _, _, err := b.client.PostMessageContext(ctx, ev.Channel, opts...); err != nil {
		b.logger.ErrorContext(ctx, "posting mention reply failed", "channel", ev.Channel, "error", err)
	}
}

// handleSlashCommand answers slash commands inline through the ack payload.
func (b *Bot) handleSlashCommand(ctx context.Context, evt socketmode.Event) {
	cmd, ok := evt.Data.(slackapi.SlashCommand)
	if !ok {
		b.socketMode.Ack(*evt.Request)
		return
	}

	resp := b.commands.Handle(ctx, cmd.Text)
	b.logger.InfoContext(ctx, "slack command handled",
		"user", cmd.UserID,
		"command", cmd.Command,
		"text", sanitize(cmd.Text),
	)

	payload := map[string]any{
		"response_type": "ephemeral",
		"text":          resp.Text,
	}
	if len(resp.Blocks) > 0 {
		payload["blocks"] = resp.Blocks
	}
	b.socketMode.Ack(*evt.Request, payload)
}
