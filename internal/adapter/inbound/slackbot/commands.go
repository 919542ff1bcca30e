package slackbot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/hookaudit/internal/adapter/inbound/slackbot/template"
	"github.com/jonny/hookaudit/internal/domain/port/inbound"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
	"github.com/jonny/hookaudit/pkg/version"
)

const (
	defaultRecent = 5
	maxRecent     = 25
)

// Response is the reply to a chat command. Text is always set and doubles
// as the notification fallback when Blocks are present.
type Response struct {
	Text   string
	Blocks []slackapi.Block
}

// Commands interprets chat commands against the audit query port.
type Commands struct {
	name  string
	query inbound.AuditQueryPort
}

// NewCommands creates a command set answering to name (default "/audit").
func NewCommands(name string, query inbound.AuditQueryPort) *Commands {
	if name == "" {
		name = "/audit"
	}
	return &Commands{name: name, query: query}
}

// Handle runs a single command line such as "recent 10" or "actor alice".
func (c *Commands) Handle(ctx context.Context, text string) Response {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Response{Text: c.helpText()}
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]
	switch verb {
	case "help":
		return Response{Text: c.helpText()}
	case "status":
		return Response{Text: fmt.Sprintf(":robot_face: *hookaudit* %s is running.", version.Version)}
	case "recent":
		return c.recent(ctx, args)
	case "actor":
		return c.byActor(ctx, args)
	case "show":
		return c.show(ctx, args)
	default:
		return Response{Text: fmt.Sprintf(":question: Unknown command `%s`. Try `%s help`.", sanitize(verb), c.name)}
	}
}

func (c *Commands) recent(ctx context.Context, args []string) Response {
	n := defaultRecent
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return Response{Text: fmt.Sprintf(":warning: Usage: `%s recent [count]`", c.name)}
		}
		n = min(v, maxRecent)
	}

	recs, err := c.query.Recent(ctx, n)
	if err != nil {
		return errorResponse(err)
	}
	title := fmt.Sprintf("Last %d audit record(s)", len(recs))
	return Response{Text: title, Blocks: template.BuildRecordListBlocks(title, recs)}
}

func (c *Commands) byActor(ctx context.Context, args []string) Response {
	if len(args) != 1 {
		return Response{Text: fmt.Sprintf(":warning: Usage: `%s actor <login>`", c.name)}
	}
	actor := args[0]
	res, err := c.query.ByActor(ctx, actor, outbound.PageRequest{Size: maxRecent, Desc: true})
	if err != nil {
		return errorResponse(err)
	}
	title := fmt.Sprintf("Audit records by %s (%d total)", sanitize(actor), res.TotalCount)
	return Response{Text: title, Blocks: template.BuildRecordListBlocks(title, res.Items)}
}

func (c *Commands) show(ctx context.Context, args []string) Response {
	if len(args) != 1 {
		return Response{Text: fmt.Sprintf(":warning: Usage: `%s show <record-id>`", c.name)}
	}
	rec, err := c.query.Get(ctx, args[0])
	if errors.Is(err, outbound.ErrRecordNotFound) {
		return Response{Text: fmt.Sprintf(":mag: No audit record `%s`.", sanitize(args[0]))}
	}
	if err != nil {
		return errorResponse(err)
	}
	return Response{Text: rec.Headline(), Blocks: template.BuildRecordBlocks(rec)}
}

func errorResponse(err error) Response {
	return Response{Text: ":x: Audit query failed: " + sanitize(err.Error())}
}

// helpText returns the help message for the slash command.
func (c *Commands) helpText() string {
	return strings.Join([]string{
		":robot_face: *hookaudit commands*",
		"",
		fmt.Sprintf("• `%s status`: check bot status", c.name),
		fmt.Sprintf("• `%s recent [count]`: latest records (max %d)", c.name, maxRecent),
		fmt.Sprintf("• `%s actor <login>`: records attributed to a user", c.name),
		fmt.Sprintf("• `%s show <record-id>`: a single record", c.name),
		fmt.Sprintf("• `%s help`: show this help message", c.name),
		"",
		"Mention the bot with the same commands to get a threaded reply.",
	}, "\n")
}

var mentionRe = regexp.MustCompile(`<@[A-Z0-9]+>`)

// stripMention removes user mentions from an app_mention text.
func stripMention(text string) string {
	return strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
}

// sanitize keeps user input from breaking out of inline code spans.
func sanitize(s string) string {
	if len(s) > 100 {
		s = s[:100]
	}
	return strings.ReplaceAll(s, "`", "'")
}
