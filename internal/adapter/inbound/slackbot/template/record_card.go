package template

import (
	"fmt"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/hookaudit/internal/domain/model"
)

// kindEmoji maps a record kind to an emoji prefix.
func kindEmoji(kind model.Kind) string {
	switch kind {
	case model.KindRepositoryAccess:
		return ":file_folder:"
	case model.KindIssueAction:
		return ":memo:"
	case model.KindPullRequestAction:
		return ":twisted_rightwards_arrows:"
	case model.KindCommitStatus:
		return ":white_check_mark:"
	case model.KindAuthentication:
		return ":key:"
	default:
		return ":large_blue_circle:"
	}
}

func mrkdwn(text string) *slackapi.TextBlockObject {
	return slackapi.NewTextBlockObject(slackapi.MarkdownType, text, false, false)
}

// BuildRecordBlocks constructs Block Kit blocks for a single audit record.
func BuildRecordBlocks(rec model.Record) []slackapi.Block {
	header := slackapi.NewSectionBlock(
		mrkdwn(fmt.Sprintf("%s *%s*", kindEmoji(rec.Kind()), rec.Headline())),
		nil, nil,
	)

	actor, _ := rec.Actor()
	fields := []*slackapi.TextBlockObject{
		mrkdwn(fmt.Sprintf("*Kind*\n%s", rec.Kind())),
		mrkdwn(fmt.Sprintf("*Actor*\n%s", orDash(actor))),
		mrkdwn(fmt.Sprintf("*Time*\n%s", rec.Timestamp().Format(time.RFC3339))),
		mrkdwn(fmt.Sprintf("*Record ID*\n`%s`", rec.ID())),
	}
	if se, ok := rec.SourceEvent(); ok {
		fields = append(fields,
			mrkdwn(fmt.Sprintf("*Sender*\n%s", se.SenderIdentity)),
			mrkdwn(fmt.Sprintf("*Action*\n%s", se.Action)),
		)
	}

	blocks := []slackapi.Block{header, slackapi.NewDividerBlock(), slackapi.NewSectionBlock(nil, fields, nil)}

	if tr, ok := rec.TargetResource(); ok {
		if refs := resourceRefs(tr); len(refs) > 0 {
			blocks = append(blocks, slackapi.NewContextBlock("",
				mrkdwn("Resource: "+strings.Join(refs, "  ")),
			))
		}
	}
	if degraded := rec.Degraded(); len(degraded) > 0 {
		blocks = append(blocks, slackapi.NewContextBlock("",
			mrkdwn(fmt.Sprintf(":warning: %d field(s) missing from the source documents", len(degraded))),
		))
	}
	return blocks
}

// BuildRecordListBlocks renders a compact list of records under title.
func BuildRecordListBlocks(title string, recs []model.Record) []slackapi.Block {
	blocks := []slackapi.Block{
		slackapi.NewSectionBlock(mrkdwn(fmt.Sprintf("*%s*", title)), nil, nil),
	}
	if len(recs) == 0 {
		return append(blocks, slackapi.NewContextBlock("", mrkdwn("_No audit records found._")))
	}

	lines := make([]string, 0, len(recs))
	for _, rec := range recs {
		lines = append(lines, fmt.Sprintf("%s `%s` %s  _%s_",
			kindEmoji(rec.Kind()),
			rec.ID(),
			rec.Headline(),
			rec.Timestamp().Format(time.RFC3339),
		))
	}
	blocks = append(blocks, slackapi.NewDividerBlock(),
		slackapi.NewSectionBlock(mrkdwn(strings.Join(lines, "\n")), nil, nil))
	return blocks
}

// resourceRefs lists the set parts of a target resource as inline code.
func resourceRefs(tr model.TargetResource) []string {
	var refs []string
	if v, ok := tr.Repository.FullName.Get(); ok {
		refs = append(refs, fmt.Sprintf("`repo=%s`", v))
	}
	if v, ok := tr.IssueNumber.Get(); ok {
		refs = append(refs, fmt.Sprintf("`issue=#%d`", v))
	}
	if v, ok := tr.PullRequest.Get(); ok {
		refs = append(refs, fmt.Sprintf("`pr=#%d`", v))
	}
	if v, ok := tr.Commit.Get(); ok {
		refs = append(refs, fmt.Sprintf("`commit=%s`", shortSHA(v)))
	}
	return refs
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
