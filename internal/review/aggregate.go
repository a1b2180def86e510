package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diffscope/diffscope/internal/core"
	gh "github.com/diffscope/diffscope/internal/github"
)

const (
	// MaxCommentChars is GitHub's ceiling on issue comment bodies.
	MaxCommentChars = 65536

	// commentSafetyMargin keeps the truncated fallback comfortably under the
	// ceiling.
	commentSafetyMargin = 1024

	truncationNotice = "\n\n> **Note:** this review was truncated to fit GitHub's comment size limit."
)

// BuildReport combines per-file verdicts into one markdown document: header,
// one labeled section per successful review, and a trailing error section for
// files whose review failed. Verdicts are partitioned on their tag, never on
// body text.
func BuildReport(header string, verdicts []core.Verdict) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")

	var failed []core.Verdict
	for _, v := range verdicts {
		if v.Err {
			failed = append(failed, v)
			continue
		}
		fmt.Fprintf(&sb, "### Review for `%s`\n\n%s\n\n---\n\n", v.Path, v.Body)
	}

	if len(failed) > 0 {
		sb.WriteString("### Files that could not be reviewed\n\n")
		for _, v := range failed {
			fmt.Fprintf(&sb, "- `%s`: %s\n", v.Path, v.Body)
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Publisher posts a combined report to the pull request with a three-tier
// size fallback. Each invocation posts at most one comment; redelivery of the
// same webhook event produces a duplicate comment by design.
type Publisher struct {
	gh     gh.Client
	logger *slog.Logger
}

// NewPublisher returns a Publisher that posts through the given client.
func NewPublisher(client gh.Client, logger *slog.Logger) *Publisher {
	return &Publisher{gh: client, logger: logger}
}

// Publish attempts, in order: the full report if it fits under the comment
// ceiling, a truncated report with an explicit notice, and finally a minimal
// comment listing only the in-scope file names. A truncation that would not
// change the body is skipped, since re-posting identical bytes cannot fare
// better. Individual attempt failures are logged; an error is returned only
// when every attempt fails.
func (p *Publisher) Publish(ctx context.Context, event *core.ReviewEvent, report string, files []string) error {
	if len(report) <= MaxCommentChars {
		err := p.gh.CreateComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, report)
		if err == nil {
			return nil
		}
		p.logger.Warn("failed to post full review comment",
			"repo", event.RepoFullName, "pr", event.PRNumber, "error", err)
	} else {
		p.logger.Warn("review report exceeds comment ceiling, posting truncated",
			"repo", event.RepoFullName, "pr", event.PRNumber, "size", len(report))
	}

	if truncated := TruncateReport(report); truncated != report {
		err := p.gh.CreateComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, truncated)
		if err == nil {
			return nil
		}
		p.logger.Warn("failed to post truncated review comment, posting file list",
			"repo", event.RepoFullName, "pr", event.PRNumber, "error", err)
	}

	fallback := fileListFallback(files)
	if err := p.gh.CreateComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, fallback); err != nil {
		return fmt.Errorf("all publish attempts failed: %w", err)
	}
	return nil
}

// TruncateReport bounds a report to a safe margin below the comment ceiling,
// cutting at a line boundary and appending an explicit truncation notice. A
// report already within the bound is returned unchanged.
func TruncateReport(report string) string {
	limit := MaxCommentChars - commentSafetyMargin
	if len(report) <= limit {
		return report
	}

	cut := report[:limit-len(truncationNotice)]
	if i := strings.LastIndexByte(cut, '\n'); i >= 0 {
		cut = cut[:i]
	}
	return cut + truncationNotice
}

func fileListFallback(files []string) string {
	var sb strings.Builder
	sb.WriteString("The automated review could not be posted in full. Files in scope:\n\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "- `%s`\n", f)
	}
	return sb.String()
}
