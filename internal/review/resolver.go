// Package review implements the incremental review pipeline: resolving which
// commits and files need review, bounding diff payloads, and aggregating
// per-file verdicts into a single published report.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/diffscope/diffscope/internal/core"
	gh "github.com/diffscope/diffscope/internal/github"
)

// Header markers identify previously posted review comments. The watermark
// scan matches on them, so changing either invalidates existing watermarks.
const (
	HeaderInitial = "Initial Code Review for PR"
	HeaderLatest  = "Code Review for Latest Changes"
)

// Scope is the set of commits and files selected for review in one
// invocation. Files is always the intersection of what the in-scope commits
// touched with what the pull request currently reports as changed.
type Scope struct {
	Commits []gh.CommitRecord
	Files   []gh.ChangedFile
	Header  string
}

// FileNames returns the paths of the files in scope, in report order.
func (s *Scope) FileNames() []string {
	names := make([]string, len(s.Files))
	for i, f := range s.Files {
		names[i] = f.Filename
	}
	return names
}

// Resolver decides, per delivery, exactly which commits and files are new
// since the last automated review. The watermark is re-derived from the pull
// request's comment log on every invocation; no state survives a delivery.
type Resolver struct {
	gh       gh.Client
	botLogin string
	logger   *slog.Logger
}

// NewResolver creates a Resolver that scans for prior comments authored by
// botLogin when locating the review watermark.
func NewResolver(client gh.Client, botLogin string, logger *slog.Logger) *Resolver {
	return &Resolver{gh: client, botLogin: botLogin, logger: logger}
}

// Resolve computes the review scope for the event. Retrieval failures for
// files, commits or comments abort the invocation; proceeding with a partial
// scope would silently re-review or skip files.
func (r *Resolver) Resolve(ctx context.Context, event *core.ReviewEvent, repoCfg *core.RepoConfig) (*Scope, error) {
	files, err := r.gh.GetChangedFiles(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed files: %w", err)
	}
	candidates := filterReviewable(files, repoCfg)

	commits, err := r.gh.ListCommits(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	if event.Action == core.ActionOpened {
		return &Scope{
			Commits: commits,
			Files:   candidates,
			Header:  fmt.Sprintf("## %s #%d", HeaderInitial, event.PRNumber),
		}, nil
	}

	watermark, found, err := r.lastReviewTime(ctx, event)
	if err != nil {
		return nil, err
	}

	newCommits := selectNewCommits(commits, watermark, found)
	if len(newCommits) == 0 {
		r.logger.Info("no new commits since last review", "repo", event.RepoFullName, "pr", event.PRNumber)
		return &Scope{Header: latestChangesHeader(nil)}, nil
	}

	touched := make(map[string]struct{})
	for _, c := range newCommits {
		paths, err := r.gh.GetCommitFiles(ctx, event.RepoOwner, event.RepoName, c.SHA)
		if err != nil {
			return nil, fmt.Errorf("failed to get files for commit %s: %w", c.SHA, err)
		}
		for _, p := range paths {
			touched[p] = struct{}{}
		}
	}

	// A file touched by an in-scope commit but no longer different from the
	// base (e.g. reverted) is absent from the PR file list and drops out here.
	var inScope []gh.ChangedFile
	for _, f := range candidates {
		if _, ok := touched[f.Filename]; ok {
			inScope = append(inScope, f)
		}
	}

	return &Scope{
		Commits: newCommits,
		Files:   inScope,
		Header:  latestChangesHeader(newCommits),
	}, nil
}

// lastReviewTime scans the pull request's comments, newest first, for the
// most recent comment authored by the bot that carries one of the known
// review headers. Its creation time is the watermark.
func (r *Resolver) lastReviewTime(ctx context.Context, event *core.ReviewEvent) (time.Time, bool, error) {
	comments, err := r.gh.ListComments(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to list comments: %w", err)
	}

	for i := len(comments) - 1; i >= 0; i-- {
		c := comments[i]
		if c.Author != r.botLogin {
			continue
		}
		if strings.Contains(c.Body, HeaderLatest) || strings.Contains(c.Body, HeaderInitial) {
			return c.CreatedAt, true, nil
		}
	}
	return time.Time{}, false, nil
}

// selectNewCommits returns the commits authored strictly after the watermark.
// The strict comparison keeps the commit that triggered the previous review
// out of scope. Without a watermark the single most recent commit is
// reviewed, a deliberate bound for a first-ever synchronize event; an empty
// commit list yields an empty result.
func selectNewCommits(commits []gh.CommitRecord, watermark time.Time, found bool) []gh.CommitRecord {
	if !found {
		if len(commits) == 0 {
			return nil
		}
		return commits[len(commits)-1:]
	}

	var fresh []gh.CommitRecord
	for _, c := range commits {
		if c.AuthoredAt.After(watermark) {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

// filterReviewable drops files with no patch text (binary or too large for
// the API to diff) and files the repo configuration excludes.
func filterReviewable(files []gh.ChangedFile, repoCfg *core.RepoConfig) []gh.ChangedFile {
	var out []gh.ChangedFile
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		if repoCfg != nil && !repoCfg.Reviewable(f.Filename) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func latestChangesHeader(commits []gh.CommitRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s", HeaderLatest)
	if len(commits) == 0 {
		return sb.String()
	}

	shas := make([]string, len(commits))
	for i, c := range commits {
		shas[i] = "`" + shortSHA(c.SHA) + "`"
	}
	fmt.Fprintf(&sb, "\n\nReviewed commits: %s", strings.Join(shas, ", "))
	return sb.String()
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
