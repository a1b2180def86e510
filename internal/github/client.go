// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// ChangedFile holds the filename and patch data for a single file included in
// a pull request. Files without patch text (binary or too large for the API)
// carry an empty Patch and are excluded from review scope.
type ChangedFile struct {
	Filename string
	Patch    string
}

// CommitRecord is one commit on a pull request, in the chronological order
// the API returns them.
type CommitRecord struct {
	SHA        string
	AuthoredAt time.Time
}

// Comment is an issue-style comment on a pull request. The scope resolver
// scans these to find the last review watermark.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Client defines the narrow set of operations this application needs from the
// GitHub API. Keeping it small makes the scope resolver testable and leaves
// room to swap the comment-scan watermark for a persisted cursor later.
//
//go:generate mockgen -destination=../../mocks/mock_github_client.go -package=mocks . Client
type Client interface {
	GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error)
	ListCommits(ctx context.Context, owner, repo string, number int) ([]CommitRecord, error)
	GetCommitFiles(ctx context.Context, owner, repo, sha string) ([]string, error)
	ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// NewPATClient creates a Client authenticated with a Personal Access Token.
// This is used by the CLI, where an App installation is not available.
func NewPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &gitHubClient{client: github.NewClient(tc), logger: logger}
}

// GetChangedFiles retrieves the list of files currently reported changed on a
// pull request. It handles pagination automatically; the API returns at most
// 100 files per page.
func (g *gitHubClient) GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	var allFiles []ChangedFile
	opts := &github.ListOptions{PerPage: 100}

	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list files for pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}

		for _, file := range files {
			allFiles = append(allFiles, ChangedFile{
				Filename: file.GetFilename(),
				Patch:    file.GetPatch(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// ListCommits retrieves every commit on a pull request with its author
// timestamp, preserving the API's chronological ordering.
func (g *gitHubClient) ListCommits(ctx context.Context, owner, repo string, number int) ([]CommitRecord, error) {
	var all []CommitRecord
	opts := &github.ListOptions{PerPage: 100}

	for {
		commits, resp, err := g.client.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list commits for pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}

		for _, c := range commits {
			all = append(all, CommitRecord{
				SHA:        c.GetSHA(),
				AuthoredAt: c.GetCommit().GetAuthor().GetDate().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetCommitFiles retrieves the paths changed by a single commit.
func (g *gitHubClient) GetCommitFiles(ctx context.Context, owner, repo, sha string) ([]string, error) {
	commit, _, err := g.client.Repositories.GetCommit(ctx, owner, repo, sha, &github.ListOptions{PerPage: 100})
	if err != nil {
		g.logger.Error("failed to get commit", "owner", owner, "repo", repo, "sha", sha, "error", err)
		return nil, err
	}

	paths := make([]string, 0, len(commit.Files))
	for _, f := range commit.Files {
		paths = append(paths, f.GetFilename())
	}
	return paths, nil
}

// ListComments retrieves the issue-style comments on a pull request. The API
// returns them oldest first; callers that want the most recent scan from the
// end.
func (g *gitHubClient) ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	var all []Comment
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}

	for {
		comments, resp, err := g.client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list comments for pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}

		for _, c := range comments {
			all = append(all, Comment{
				Author:    c.GetUser().GetLogin(),
				Body:      c.GetBody(),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// CreateComment creates a new comment on a pull request.
func (g *gitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &github.IssueComment{Body: &body}
	_, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		g.logger.Error("failed to create comment", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

// GetFileContent retrieves the decoded contents of a file at the given ref.
func (g *gitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	content, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, err
	}
	text, err := content.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}
