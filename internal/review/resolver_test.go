package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/diffscope/diffscope/internal/core"
	gh "github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/mocks"
)

const botLogin = "diffscope[bot]"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent(action core.Action) *core.ReviewEvent {
	return &core.ReviewEvent{
		Action:       action,
		RepoOwner:    "acme",
		RepoName:     "widgets",
		RepoFullName: "acme/widgets",
		PRNumber:     42,
	}
}

func TestResolveOpened(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	files := []gh.ChangedFile{
		{Filename: "a.go", Patch: "@@ -1 +1 @@\n-old\n+new"},
		{Filename: "image.png", Patch: ""},
		{Filename: "notes.md", Patch: "@@ -1 +1 @@\n+note"},
	}
	commits := []gh.CommitRecord{
		{SHA: "aaa1111aaaa", AuthoredAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}

	client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(files, nil)
	client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).Return(commits, nil)

	r := NewResolver(client, botLogin, testLogger())
	scope, err := r.Resolve(context.Background(), testEvent(core.ActionOpened), core.DefaultRepoConfig())
	require.NoError(t, err)

	// Patchless files and disallowed extensions are out; commits pass through.
	require.Len(t, scope.Files, 1)
	assert.Equal(t, "a.go", scope.Files[0].Filename)
	assert.Equal(t, commits, scope.Commits)
	assert.Equal(t, "## Initial Code Review for PR #42", scope.Header)
}

func TestResolveSynchronizeWatermark(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	files := []gh.ChangedFile{
		{Filename: "x.py", Patch: "@@ -1 +1 @@\n+x"},
		{Filename: "y.py", Patch: "@@ -1 +1 @@\n+y"},
	}
	commits := []gh.CommitRecord{
		{SHA: "aaa1111aaaa", AuthoredAt: time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)},
		{SHA: "bbb2222bbbb", AuthoredAt: time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)},
	}
	comments := []gh.Comment{
		{Author: "reviewer", Body: "LGTM", CreatedAt: watermark.Add(time.Hour)},
		{Author: botLogin, Body: "## Initial Code Review for PR #42\n\n...", CreatedAt: watermark},
	}

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(files, nil)
	client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).Return(commits, nil)
	client.EXPECT().ListComments(gomock.Any(), "acme", "widgets", 42).Return(comments, nil)
	client.EXPECT().GetCommitFiles(gomock.Any(), "acme", "widgets", "bbb2222bbbb").Return([]string{"y.py"}, nil)

	r := NewResolver(client, botLogin, testLogger())
	scope, err := r.Resolve(context.Background(), testEvent(core.ActionSynchronize), core.DefaultRepoConfig())
	require.NoError(t, err)

	// Only the commit strictly after the watermark is in scope; the file set
	// is the intersection of its touched paths with the PR's changed files.
	require.Len(t, scope.Commits, 1)
	assert.Equal(t, "bbb2222bbbb", scope.Commits[0].SHA)
	assert.Equal(t, []string{"y.py"}, scope.FileNames())
	assert.Contains(t, scope.Header, "Code Review for Latest Changes")
	assert.Contains(t, scope.Header, "`bbb2222`")
	assert.NotContains(t, scope.Header, "aaa1111")
}

func TestResolveSynchronizeCommitAtWatermarkExcluded(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	files := []gh.ChangedFile{{Filename: "x.py", Patch: "@@ -1 +1 @@\n+x"}}
	commits := []gh.CommitRecord{{SHA: "aaa1111aaaa", AuthoredAt: watermark}}
	comments := []gh.Comment{
		{Author: botLogin, Body: "## Code Review for Latest Changes", CreatedAt: watermark},
	}

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(files, nil)
	client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).Return(commits, nil)
	client.EXPECT().ListComments(gomock.Any(), "acme", "widgets", 42).Return(comments, nil)

	r := NewResolver(client, botLogin, testLogger())
	scope, err := r.Resolve(context.Background(), testEvent(core.ActionSynchronize), core.DefaultRepoConfig())
	require.NoError(t, err)

	// A commit authored exactly at the watermark already triggered the
	// previous review and must stay out of scope.
	assert.Empty(t, scope.Commits)
	assert.Empty(t, scope.Files)
}

func TestResolveSynchronizeNoWatermark(t *testing.T) {
	files := []gh.ChangedFile{
		{Filename: "x.py", Patch: "@@ -1 +1 @@\n+x"},
		{Filename: "y.py", Patch: "@@ -1 +1 @@\n+y"},
	}
	commits := []gh.CommitRecord{
		{SHA: "aaa1111aaaa", AuthoredAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{SHA: "bbb2222bbbb", AuthoredAt: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)},
	}
	comments := []gh.Comment{
		// From the bot but not a review header; must not count as a watermark.
		{Author: botLogin, Body: "processing...", CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(files, nil)
	client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).Return(commits, nil)
	client.EXPECT().ListComments(gomock.Any(), "acme", "widgets", 42).Return(comments, nil)
	client.EXPECT().GetCommitFiles(gomock.Any(), "acme", "widgets", "bbb2222bbbb").Return([]string{"x.py", "y.py"}, nil)

	r := NewResolver(client, botLogin, testLogger())
	scope, err := r.Resolve(context.Background(), testEvent(core.ActionSynchronize), core.DefaultRepoConfig())
	require.NoError(t, err)

	// Without a watermark only the most recent commit is reviewed.
	require.Len(t, scope.Commits, 1)
	assert.Equal(t, "bbb2222bbbb", scope.Commits[0].SHA)
	assert.Equal(t, []string{"x.py", "y.py"}, scope.FileNames())
}

func TestResolveSynchronizeNoCommits(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(nil, nil)
	client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).Return(nil, nil)
	client.EXPECT().ListComments(gomock.Any(), "acme", "widgets", 42).Return(nil, nil)

	r := NewResolver(client, botLogin, testLogger())
	scope, err := r.Resolve(context.Background(), testEvent(core.ActionSynchronize), core.DefaultRepoConfig())
	require.NoError(t, err)
	assert.Empty(t, scope.Commits)
	assert.Empty(t, scope.Files)
}

func TestResolveRevertedFileDropsOut(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// z.py was touched by the new commit but reverted, so the PR's changed
	// file list no longer includes it.
	files := []gh.ChangedFile{{Filename: "x.py", Patch: "@@ -1 +1 @@\n+x"}}
	commits := []gh.CommitRecord{{SHA: "ccc3333cccc", AuthoredAt: watermark.Add(time.Minute)}}
	comments := []gh.Comment{
		{Author: botLogin, Body: "## Code Review for Latest Changes", CreatedAt: watermark},
	}

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(files, nil)
	client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).Return(commits, nil)
	client.EXPECT().ListComments(gomock.Any(), "acme", "widgets", 42).Return(comments, nil)
	client.EXPECT().GetCommitFiles(gomock.Any(), "acme", "widgets", "ccc3333cccc").Return([]string{"x.py", "z.py"}, nil)

	r := NewResolver(client, botLogin, testLogger())
	scope, err := r.Resolve(context.Background(), testEvent(core.ActionSynchronize), core.DefaultRepoConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"x.py"}, scope.FileNames())
}

func TestResolveRetrievalErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(client *mocks.MockClient)
	}{
		{
			name: "changed files listing fails",
			setup: func(client *mocks.MockClient) {
				client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(nil, boom)
			},
		},
		{
			name: "commit listing fails",
			setup: func(client *mocks.MockClient) {
				client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(nil, nil)
				client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).Return(nil, boom)
			},
		},
		{
			name: "comment listing fails",
			setup: func(client *mocks.MockClient) {
				client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(nil, nil)
				client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).
					Return([]gh.CommitRecord{{SHA: "aaa1111aaaa"}}, nil)
				client.EXPECT().ListComments(gomock.Any(), "acme", "widgets", 42).Return(nil, boom)
			},
		},
		{
			name: "commit file listing fails",
			setup: func(client *mocks.MockClient) {
				client.EXPECT().GetChangedFiles(gomock.Any(), "acme", "widgets", 42).Return(nil, nil)
				client.EXPECT().ListCommits(gomock.Any(), "acme", "widgets", 42).
					Return([]gh.CommitRecord{{SHA: "aaa1111aaaa", AuthoredAt: time.Now()}}, nil)
				client.EXPECT().ListComments(gomock.Any(), "acme", "widgets", 42).Return(nil, nil)
				client.EXPECT().GetCommitFiles(gomock.Any(), "acme", "widgets", "aaa1111aaaa").Return(nil, boom)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			tt.setup(client)

			r := NewResolver(client, botLogin, testLogger())
			_, err := r.Resolve(context.Background(), testEvent(core.ActionSynchronize), core.DefaultRepoConfig())
			require.ErrorIs(t, err, boom)
		})
	}
}
