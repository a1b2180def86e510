package core

import (
	"testing"

	"github.com/google/go-github/v73/github"
)

func prEvent(action string, number int, installationID int64) *github.PullRequestEvent {
	return &github.PullRequestEvent{
		Action: github.Ptr(action),
		Repo: &github.Repository{
			Name:     github.Ptr("widgets"),
			FullName: github.Ptr("acme/widgets"),
			Owner:    &github.User{Login: github.Ptr("acme")},
		},
		PullRequest: &github.PullRequest{
			Number: github.Ptr(number),
			Head:   &github.PullRequestBranch{SHA: github.Ptr("abc1234def")},
		},
		Installation: &github.Installation{ID: github.Ptr(installationID)},
	}
}

func TestEventFromPullRequest(t *testing.T) {
	tests := []struct {
		name    string
		event   *github.PullRequestEvent
		wantErr bool
	}{
		{
			name:  "opened action is accepted",
			event: prEvent("opened", 42, 1001),
		},
		{
			name:  "synchronize action is accepted",
			event: prEvent("synchronize", 42, 1001),
		},
		{
			name:    "closed action is skipped",
			event:   prEvent("closed", 42, 1001),
			wantErr: true,
		},
		{
			name:    "edited action is skipped",
			event:   prEvent("edited", 42, 1001),
			wantErr: true,
		},
		{
			name:    "missing installation ID is skipped",
			event:   prEvent("opened", 42, 0),
			wantErr: true,
		},
		{
			name:    "invalid PR number is skipped",
			event:   prEvent("opened", 0, 1001),
			wantErr: true,
		},
		{
			name: "missing repository is skipped",
			event: &github.PullRequestEvent{
				Action:       github.Ptr("opened"),
				PullRequest:  &github.PullRequest{Number: github.Ptr(42)},
				Installation: &github.Installation{ID: github.Ptr(int64(1001))},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EventFromPullRequest(tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EventFromPullRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.RepoOwner != "acme" || got.RepoName != "widgets" || got.RepoFullName != "acme/widgets" {
				t.Errorf("unexpected repository fields: %+v", got)
			}
			if got.PRNumber != 42 || got.InstallationID != 1001 || got.HeadSHA != "abc1234def" {
				t.Errorf("unexpected event fields: %+v", got)
			}
		})
	}
}

func TestReviewEventPRKey(t *testing.T) {
	e := &ReviewEvent{RepoFullName: "acme/widgets", PRNumber: 7}
	if got := e.PRKey(); got != "acme/widgets#7" {
		t.Errorf("PRKey() = %q, want %q", got, "acme/widgets#7")
	}
}
