// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"fmt"

	"github.com/google/go-github/v73/github"
)

// Action identifies the pull request activity that triggered a review.
type Action string

const (
	// ActionOpened means the pull request was just created; every changed
	// file is in scope.
	ActionOpened Action = "opened"
	// ActionSynchronize means new commits were pushed; only files changed
	// since the last posted review are in scope.
	ActionSynchronize Action = "synchronize"
)

// ReviewEvent represents a simplified, internal view of a GitHub pull request
// webhook event. It is constructed once per delivery and never mutated.
type ReviewEvent struct {
	Action Action

	RepoOwner    string
	RepoName     string
	RepoFullName string

	PRNumber int
	HeadSHA  string

	InstallationID int64
}

// PRKey returns a stable identifier for the pull request the event targets,
// used to serialize overlapping deliveries for the same PR.
func (e *ReviewEvent) PRKey() string {
	return fmt.Sprintf("%s#%d", e.RepoFullName, e.PRNumber)
}

// EventFromPullRequest transforms a raw GitHub PullRequestEvent into the
// application's internal ReviewEvent representation. It acts as an
// anti-corruption layer: only "opened" and "synchronize" actions pass, and the
// payload must carry the repository, pull request number and installation ID.
// A non-nil error means the delivery should be skipped, not failed.
func EventFromPullRequest(event *github.PullRequestEvent) (*ReviewEvent, error) {
	action := event.GetAction()
	if action != string(ActionOpened) && action != string(ActionSynchronize) {
		return nil, fmt.Errorf("action %q not handled", action)
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	prNumber := event.GetPullRequest().GetNumber()
	if prNumber <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", prNumber)
	}

	if event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("installation ID is missing from the event")
	}

	return &ReviewEvent{
		Action:         Action(action),
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		PRNumber:       prNumber,
		HeadSHA:        event.GetPullRequest().GetHead().GetSHA(),
		InstallationID: event.GetInstallation().GetID(),
	}, nil
}
