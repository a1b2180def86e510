package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
	gh "github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/internal/llm"
	"github.com/diffscope/diffscope/internal/review"
)

// ClientFactory builds a GitHub client authenticated for a specific app
// installation. Injected so tests can supply a fake client.
type ClientFactory func(ctx context.Context, installationID int64) (gh.Client, error)

// ReviewJob reviews the diffs that are new since the last posted review and
// publishes one aggregated comment per delivery.
type ReviewJob struct {
	cfg       *config.Config
	newClient ClientFactory
	reviewer  llm.Reviewer
	locks     *keyedMutex
	logger    *slog.Logger
}

// NewReviewJob creates a ReviewJob. All dependencies are required.
func NewReviewJob(cfg *config.Config, newClient ClientFactory, reviewer llm.Reviewer, logger *slog.Logger) *ReviewJob {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if newClient == nil {
		panic("client factory cannot be nil")
	}
	if reviewer == nil {
		panic("reviewer cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ReviewJob{
		cfg:       cfg,
		newClient: newClient,
		reviewer:  reviewer,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

// Run executes one review invocation for a webhook delivery. Scope-resolution
// failures abort the invocation; per-file review failures become error
// verdicts and never abort the batch.
func (j *ReviewJob) Run(ctx context.Context, event *core.ReviewEvent) error {
	if err := validateEvent(event); err != nil {
		return fmt.Errorf("input validation failed: %w", err)
	}

	// Serialize deliveries per pull request so concurrent pushes cannot race
	// on the watermark and double-review the same commits.
	key := event.PRKey()
	j.locks.Lock(key)
	defer j.locks.Unlock(key)

	j.logger.Info("starting review job", "repo", event.RepoFullName, "pr", event.PRNumber, "action", event.Action)

	client, err := j.newClient(ctx, event.InstallationID)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	repoCfg := j.loadRepoConfig(ctx, client, event)

	resolver := review.NewResolver(client, j.cfg.BotLogin, j.logger)
	scope, err := resolver.Resolve(ctx, event, repoCfg)
	if err != nil {
		return fmt.Errorf("failed to resolve review scope: %w", err)
	}
	if len(scope.Files) == 0 {
		j.logger.Info("nothing to review", "repo", event.RepoFullName, "pr", event.PRNumber)
		return nil
	}

	verdicts := j.reviewFiles(ctx, scope.Files)

	report := review.BuildReport(scope.Header, verdicts)
	publisher := review.NewPublisher(client, j.logger)
	if err := publisher.Publish(ctx, event, report, scope.FileNames()); err != nil {
		return fmt.Errorf("failed to publish review: %w", err)
	}

	j.logger.Info("review job completed", "repo", event.RepoFullName, "pr", event.PRNumber, "files", len(scope.Files))
	return nil
}

// reviewFiles produces one verdict per file, preserving input order. The
// fan-out is bounded by ReviewConcurrency (1 = strictly sequential); a
// failing file contributes an error verdict and cannot cancel the others.
func (j *ReviewJob) reviewFiles(ctx context.Context, files []gh.ChangedFile) []core.Verdict {
	verdicts := make([]core.Verdict, len(files))

	g := new(errgroup.Group)
	g.SetLimit(j.cfg.ReviewConcurrency)
	for i, f := range files {
		g.Go(func() error {
			verdicts[i] = j.reviewFile(ctx, f)
			return nil
		})
	}
	// Workers only ever return nil; Wait is for completion, not errors.
	_ = g.Wait()

	return verdicts
}

func (j *ReviewJob) reviewFile(ctx context.Context, file gh.ChangedFile) core.Verdict {
	shaped, ok := review.ShapeDiff(file.Patch)
	if !ok {
		j.logger.Info("diff too large for review, skipping analysis", "path", file.Filename, "size", len(file.Patch))
		return core.OK(file.Filename, review.TooLargePlaceholder)
	}
	return j.reviewer.Review(ctx, file.Filename, shaped)
}

// loadRepoConfig fetches .diffscope.yml at the PR head. A missing or broken
// file falls back to defaults; per-repo configuration must never block a
// review.
func (j *ReviewJob) loadRepoConfig(ctx context.Context, client gh.Client, event *core.ReviewEvent) *core.RepoConfig {
	data, err := client.GetFileContent(ctx, event.RepoOwner, event.RepoName, config.RepoConfigPath, event.HeadSHA)
	if err != nil {
		return core.DefaultRepoConfig()
	}

	repoCfg, err := config.ParseRepoConfig(data)
	if err != nil {
		j.logger.Warn("ignoring unparsable repo config", "repo", event.RepoFullName, "error", err)
		return core.DefaultRepoConfig()
	}
	return repoCfg
}

func validateEvent(event *core.ReviewEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	if event.RepoOwner == "" || event.RepoName == "" {
		return errors.New("repository information cannot be empty")
	}
	if event.PRNumber <= 0 {
		return fmt.Errorf("pull request number must be positive, got: %d", event.PRNumber)
	}
	if event.InstallationID <= 0 {
		return fmt.Errorf("installation ID must be positive, got: %d", event.InstallationID)
	}
	return nil
}
