package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
	"github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/internal/llm"
	"github.com/diffscope/diffscope/internal/logger"
	"github.com/diffscope/diffscope/internal/review"
)

var postComment bool

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	dimColor     = color.New(color.FgHiBlack)
)

var reviewCmd = &cobra.Command{
	Use:   "review [pr-url]",
	Short: "Review every changed file of a GitHub Pull Request",
	Long: `Review every changed file of a GitHub Pull Request.

The review command fetches the PR's changed files, sends each diff to the
configured Mistral model, and renders the combined report in the terminal.
With --post the report is posted to the pull request instead.

Examples:
  diffscope-cli review https://github.com/owner/repo/pull/123
  diffscope-cli review --post https://github.com/owner/repo/pull/123`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewCmd.Flags().BoolVar(&postComment, "post", false, "Post the report as a PR comment instead of rendering it")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	owner, repoName, prNumber, err := parsePullRequestURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid PR URL: %w\n\nExpected format: https://github.com/owner/repo/pull/123", err)
	}

	token := viper.GetString("GITHUB_TOKEN")
	if token == "" {
		return fmt.Errorf("GITHUB_TOKEN is not set\n\nTip: Set DS_GITHUB_TOKEN or pass --github-token")
	}

	cfg, err := cliConfig()
	if err != nil {
		return err
	}

	log := logger.New("warn", "text", os.Stderr)
	ghClient := github.NewPATClient(ctx, token, log)

	titleColor.Println("DiffScope - PR Review")
	dimColor.Printf("   Target: %s/%s#%d\n\n", owner, repoName, prNumber)

	event := &core.ReviewEvent{
		Action:       core.ActionOpened,
		RepoOwner:    owner,
		RepoName:     repoName,
		RepoFullName: fmt.Sprintf("%s/%s", owner, repoName),
		PRNumber:     prNumber,
	}

	resolver := review.NewResolver(ghClient, cfg.BotLogin, log)
	scope, err := resolver.Resolve(ctx, event, repoConfigOrDefault(ctx, ghClient, owner, repoName))
	if err != nil {
		return fmt.Errorf("failed to resolve review scope: %w", err)
	}
	if len(scope.Files) == 0 {
		successColor.Println("Nothing to review: no reviewable files changed.")
		return nil
	}

	reviewer, err := llm.NewMistralReviewer(cfg, log)
	if err != nil {
		return err
	}

	verdicts := make([]core.Verdict, 0, len(scope.Files))
	for _, f := range scope.Files {
		dimColor.Printf("   reviewing %s...\n", f.Filename)
		shaped, ok := review.ShapeDiff(f.Patch)
		if !ok {
			verdicts = append(verdicts, core.OK(f.Filename, review.TooLargePlaceholder))
			continue
		}
		verdicts = append(verdicts, reviewer.Review(ctx, f.Filename, shaped))
	}

	report := review.BuildReport(scope.Header, verdicts)

	if postComment {
		publisher := review.NewPublisher(ghClient, log)
		if err := publisher.Publish(ctx, event, report, scope.FileNames()); err != nil {
			return err
		}
		successColor.Printf("\nReview posted to %s/%s#%d\n", owner, repoName, prNumber)
	} else {
		rendered, err := glamour.Render(report, "dark")
		if err != nil {
			// Fall back to raw markdown if the terminal renderer chokes.
			fmt.Println(report)
		} else {
			fmt.Println(rendered)
		}
	}

	dimColor.Printf("\nDone in %s (%d files)\n", time.Since(start).Round(time.Millisecond), len(scope.Files))
	return nil
}

// cliConfig assembles just enough configuration for a one-off review from the
// environment; the server-side GitHub App credentials are not required here.
func cliConfig() (*config.Config, error) {
	viper.SetDefault("MISTRAL_BASE_URL", "https://api.mistral.ai/v1")
	viper.SetDefault("REVIEW_MODEL", "mistral-large-latest")
	viper.SetDefault("REVIEW_MAX_TOKENS", 1000)
	viper.SetDefault("REVIEW_TEMPERATURE", 0.7)
	viper.SetDefault("REVIEW_TIMEOUT", "90s")
	viper.SetDefault("BOT_LOGIN", "diffscope[bot]")

	apiKey := viper.GetString("MISTRAL_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("MISTRAL_API_KEY is not set\n\nTip: Set DS_MISTRAL_API_KEY in the environment")
	}

	return &config.Config{
		BotLogin:          viper.GetString("BOT_LOGIN"),
		MistralAPIKey:     apiKey,
		MistralBaseURL:    viper.GetString("MISTRAL_BASE_URL"),
		ReviewModel:       viper.GetString("REVIEW_MODEL"),
		ReviewMaxTokens:   viper.GetInt("REVIEW_MAX_TOKENS"),
		ReviewTemperature: viper.GetFloat64("REVIEW_TEMPERATURE"),
		ReviewTimeout:     viper.GetDuration("REVIEW_TIMEOUT"),
		ReviewConcurrency: 1,
	}, nil
}

func repoConfigOrDefault(ctx context.Context, client github.Client, owner, repo string) *core.RepoConfig {
	data, err := client.GetFileContent(ctx, owner, repo, config.RepoConfigPath, "")
	if err != nil {
		return core.DefaultRepoConfig()
	}
	repoCfg, err := config.ParseRepoConfig(data)
	if err != nil {
		return core.DefaultRepoConfig()
	}
	return repoCfg
}

var prURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/pull/(\d+)/?$`)

func parsePullRequestURL(url string) (owner, repo string, number int, err error) {
	m := prURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", 0, fmt.Errorf("unrecognized pull request URL %q", url)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, err
	}
	return m[1], m[2], number, nil
}
