// Package llm submits shaped diffs to the inference endpoint and converts the
// outcome into per-file verdicts. Upstream failures never escape this
// package; they become error-tagged verdicts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
)

// MaxVerdictChars bounds a single file's review text. Bounding per file keeps
// the aggregator's combined-size handling tractable.
const MaxVerdictChars = 6000

const verdictTruncationMarker = "\n\n_(review truncated)_"

// Reviewer produces a verdict for one file's shaped diff. Implementations
// never return an error; failures are carried in the verdict's tag.
type Reviewer interface {
	Review(ctx context.Context, path, shapedDiff string) core.Verdict
}

type modelReviewer struct {
	model  llms.Model
	cfg    *config.Config
	logger *slog.Logger
}

// NewMistralReviewer creates a Reviewer backed by Mistral's OpenAI-compatible
// chat-completions endpoint.
func NewMistralReviewer(cfg *config.Config, logger *slog.Logger) (Reviewer, error) {
	model, err := openai.New(
		openai.WithToken(cfg.MistralAPIKey),
		openai.WithModel(cfg.ReviewModel),
		openai.WithBaseURL(cfg.MistralBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create review model client: %w", err)
	}
	return NewReviewer(model, cfg, logger), nil
}

// NewReviewer wraps any llms.Model as a Reviewer. Used directly by tests and
// anywhere a pre-built model client exists.
func NewReviewer(model llms.Model, cfg *config.Config, logger *slog.Logger) Reviewer {
	return &modelReviewer{model: model, cfg: cfg, logger: logger}
}

// Review submits one shaped diff and returns a bounded verdict. The call is
// bounded by the configured timeout; a timeout, transport failure or
// malformed response yields an error-tagged verdict so the batch continues
// with the next file.
func (r *modelReviewer) Review(ctx context.Context, path, shapedDiff string) core.Verdict {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReviewTimeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(userPromptFmt, path, shapedDiff)),
	}

	resp, err := r.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(r.cfg.ReviewMaxTokens),
		llms.WithTemperature(r.cfg.ReviewTemperature),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.logger.Warn("review request timed out", "path", path, "timeout", r.cfg.ReviewTimeout)
			return core.Failed(path, fmt.Sprintf("review timed out after %s", r.cfg.ReviewTimeout))
		}
		r.logger.Warn("review request failed", "path", path, "error", err)
		return core.Failed(path, "review request failed: "+err.Error())
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		r.logger.Warn("review response was empty or malformed", "path", path)
		return core.Failed(path, "model returned an empty or malformed response")
	}

	return core.OK(path, boundVerdict(resp.Choices[0].Content))
}

// boundVerdict truncates review text to MaxVerdictChars at a line boundary,
// marking the cut.
func boundVerdict(body string) string {
	if len(body) <= MaxVerdictChars {
		return body
	}

	cut := body[:MaxVerdictChars-len(verdictTruncationMarker)]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + verdictTruncationMarker
}
