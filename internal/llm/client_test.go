package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/diffscope/diffscope/internal/config"
)

// fakeModel is a canned llms.Model for exercising the reviewer without a live
// endpoint.
type fakeModel struct {
	content  string
	err      error
	noChoice bool

	gotMessages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.gotMessages = messages
	if f.err != nil {
		return nil, f.err
	}
	if f.noChoice {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.content}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ReviewModel:       "mistral-large-latest",
		ReviewMaxTokens:   1000,
		ReviewTemperature: 0.7,
		ReviewTimeout:     5 * time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReviewSuccess(t *testing.T) {
	model := &fakeModel{content: "The change looks reasonable."}
	r := NewReviewer(model, testConfig(), testLogger())

	v := r.Review(context.Background(), "main.go", "```diff\n+x\n```")

	assert.False(t, v.Err)
	assert.Equal(t, "main.go", v.Path)
	assert.Equal(t, "The change looks reasonable.", v.Body)

	// The request carries a system prompt and the diff embedded in the user
	// message.
	require.Len(t, model.gotMessages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.gotMessages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.gotMessages[1].Role)
}

func TestReviewTimeout(t *testing.T) {
	model := &fakeModel{err: context.DeadlineExceeded}
	r := NewReviewer(model, testConfig(), testLogger())

	v := r.Review(context.Background(), "main.go", "```diff\n+x\n```")

	assert.True(t, v.Err)
	assert.Contains(t, v.Body, "review timed out")
}

func TestReviewTransportFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("connection refused")}
	r := NewReviewer(model, testConfig(), testLogger())

	v := r.Review(context.Background(), "main.go", "```diff\n+x\n```")

	assert.True(t, v.Err)
	assert.Contains(t, v.Body, "review request failed")
	assert.Contains(t, v.Body, "connection refused")
}

func TestReviewMalformedResponse(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{name: "no choices", model: &fakeModel{noChoice: true}},
		{name: "blank content", model: &fakeModel{content: "   \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReviewer(tt.model, testConfig(), testLogger())
			v := r.Review(context.Background(), "main.go", "```diff\n+x\n```")

			assert.True(t, v.Err)
			assert.Contains(t, v.Body, "empty or malformed")
		})
	}
}

func TestReviewBoundsLongVerdicts(t *testing.T) {
	long := strings.Repeat("an observation about the diff\n", MaxVerdictChars/20)
	model := &fakeModel{content: long}
	r := NewReviewer(model, testConfig(), testLogger())

	v := r.Review(context.Background(), "main.go", "```diff\n+x\n```")

	assert.False(t, v.Err)
	assert.LessOrEqual(t, len(v.Body), MaxVerdictChars)
	assert.True(t, strings.HasSuffix(v.Body, verdictTruncationMarker))
}
