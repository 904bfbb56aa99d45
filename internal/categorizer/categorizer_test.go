package categorizer

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mindstash/mindstash-backend/internal/providers"
)

type cannedProvider struct {
	reply   string
	err     error
	lastReq providers.CompletionRequest
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &providers.CompletionResponse{
		StopReason: providers.StopEndTurn,
		Content:    []providers.ContentBlock{providers.TextBlock(p.reply)},
	}, nil
}

func newCategorizer(provider providers.Provider) *Categorizer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(provider, "test-model", log)
}

func TestCategorizeParsesReply(t *testing.T) {
	provider := &cannedProvider{reply: `{
		"category": "tasks",
		"tags": ["errand"],
		"summary": "Buy milk on the way home",
		"confidence": 0.92,
		"priority": "medium",
		"urgency": "low",
		"intent": "task",
		"time_context": "immediate",
		"action_required": true,
		"should_notify": false,
		"notification_frequency": "never"
	}`}
	c := newCategorizer(provider)

	result, err := c.Categorize(context.Background(), "buy milk", "")
	require.NoError(t, err)
	assert.Equal(t, "tasks", result.Category)
	assert.Equal(t, []string{"errand"}, result.Tags)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
	assert.True(t, result.ActionRequired)
}

func TestCategorizeToleratesSurroundingProse(t *testing.T) {
	provider := &cannedProvider{reply: "Sure! Here is the classification:\n{\"category\": \"ideas\"}\nHope that helps."}
	c := newCategorizer(provider)

	result, err := c.Categorize(context.Background(), "what if plants could email", "")
	require.NoError(t, err)
	assert.Equal(t, "ideas", result.Category)
}

func TestCategorizeInvalidCategoryFallsBack(t *testing.T) {
	provider := &cannedProvider{reply: `{"category": "nonsense"}`}
	c := newCategorizer(provider)

	result, err := c.Categorize(context.Background(), "something", "")
	require.NoError(t, err)
	assert.Equal(t, "save", result.Category)
	assert.Equal(t, "never", result.NotificationFrequency)
}

func TestCategorizeNoJSONErrors(t *testing.T) {
	provider := &cannedProvider{reply: "I cannot classify that."}
	c := newCategorizer(provider)

	_, err := c.Categorize(context.Background(), "something", "")
	assert.Error(t, err)
}

func TestCategorizeIncludesURLInPrompt(t *testing.T) {
	provider := &cannedProvider{reply: `{"category": "read"}`}
	c := newCategorizer(provider)

	_, err := c.Categorize(context.Background(), "great article", "https://example.com/post")
	require.NoError(t, err)
	require.Len(t, provider.lastReq.Messages, 1)
	assert.Contains(t, provider.lastReq.Messages[0].Content[0].Text, "https://example.com/post")
}
