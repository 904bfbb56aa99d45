package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/providers"
)

// Categories a captured item can be filed under
var Categories = []string{
	"read", "watch", "ideas", "tasks", "people", "notes",
	"goals", "buy", "places", "journal", "learn", "save",
}

const classifyPrompt = `Classify the following captured thought for a personal knowledge app.
Respond with a single JSON object and nothing else, with these fields:
category (one of: %s), tags (up to 5 short strings), summary (one sentence),
confidence (0..1), priority (low|medium|high), urgency (low|medium|high),
intent (task|idea|learn|reflection|reference), time_context (immediate|next_week|someday),
action_required (bool), should_notify (bool),
notification_frequency (never|once|daily|weekly|monthly).

Thought: %s`

// Result is the model's classification of one item
type Result struct {
	Category              string   `json:"category"`
	Tags                  []string `json:"tags"`
	Summary               string   `json:"summary"`
	Confidence            float64  `json:"confidence"`
	Priority              string   `json:"priority"`
	Urgency               string   `json:"urgency"`
	Intent                string   `json:"intent"`
	TimeContext           string   `json:"time_context"`
	ActionRequired        bool     `json:"action_required"`
	ShouldNotify          bool     `json:"should_notify"`
	NotificationFrequency string   `json:"notification_frequency"`
}

// Categorizer assigns a category and signals to new items via one model call
type Categorizer struct {
	provider providers.Provider
	model    string
	log      *logrus.Logger
}

// New creates a categorizer
func New(provider providers.Provider, model string, log *logrus.Logger) *Categorizer {
	return &Categorizer{provider: provider, model: model, log: log}
}

// Categorize classifies one item's content. Failures do not block item
// creation; callers treat a nil result as "leave uncategorized".
func (c *Categorizer) Categorize(ctx context.Context, content, url string) (*Result, error) {
	text := content
	if url != "" {
		text = fmt.Sprintf("%s (link: %s)", content, url)
	}

	resp, err := c.provider.Complete(ctx, providers.CompletionRequest{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []providers.Message{
			{
				Role: "user",
				Content: []providers.ContentBlock{
					providers.TextBlock(fmt.Sprintf(classifyPrompt, strings.Join(Categories, ", "), text)),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var raw strings.Builder
	for _, block := range resp.Content {
		if block.Type == providers.BlockText {
			raw.WriteString(block.Text)
		}
	}

	result, err := parseResult(raw.String())
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseResult extracts the JSON object from the model's reply, tolerating
// leading or trailing prose around it.
func parseResult(text string) (*Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in classification reply")
	}

	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}

	if !validCategory(result.Category) {
		result.Category = "save"
	}
	if result.NotificationFrequency == "" {
		result.NotificationFrequency = "never"
	}
	return &result, nil
}

func validCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
