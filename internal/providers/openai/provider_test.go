package openai

import (
	"encoding/json"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mindstash/mindstash-backend/internal/config"
	"github.com/mindstash/mindstash-backend/internal/providers"
)

func testProvider(t *testing.T) *Provider {
	p, err := NewProvider("openai", config.ProviderConfig{
		Type:   "openai",
		Name:   "OpenAI",
		APIKey: "test-key",
		Model:  "gpt-4o-mini",
	})
	require.NoError(t, err)
	return p
}

func TestNewProviderRequiresAPIKey(t *testing.T) {
	_, err := NewProvider("openai", config.ProviderConfig{Type: "openai"})
	assert.Error(t, err)
}

func TestConvertRequestSystemAndText(t *testing.T) {
	p := testProvider(t)

	req := p.convertRequest(providers.CompletionRequest{
		System:    "be helpful",
		MaxTokens: 256,
		Messages: []providers.Message{
			{Role: "user", Content: []providers.ContentBlock{providers.TextBlock("hello")}},
		},
	})

	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 256, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "be helpful", req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "hello", req.Messages[1].Content)
}

func TestConvertRequestToolRoundTrip(t *testing.T) {
	p := testProvider(t)

	req := p.convertRequest(providers.CompletionRequest{
		Messages: []providers.Message{
			{Role: "user", Content: []providers.ContentBlock{providers.TextBlock("save this")}},
			{Role: "assistant", Content: []providers.ContentBlock{
				providers.TextBlock("On it."),
				providers.ToolUseBlock("call_1", "create_item", json.RawMessage(`{"content":"x"}`)),
			}},
			{Role: "user", Content: []providers.ContentBlock{
				providers.ToolResultBlock("call_1", `{"created":true}`),
			}},
		},
		Tools: []providers.Tool{
			{Name: "create_item", Description: "saves an item", InputSchema: map[string]interface{}{"type": "object"}},
		},
	})

	require.Len(t, req.Messages, 3)

	assistant := req.Messages[1]
	assert.Equal(t, "assistant", assistant.Role)
	assert.Equal(t, "On it.", assistant.Content)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "create_item", assistant.ToolCalls[0].Function.Name)

	// Tool result blocks become role "tool" messages
	toolMsg := req.Messages[2]
	assert.Equal(t, openai.ChatMessageRoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Equal(t, `{"created":true}`, toolMsg.Content)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "create_item", req.Tools[0].Function.Name)
}

func TestConvertResponseText(t *testing.T) {
	p := testProvider(t)

	out := p.convertResponse(&openai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "hi"},
				FinishReason: openai.FinishReasonStop,
			},
		},
	})

	assert.Equal(t, providers.StopEndTurn, out.StopReason)
	require.Len(t, out.Content, 1)
	assert.Equal(t, providers.BlockText, out.Content[0].Type)
	assert.Equal(t, "hi", out.Content[0].Text)
}

func TestConvertResponseToolCalls(t *testing.T) {
	p := testProvider(t)

	out := p.convertResponse(&openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role: "assistant",
					ToolCalls: []openai.ToolCall{
						{
							ID:   "call_9",
							Type: openai.ToolTypeFunction,
							Function: openai.FunctionCall{
								Name:      "search_items",
								Arguments: `{"search":"milk"}`,
							},
						},
					},
				},
				FinishReason: openai.FinishReasonToolCalls,
			},
		},
	})

	assert.Equal(t, providers.StopToolUse, out.StopReason)
	require.Len(t, out.Content, 1)
	assert.Equal(t, providers.BlockToolUse, out.Content[0].Type)
	assert.Equal(t, "call_9", out.Content[0].ID)
	assert.Equal(t, "search_items", out.Content[0].Name)
	assert.JSONEq(t, `{"search":"milk"}`, string(out.Content[0].Input))
}

func TestConvertResponseEmptyChoices(t *testing.T) {
	p := testProvider(t)
	out := p.convertResponse(&openai.ChatCompletionResponse{})
	assert.Equal(t, providers.StopEndTurn, out.StopReason)
	assert.Empty(t, out.Content)
}
