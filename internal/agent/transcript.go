package agent

import (
	"database/sql"

	"github.com/mindstash/mindstash-backend/internal/providers"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// ToProviderMessages converts persisted messages to model-API form. Messages
// with nothing to say (no content, no tool calls, no tool results) produce no
// turn at all.
func ToProviderMessages(messages []repository.ChatMessage) []providers.Message {
	result := make([]providers.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case repository.RoleUser:
			if !msg.Content.Valid || msg.Content.String == "" {
				continue
			}
			result = append(result, providers.Message{
				Role:    "user",
				Content: []providers.ContentBlock{providers.TextBlock(msg.Content.String)},
			})

		case repository.RoleAssistant:
			turn := assistantTurn(msg.Content.String, msg.ToolCalls)
			if len(turn.Content) == 0 {
				continue
			}
			result = append(result, turn)

		case repository.RoleToolResult:
			turn := toolResultTurn(msg.ToolResults)
			if len(turn.Content) == 0 {
				continue
			}
			result = append(result, turn)
		}
	}
	return result
}

// FromProviderMessages converts model-API turns back to the persisted form.
// A "user" turn made of tool_result blocks restores the tool_result
// pseudo-role; the mapping inverts ToProviderMessages for every field the
// model API understands.
func FromProviderMessages(messages []providers.Message) []repository.ChatMessage {
	result := make([]repository.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		var text string
		var toolCalls repository.ToolCalls
		var toolResults repository.ToolResults

		for _, block := range msg.Content {
			switch block.Type {
			case providers.BlockText:
				if text == "" {
					text = block.Text
				} else {
					text += "\n" + block.Text
				}
			case providers.BlockToolUse:
				toolCalls = append(toolCalls, repository.ToolCall{
					ID:    block.ID,
					Name:  block.Name,
					Input: block.Input,
				})
			case providers.BlockToolResult:
				toolResults = append(toolResults, repository.ToolResult{
					ToolUseID: block.ToolUseID,
					Content:   block.Content,
				})
			}
		}

		stored := repository.ChatMessage{}
		switch {
		case len(toolResults) > 0:
			stored.Role = repository.RoleToolResult
			stored.ToolResults = toolResults
		case msg.Role == "assistant":
			stored.Role = repository.RoleAssistant
			stored.Content = nullString(text)
			stored.ToolCalls = toolCalls
		default:
			stored.Role = repository.RoleUser
			stored.Content = nullString(text)
		}
		result = append(result, stored)
	}
	return result
}

// trimLeadingToolResults drops tool_result messages from the front of a
// history window. A capped read can open on results whose tool calls fell
// outside the window, and the model API rejects a transcript that starts
// with orphaned results.
func trimLeadingToolResults(messages []repository.ChatMessage) []repository.ChatMessage {
	for len(messages) > 0 && messages[0].Role == repository.RoleToolResult {
		messages = messages[1:]
	}
	return messages
}

// assistantTurn builds an assistant model turn: a leading text block when
// content is present, then one tool_use block per call descriptor.
func assistantTurn(text string, calls repository.ToolCalls) providers.Message {
	blocks := []providers.ContentBlock{}
	if text != "" {
		blocks = append(blocks, providers.TextBlock(text))
	}
	for _, call := range calls {
		blocks = append(blocks, providers.ToolUseBlock(call.ID, call.Name, call.Input))
	}
	return providers.Message{Role: "assistant", Content: blocks}
}

// toolResultTurn builds the model turn answering the preceding assistant
// turn's tool calls. The model API takes tool results on the user side of the
// alternation.
func toolResultTurn(results repository.ToolResults) providers.Message {
	blocks := make([]providers.ContentBlock, 0, len(results))
	for _, res := range results {
		blocks = append(blocks, providers.ToolResultBlock(res.ToolUseID, res.Content))
	}
	return providers.Message{Role: "user", Content: blocks}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
