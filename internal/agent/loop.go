package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/config"
	"github.com/mindstash/mindstash-backend/internal/providers"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

const systemPrompt = `You are the assistant inside MindStash, a personal knowledge capture app. Users save thoughts, links, tasks, and ideas; you help them capture, find, and act on what they saved.

You have tools to search, create, update, delete, and complete items, plus tools for counts, upcoming reminders, and digests. Use them — never guess at the user's data.

Guidelines:
- When the user shares something worth keeping (a thought, link, task, idea), offer to save it or save it directly when they clearly asked.
- When they ask about their items, search before answering.
- Keep replies short and conversational. One or two sentences is usually enough.
- Confirm destructive actions naturally ("Deleted it") rather than restating raw tool output.
- If the message is exactly "[BRIEFING]", call generate_daily_briefing and present the result as a friendly morning summary.
- Never invent item IDs. Find items with search_items first.`

// toolStartMessages gives each tool a human-friendly progress line for the
// event stream
var toolStartMessages = map[string]string{
	"search_items":               "Searching your items...",
	"create_item":                "Saving that for you...",
	"update_item":                "Updating the item...",
	"delete_item":                "Deleting the item...",
	"mark_complete":              "Updating completion...",
	"get_counts":                 "Counting your items...",
	"get_upcoming_notifications": "Checking upcoming reminders...",
	"get_digest_preview":         "Preparing your digest...",
	"generate_daily_briefing":    "Putting your briefing together...",
}

// mutatingTools marks the tools whose success implies persisted state changed,
// even when the handler result omits the flag
var mutatingTools = map[string]bool{
	"create_item":   true,
	"update_item":   true,
	"delete_item":   true,
	"mark_complete": true,
}

// Loop runs agentic chat turns: it alternates model calls and tool executions
// until the model stops asking for tools or the iteration cap is reached.
type Loop struct {
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	provider providers.Provider
	registry *ToolRegistry
	log      *logrus.Logger

	model         string
	maxIterations int
	maxHistory    int
	maxTokens     int
}

// NewLoop wires a Loop from its collaborators and agent config
func NewLoop(
	sessions repository.ChatSessionRepository,
	messages repository.ChatMessageRepository,
	provider providers.Provider,
	registry *ToolRegistry,
	cfg config.AgentConfig,
	model string,
	log *logrus.Logger,
) *Loop {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 50
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Loop{
		sessions:      sessions,
		messages:      messages,
		provider:      provider,
		registry:      registry,
		log:           log,
		model:         model,
		maxIterations: maxIterations,
		maxHistory:    maxHistory,
		maxTokens:     maxTokens,
	}
}

// Run executes one chat turn and streams its events. The channel is closed
// when the turn finishes; every turn ends with exactly one done event.
func (l *Loop) Run(ctx context.Context, userID uuid.UUID, sessionID, message string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		l.run(ctx, userID, sessionID, message, events)
	}()
	return events
}

func (l *Loop) run(ctx context.Context, userID uuid.UUID, sessionID, message string, events chan<- Event) {
	session, err := l.sessions.GetOrCreate(ctx, userID, sessionID)
	if err != nil {
		l.fail(events, fmt.Errorf("resolving session: %w", err))
		return
	}
	events <- Event{Type: EventSessionID, Data: SessionIDData{SessionID: session.ID.String()}}

	log := l.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    userID,
	})

	userMsg := &repository.ChatMessage{
		SessionID: session.ID,
		Role:      repository.RoleUser,
		Content:   nullString(message),
	}
	if err := l.messages.Append(ctx, userMsg); err != nil {
		l.fail(events, fmt.Errorf("storing message: %w", err))
		return
	}

	// First message names the session
	if !session.Title.Valid || session.Title.String == "" {
		if err := l.sessions.SetTitle(ctx, session.ID, truncateTitle(message)); err != nil {
			log.WithError(err).Warn("failed to title session")
		}
	}

	history, err := l.messages.ListBySession(ctx, session.ID, l.maxHistory)
	if err != nil {
		l.fail(events, fmt.Errorf("loading history: %w", err))
		return
	}
	conversation := ToProviderMessages(trimLeadingToolResults(history))
	tools := l.registry.Schemas(session.AgentType)

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		if ctx.Err() != nil {
			log.Debug("turn abandoned, context cancelled")
			return
		}

		resp, err := l.provider.Complete(ctx, providers.CompletionRequest{
			Model:     l.model,
			System:    systemPrompt,
			MaxTokens: l.maxTokens,
			Messages:  conversation,
			Tools:     tools,
		})
		if err != nil {
			log.WithError(err).Error("model call failed")
			l.fail(events, err)
			return
		}

		text, toolCalls := splitResponse(resp)
		if text != "" {
			events <- Event{Type: EventTextDelta, Data: TextDeltaData{Text: text}}
		}

		assistantMsg := &repository.ChatMessage{
			SessionID: session.ID,
			Role:      repository.RoleAssistant,
			Content:   nullString(text),
			ToolCalls: toolCalls,
		}
		if err := l.messages.Append(ctx, assistantMsg); err != nil {
			l.fail(events, fmt.Errorf("storing assistant message: %w", err))
			return
		}
		conversation = append(conversation, assistantTurn(text, toolCalls))

		// end_turn is the only stop reason that ends the turn outright; a
		// truncated response that still managed to request tools gets them
		if len(toolCalls) == 0 || resp.StopReason == providers.StopEndTurn {
			events <- Event{Type: EventDone}
			return
		}

		results := make(repository.ToolResults, 0, len(toolCalls))
		for _, call := range toolCalls {
			events <- Event{Type: EventToolStart, Data: ToolStartData{
				Tool:    call.Name,
				Message: toolStartMessage(call.Name),
			}}

			var input map[string]interface{}
			if len(call.Input) > 0 {
				if err := json.Unmarshal(call.Input, &input); err != nil {
					log.WithError(err).WithField("tool", call.Name).Warn("bad tool input")
				}
			}

			result := l.registry.Execute(ctx, call.Name, userID, input)
			_, failed := result["error"]
			mutated, _ := result["mutated"].(bool)
			if failed {
				mutated = false
			} else if mutatingTools[call.Name] {
				mutated = true
			}

			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(`{"error": "unserializable tool result"}`)
			}
			results = append(results, repository.ToolResult{
				ToolUseID: call.ID,
				Content:   string(payload),
			})

			events <- Event{Type: EventToolResult, Data: ToolResultData{
				Tool:    call.Name,
				Success: !failed,
				Mutated: mutated,
			}}
		}

		toolMsg := &repository.ChatMessage{
			SessionID:   session.ID,
			Role:        repository.RoleToolResult,
			ToolResults: results,
		}
		if err := l.messages.Append(ctx, toolMsg); err != nil {
			l.fail(events, fmt.Errorf("storing tool results: %w", err))
			return
		}
		conversation = append(conversation, toolResultTurn(results))
	}

	// Iteration cap reached: the turn stops cleanly with whatever was said
	log.WithField("max_iterations", l.maxIterations).Warn("turn hit iteration cap")
	events <- Event{Type: EventDone}
}

func (l *Loop) fail(events chan<- Event, err error) {
	events <- Event{Type: EventError, Data: ErrorData{Message: err.Error()}}
	events <- Event{Type: EventDone}
}

// splitResponse separates a model response into its text and tool calls
func splitResponse(resp *providers.CompletionResponse) (string, repository.ToolCalls) {
	var text string
	var calls repository.ToolCalls
	for _, block := range resp.Content {
		switch block.Type {
		case providers.BlockText:
			if text == "" {
				text = block.Text
			} else {
				text += "\n" + block.Text
			}
		case providers.BlockToolUse:
			calls = append(calls, repository.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	return text, calls
}

func truncateTitle(message string) string {
	runes := []rune(message)
	if len(runes) > 100 {
		return string(runes[:100])
	}
	return message
}

func toolStartMessage(name string) string {
	if msg, ok := toolStartMessages[name]; ok {
		return msg
	}
	return "Working on it..."
}
