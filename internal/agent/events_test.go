package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventSSEFraming(t *testing.T) {
	event := Event{Type: EventTextDelta, Data: TextDeltaData{Text: "hello"}}
	assert.Equal(t, "event: text_delta\ndata: {\"text\":\"hello\"}\n\n", event.SSE())
}

func TestEventSSENilData(t *testing.T) {
	event := Event{Type: EventDone}
	assert.Equal(t, "event: done\ndata: {}\n\n", event.SSE())
}

func TestEventSSEToolResult(t *testing.T) {
	event := Event{Type: EventToolResult, Data: ToolResultData{Tool: "create_item", Success: true, Mutated: true}}
	assert.Equal(t, "event: tool_result\ndata: {\"tool\":\"create_item\",\"success\":true,\"mutated\":true}\n\n", event.SSE())
}
