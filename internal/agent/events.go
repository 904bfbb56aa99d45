package agent

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a stream event
type EventType string

// Stream event types, in the order a turn can produce them
const (
	EventSessionID  EventType = "session_id"
	EventTextDelta  EventType = "text_delta"
	EventToolStart  EventType = "tool_start"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Event is one unit of the turn's output stream
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// SessionIDData announces the resolved session
type SessionIDData struct {
	SessionID string `json:"session_id"`
}

// TextDeltaData carries assistant text from one model round
type TextDeltaData struct {
	Text string `json:"text"`
}

// ToolStartData announces a tool invocation before it executes
type ToolStartData struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

// ToolResultData reports a finished tool invocation
type ToolResultData struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Mutated bool   `json:"mutated"`
}

// ErrorData carries a turn-fatal failure
type ErrorData struct {
	Message string `json:"message"`
}

// SSE encodes the event as one server-sent-events frame
func (e Event) SSE() string {
	data := e.Data
	if data == nil {
		data = struct{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)
}
