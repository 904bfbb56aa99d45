package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/providers"
)

// DefaultAgentType is the agent tag tools register under when none is given
const DefaultAgentType = "assistant"

// Handler executes one tool invocation on behalf of a user. Handlers return a
// plain result map; failures are reported through an "error" key, and handlers
// that change persisted item state set "mutated" to true.
type Handler func(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{}

type registeredTool struct {
	schema     providers.Tool
	handler    Handler
	agentTypes []string
}

// ToolRegistry maps tool names to schemas and handlers, partitioned by agent
// type. Registration happens once at startup; after that the registry is
// read-only, so no locking is needed.
type ToolRegistry struct {
	log   *logrus.Logger
	tools map[string]registeredTool
	order []string
}

// NewToolRegistry creates an empty registry
func NewToolRegistry(log *logrus.Logger) *ToolRegistry {
	return &ToolRegistry{
		log:   log,
		tools: make(map[string]registeredTool),
	}
}

// Register adds a tool. Registering the same name again replaces the previous
// entry. With no agent types given the tool is visible to the default agent.
func (r *ToolRegistry) Register(schema providers.Tool, handler Handler, agentTypes ...string) {
	if len(agentTypes) == 0 {
		agentTypes = []string{DefaultAgentType}
	}
	if _, exists := r.tools[schema.Name]; !exists {
		r.order = append(r.order, schema.Name)
	}
	r.tools[schema.Name] = registeredTool{
		schema:     schema,
		handler:    handler,
		agentTypes: agentTypes,
	}
}

// Schemas returns the tool schemas visible to the given agent type, in
// registration order
func (r *ToolRegistry) Schemas(agentType string) []providers.Tool {
	schemas := make([]providers.Tool, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		for _, at := range tool.agentTypes {
			if at == agentType {
				schemas = append(schemas, tool.schema)
				break
			}
		}
	}
	return schemas
}

// Execute dispatches one tool invocation. Unknown tools and handler panics
// both come back as {"error": ...} results rather than faults, so the loop can
// feed them to the model as tool results.
func (r *ToolRegistry) Execute(ctx context.Context, name string, userID uuid.UUID, input map[string]interface{}) (result map[string]interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"tool":  name,
				"panic": rec,
			}).Error("tool handler panicked")
			result = map[string]interface{}{"error": fmt.Sprintf("%v", rec)}
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		return map[string]interface{}{"error": fmt.Sprintf("unknown tool: %s", name)}
	}

	if input == nil {
		input = map[string]interface{}{}
	}
	return tool.handler(ctx, userID, input)
}
