package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubProvider struct{ name string }

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{StopReason: StopEndTurn}, nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	assert.Nil(t, registry.Get("anthropic"))
	assert.False(t, registry.Has("anthropic"))

	registry.Register("anthropic", &stubProvider{name: "Anthropic"})
	registry.Register("openai", &stubProvider{name: "OpenAI"})

	assert.True(t, registry.Has("anthropic"))
	assert.Equal(t, "Anthropic", registry.Get("anthropic").Name())
	assert.Len(t, registry.List(), 2)
}
