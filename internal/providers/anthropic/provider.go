package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mindstash/mindstash-backend/internal/config"
	"github.com/mindstash/mindstash-backend/internal/providers"
)

const (
	defaultAPIURL    = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Provider implements the Anthropic provider
type Provider struct {
	id     string
	config config.ProviderConfig
	apiURL string
	client *http.Client
}

// anthropicRequest represents a request to Anthropic's messages API
type anthropicRequest struct {
	Model     string                `json:"model"`
	Messages  []providers.Message   `json:"messages"`
	MaxTokens int                   `json:"max_tokens"`
	System    string                `json:"system,omitempty"`
	Tools     []anthropicTool       `json:"tools,omitempty"`
}

// anthropicTool represents a tool definition
type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// anthropicResponse represents a response from Anthropic's API
type anthropicResponse struct {
	ID         string                    `json:"id"`
	Type       string                    `json:"type"`
	Role       string                    `json:"role"`
	Content    []providers.ContentBlock  `json:"content"`
	Model      string                    `json:"model"`
	StopReason string                    `json:"stop_reason,omitempty"`
	Usage      anthropicUsage            `json:"usage"`
}

// anthropicUsage represents token usage
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewProvider creates a new Anthropic provider
func NewProvider(id string, cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	apiURL := defaultAPIURL
	if cfg.BaseURL != "" {
		apiURL = cfg.BaseURL + "/v1/messages"
	}

	return &Provider{
		id:     id,
		config: cfg,
		apiURL: apiURL,
		client: &http.Client{},
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.config.Name
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	anthropicReq := p.convertRequest(req)

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Anthropic API error: %s - %s", resp.Status, string(bodyBytes))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return nil, err
	}

	return &providers.CompletionResponse{
		ID:         anthropicResp.ID,
		Model:      anthropicResp.Model,
		StopReason: anthropicResp.StopReason,
		Content:    anthropicResp.Content,
		Usage: providers.Usage{
			InputTokens:  anthropicResp.Usage.InputTokens,
			OutputTokens: anthropicResp.Usage.OutputTokens,
		},
	}, nil
}

// setHeaders sets the required headers for Anthropic API
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// convertRequest converts internal request to Anthropic request. The internal
// content-block form already matches the messages API, so only tools and
// defaults need mapping.
func (p *Provider) convertRequest(req providers.CompletionRequest) anthropicRequest {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	anthropicReq := anthropicRequest{
		Model:     model,
		Messages:  req.Messages,
		MaxTokens: maxTokens,
		System:    req.System,
	}

	for _, tool := range req.Tools {
		anthropicReq.Tools = append(anthropicReq.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	return anthropicReq
}
