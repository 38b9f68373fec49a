package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wbarena/arena/internal/contracts"
)

// AnthropicAdapter is a structured-output client for the Anthropic Messages
// API. Anthropic has no native JSON mode, so the schema is restated in the
// system prompt and the assistant's reply is parsed strictly; a malformed
// reply surfaces as provider_schema_violation, which the engine's repair
// loop handles the same way regardless of provider.
type AnthropicAdapter struct {
	BaseProvider
	model     string
	temperature float64
	maxTokens int
	apiKey    string
	baseURL   string
}

func NewAnthropicAdapter(model string, temperature float64, maxTokens int, apiKey string) *AnthropicAdapter {
	return &AnthropicAdapter{
		BaseProvider: NewBaseProvider("anthropic", 0),
		model:        model,
		temperature:  temperature,
		maxTokens:    maxTokens,
		apiKey:       apiKey,
		baseURL:      "https://api.anthropic.com/v1/messages",
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system"`
	Messages    []anthropicMessage  `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (a *AnthropicAdapter) StartConversation(ctx context.Context, systemPrompt, schema string, challenge contracts.Challenge, initialCanon contracts.Canon) (*ConversationHandle, error) {
	h := newHistory(systemPrompt, schema, challenge, initialCanon)
	return h.encode(a.ID()), nil
}

func (a *AnthropicAdapter) GenerateTurn(ctx context.Context, handle *ConversationHandle, spec TurnSpec) (contracts.TurnOutput, *ConversationHandle, Usage, error) {
	h, err := loadHistory(handle)
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: err}
	}
	instruction := turnInstruction(spec)
	h.Messages = append(h.Messages, historyTurn{Role: "user", Content: instruction})

	messages := make([]anthropicMessage, 0, len(h.Messages))
	for _, m := range h.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, anthropicMessage{Role: role, Content: m.Content})
	}

	system := h.SystemPrompt + "\nRespond only with a single JSON object matching this schema:\n" + h.Schema

	reqBody := anthropicRequest{Model: a.model, System: system, Messages: messages, Temperature: a.temperature, MaxTokens: a.maxTokens}

	respBytes, status, err := a.MakeJSONRequest(ctx, a.baseURL, reqBody, RequestHeaders{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
		"Content-Type":      "application/json",
	}, "anthropic")
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, classifyHTTPErr(status, err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	if parsed.Error != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message)}
	}
	if len(parsed.Content) == 0 {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("anthropic: empty content")}
	}

	text := parsed.Content[0].Text
	out, err := parseTurnOutput(text)
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, err
	}

	h.Messages = append(h.Messages, historyTurn{Role: "assistant", Content: text})
	usage := Usage{InputTokens: parsed.Usage.InputTokens, OutputTokens: parsed.Usage.OutputTokens}
	return out, h.encode(a.ID()), usage, nil
}

func (a *AnthropicAdapter) GeneratePromptPack(ctx context.Context, finalCanon contracts.Canon) (contracts.PromptPack, Usage, error) {
	schema := contracts.PromptPackSchemaJSON()
	system := "You generate image-generation prompt packs from a validated world canon.\nRespond only with a single JSON object matching this schema:\n" + schema
	instruction := promptPackInstruction(schema, finalCanon)

	reqBody := anthropicRequest{
		Model:       a.model,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: instruction}},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}

	respBytes, status, err := a.MakeJSONRequest(ctx, a.baseURL, reqBody, RequestHeaders{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
		"Content-Type":      "application/json",
	}, "anthropic")
	if err != nil {
		return contracts.PromptPack{}, Usage{}, classifyHTTPErr(status, err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	if parsed.Error != nil {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message)}
	}
	if len(parsed.Content) == 0 {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("anthropic: empty content")}
	}

	pack, err := parsePromptPack(parsed.Content[0].Text)
	if err != nil {
		return contracts.PromptPack{}, Usage{}, err
	}
	usage := Usage{InputTokens: parsed.Usage.InputTokens, OutputTokens: parsed.Usage.OutputTokens}
	return pack, usage, nil
}
