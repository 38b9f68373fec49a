package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wbarena/arena/internal/contracts"
)

// OpenAIAdapter is a structured-output client for OpenAI's chat completions
// API. It keeps full message history in the ConversationHandle and resends
// it on every call, since the engine's handle contract permits either
// strategy and response-chaining adds no benefit for short deliberations.
type OpenAIAdapter struct {
	BaseProvider
	model       string
	temperature float64
	maxTokens   int
	apiKey      string
	baseURL     string
}

func NewOpenAIAdapter(model string, temperature float64, maxTokens int, apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{
		BaseProvider: NewBaseProvider("openai", 0),
		model:        model,
		temperature:  temperature,
		maxTokens:    maxTokens,
		apiKey:       apiKey,
		baseURL:      "https://api.openai.com/v1/chat/completions",
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *OpenAIAdapter) StartConversation(ctx context.Context, systemPrompt, schema string, challenge contracts.Challenge, initialCanon contracts.Canon) (*ConversationHandle, error) {
	h := newHistory(systemPrompt, schema, challenge, initialCanon)
	return h.encode(a.ID()), nil
}

func (a *OpenAIAdapter) GenerateTurn(ctx context.Context, handle *ConversationHandle, spec TurnSpec) (contracts.TurnOutput, *ConversationHandle, Usage, error) {
	h, err := loadHistory(handle)
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: err}
	}
	instruction := turnInstruction(spec)
	h.Messages = append(h.Messages, historyTurn{Role: "user", Content: instruction})

	messages := make([]openAIMessage, 0, len(h.Messages)+2)
	messages = append(messages, openAIMessage{Role: "system", Content: h.SystemPrompt + "\nSchema:\n" + h.Schema})
	for _, m := range h.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, openAIMessage{Role: role, Content: m.Content})
	}

	reqBody := openAIRequest{Model: a.model, Messages: messages, Temperature: a.temperature, MaxTokens: a.maxTokens}
	reqBody.ResponseFormat.Type = "json_object"

	respBytes, status, err := a.MakeJSONRequest(ctx, a.baseURL, reqBody, RequestHeaders{
		"Authorization": "Bearer " + a.apiKey,
		"Content-Type":  "application/json",
	}, "openai")
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, classifyHTTPErr(status, err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	if parsed.Error != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("openai: empty choices")}
	}

	out, err := parseTurnOutput(parsed.Choices[0].Message.Content)
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, err
	}

	h.Messages = append(h.Messages, historyTurn{Role: "assistant", Content: parsed.Choices[0].Message.Content})
	usage := Usage{InputTokens: parsed.Usage.PromptTokens, OutputTokens: parsed.Usage.CompletionTokens}
	return out, h.encode(a.ID()), usage, nil
}

func (a *OpenAIAdapter) GeneratePromptPack(ctx context.Context, finalCanon contracts.Canon) (contracts.PromptPack, Usage, error) {
	schema := contracts.PromptPackSchemaJSON()
	instruction := promptPackInstruction(schema, finalCanon)
	messages := []openAIMessage{
		{Role: "system", Content: "You generate image-generation prompt packs from a validated world canon.\nSchema:\n" + schema},
		{Role: "user", Content: instruction},
	}

	reqBody := openAIRequest{Model: a.model, Messages: messages, Temperature: a.temperature, MaxTokens: a.maxTokens}
	reqBody.ResponseFormat.Type = "json_object"

	respBytes, status, err := a.MakeJSONRequest(ctx, a.baseURL, reqBody, RequestHeaders{
		"Authorization": "Bearer " + a.apiKey,
		"Content-Type":  "application/json",
	}, "openai")
	if err != nil {
		return contracts.PromptPack{}, Usage{}, classifyHTTPErr(status, err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	if parsed.Error != nil {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("openai: empty choices")}
	}

	pack, err := parsePromptPack(parsed.Choices[0].Message.Content)
	if err != nil {
		return contracts.PromptPack{}, Usage{}, err
	}
	usage := Usage{InputTokens: parsed.Usage.PromptTokens, OutputTokens: parsed.Usage.CompletionTokens}
	return pack, usage, nil
}

func classifyHTTPErr(status int, err error) error {
	switch status {
	case http.StatusTooManyRequests:
		return &ProviderError{Kind: ErrRateLimited, Err: err}
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return &ProviderError{Kind: ErrTimeout, Err: err}
	case http.StatusServiceUnavailable, http.StatusBadGateway, 0:
		return &ProviderError{Kind: ErrUnavailable, Err: err}
	default:
		return &ProviderError{Kind: ErrUnavailable, Err: err}
	}
}
