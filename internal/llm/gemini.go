package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wbarena/arena/internal/contracts"
)

// GeminiAdapter is a structured-output client for the Gemini generateContent
// API, using its native response_mime_type: "application/json" mode.
type GeminiAdapter struct {
	BaseProvider
	model       string
	temperature float64
	maxTokens   int
	apiKey      string
}

func NewGeminiAdapter(model string, temperature float64, maxTokens int, apiKey string) *GeminiAdapter {
	return &GeminiAdapter{
		BaseProvider: NewBaseProvider("gemini", 0),
		model:        model,
		temperature:  temperature,
		maxTokens:    maxTokens,
		apiKey:       apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiRequest struct {
	SystemInstruction geminiContent          `json:"systemInstruction"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *GeminiAdapter) url() string {
	return fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", a.model, a.apiKey)
}

func (a *GeminiAdapter) StartConversation(ctx context.Context, systemPrompt, schema string, challenge contracts.Challenge, initialCanon contracts.Canon) (*ConversationHandle, error) {
	h := newHistory(systemPrompt, schema, challenge, initialCanon)
	return h.encode(a.ID()), nil
}

func (a *GeminiAdapter) GenerateTurn(ctx context.Context, handle *ConversationHandle, spec TurnSpec) (contracts.TurnOutput, *ConversationHandle, Usage, error) {
	h, err := loadHistory(handle)
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: err}
	}
	instruction := turnInstruction(spec)
	h.Messages = append(h.Messages, historyTurn{Role: "user", Content: instruction})

	contents := make([]geminiContent, 0, len(h.Messages))
	for _, m := range h.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	reqBody := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: h.SystemPrompt + "\nSchema:\n" + h.Schema}}},
		Contents:          contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:      a.temperature,
			MaxOutputTokens:  a.maxTokens,
			ResponseMimeType: "application/json",
		},
	}

	respBytes, status, err := a.MakeJSONRequest(ctx, a.url(), reqBody, RequestHeaders{
		"Content-Type": "application/json",
	}, "gemini")
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, classifyHTTPErr(status, err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	if parsed.Error != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("gemini: empty candidates")}
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	out, err := parseTurnOutput(text)
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, err
	}

	h.Messages = append(h.Messages, historyTurn{Role: "assistant", Content: text})
	usage := Usage{InputTokens: parsed.UsageMetadata.PromptTokenCount, OutputTokens: parsed.UsageMetadata.CandidatesTokenCount}
	return out, h.encode(a.ID()), usage, nil
}

func (a *GeminiAdapter) GeneratePromptPack(ctx context.Context, finalCanon contracts.Canon) (contracts.PromptPack, Usage, error) {
	schema := contracts.PromptPackSchemaJSON()
	instruction := promptPackInstruction(schema, finalCanon)

	reqBody := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: "You generate image-generation prompt packs from a validated world canon.\nSchema:\n" + schema}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: instruction}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      a.temperature,
			MaxOutputTokens:  a.maxTokens,
			ResponseMimeType: "application/json",
		},
	}

	respBytes, status, err := a.MakeJSONRequest(ctx, a.url(), reqBody, RequestHeaders{
		"Content-Type": "application/json",
	}, "gemini")
	if err != nil {
		return contracts.PromptPack{}, Usage{}, classifyHTTPErr(status, err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	if parsed.Error != nil {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("gemini: empty candidates")}
	}

	pack, err := parsePromptPack(parsed.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return contracts.PromptPack{}, Usage{}, err
	}
	usage := Usage{InputTokens: parsed.UsageMetadata.PromptTokenCount, OutputTokens: parsed.UsageMetadata.CandidatesTokenCount}
	return pack, usage, nil
}
