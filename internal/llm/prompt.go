package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wbarena/arena/internal/contracts"
)

// history is the message-history-resending representation stored in a
// ConversationHandle for providers that don't keep server-side state.
type history struct {
	SystemPrompt string          `json:"system_prompt"`
	Schema       string          `json:"schema"`
	Messages     []historyTurn   `json:"messages"`
}

type historyTurn struct {
	Role    string `json:"role"` // "user" (turn instruction) or "assistant" (prior output)
	Content string `json:"content"`
}

func newHistory(systemPrompt, schema string, challenge contracts.Challenge, initialCanon contracts.Canon) history {
	canonJSON, _ := json.Marshal(initialCanon)
	intro := fmt.Sprintf(
		"Challenge:\n  biome: %s\n  inhabitants: %s\n  twist: %s\n\nInitial canon:\n%s",
		challenge.Biome, challenge.Inhabitants, challenge.Twist, string(canonJSON),
	)
	return history{
		SystemPrompt: systemPrompt,
		Schema:       schema,
		Messages:     []historyTurn{{Role: "user", Content: intro}},
	}
}

func loadHistory(handle *ConversationHandle) (history, error) {
	var h history
	if handle == nil || len(handle.Data) == 0 {
		return h, fmt.Errorf("llm: conversation handle has no history")
	}
	if err := json.Unmarshal(handle.Data, &h); err != nil {
		return h, fmt.Errorf("llm: corrupt conversation handle: %w", err)
	}
	return h, nil
}

func (h history) encode(providerID string) *ConversationHandle {
	data, _ := json.Marshal(h)
	return &ConversationHandle{ProviderID: providerID, Data: data}
}

// turnInstruction renders a TurnSpec into the natural-language instruction
// sent as the next user turn, with the repair/reject/tiebreak context
// spliced in verbatim when present.
func turnInstruction(spec TurnSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Produce a %s turn for phase %d, round %d.\n", spec.Role, spec.TurnType, spec.Phase, spec.Round)
	if len(spec.AllowedPatchPrefixes) > 0 {
		fmt.Fprintf(&b, "Any canon_patch op must target one of these path prefixes: %s\n", strings.Join(spec.AllowedPatchPrefixes, ", "))
	}
	if spec.MinReferences > 0 {
		fmt.Fprintf(&b, "references must contain at least %d entr%s.\n", spec.MinReferences, plural(spec.MinReferences))
	}
	if len(spec.RecentTurnIDs) > 0 {
		fmt.Fprintf(&b, "Prior turn ids available for reference: %s\n", strings.Join(spec.RecentTurnIDs, ", "))
	}
	if spec.RejectHint != "" {
		fmt.Fprintf(&b, "The previous round was rejected: %s\n", spec.RejectHint)
	}
	if spec.TieBreak {
		b.WriteString("The round deadlocked; your decision as SYNTHESIZER is binding. Choose ACCEPT or REJECT.\n")
	}
	if spec.RepairContext != nil {
		priorJSON, _ := json.Marshal(spec.RepairContext.PriorOutput)
		fmt.Fprintf(&b, "Your previous attempt failed validation:\n%s\nErrors: %s\nCorrect it and resubmit the full TurnOutput.\n",
			string(priorJSON), strings.Join(spec.RepairContext.Errors, "; "))
	}
	b.WriteString("Respond with a single JSON object matching the TurnOutput schema, nothing else.")
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// parseTurnOutput strictly decodes raw model output into a TurnOutput. A
// JSON parse failure is always a provider_schema_violation.
func parseTurnOutput(raw string) (contracts.TurnOutput, error) {
	raw = stripCodeFence(raw)

	var out contracts.TurnOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return contracts.TurnOutput{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	return out, nil
}

// promptPackInstruction renders the Phase-5 neutral instruction: the final
// canon only, no transcript, no role framing.
func promptPackInstruction(schema string, finalCanon contracts.Canon) string {
	canonJSON, _ := json.Marshal(finalCanon)
	var b strings.Builder
	b.WriteString("Generate an image-prompt pack for the following validated world canon. ")
	b.WriteString("Produce a hero image prompt, a three-entry landmark triptych (one per landmark, in order), ")
	b.WriteString("an inhabitant portrait prompt, and a tension snapshot prompt.\n\n")
	fmt.Fprintf(&b, "Canon:\n%s\n\n", string(canonJSON))
	fmt.Fprintf(&b, "Respond with a single JSON object matching this schema, nothing else:\n%s", schema)
	return b.String()
}

// parsePromptPack strictly decodes raw model output into a PromptPack. A
// JSON parse failure is always a provider_schema_violation.
func parsePromptPack(raw string) (contracts.PromptPack, error) {
	raw = stripCodeFence(raw)

	var pack contracts.PromptPack
	if err := json.Unmarshal([]byte(raw), &pack); err != nil {
		return contracts.PromptPack{}, &ProviderError{Kind: ErrSchemaViolation, Err: err}
	}
	return pack, nil
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}
