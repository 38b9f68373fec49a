// Package llm implements the Provider Adapter: a uniform interface over
// language-model providers, per-team conversation handles, and the
// structured-output contract every provider must satisfy.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/wbarena/arena/internal/contracts"
)

// ConversationHandle is opaque per-(match, team) state threaded through a
// provider's turns. Its contents are provider-specific — a server-side
// response identifier for providers that support "response chaining", or a
// serialized message history for providers that require full resends. The
// deliberation engine never inspects it.
type ConversationHandle struct {
	ProviderID string
	Data       []byte
}

// RepairContext carries the prior failed output and validator errors into a
// repair-loop retry of GenerateTurn.
type RepairContext struct {
	PriorOutput contracts.TurnOutput
	Errors      []string
}

// TurnSpec names everything a provider needs to produce one turn.
type TurnSpec struct {
	Role                 contracts.Role
	TurnType             contracts.TurnType
	Phase                int
	Round                int
	AllowedPatchPrefixes []string
	MinReferences        int
	RepairContext        *RepairContext
	RejectHint           string   // "must address the gap" hint from a prior REJECT
	TieBreak             bool
	RecentTurnIDs        []string // prior turn ids in this team's deliberation, for RESOLUTION back-references
}

// Usage is the provider-reported cost/token accounting for one call. The
// cost model itself is provider-dependent and opaque to the engine beyond
// this summary.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Error kinds in the Provider Adapter's error taxonomy.
const (
	ErrTimeout         = "provider_timeout"
	ErrRateLimited     = "provider_rate_limited"
	ErrSchemaViolation = "provider_schema_violation"
	ErrUnavailable     = "provider_unavailable"
)

// ProviderError is a taxonomized adapter failure. All kinds are retriable at
// the adapter layer up to a small bound before propagating to the engine.
type ProviderError struct {
	Kind string
	Err  error
}

func (e *ProviderError) Error() string { return e.Kind + ": " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// Retriable reports whether err's kind is always retried by RetryingAdapter.
func Retriable(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Kind {
	case ErrTimeout, ErrRateLimited, ErrUnavailable:
		return true
	default:
		return false
	}
}

// Adapter is the uniform interface over language-model providers.
type Adapter interface {
	// StartConversation begins a per-team dialogue and returns its handle.
	StartConversation(ctx context.Context, systemPrompt string, schema string, challenge contracts.Challenge, initialCanon contracts.Canon) (*ConversationHandle, error)

	// GenerateTurn produces one TurnOutput and the handle's next state.
	GenerateTurn(ctx context.Context, handle *ConversationHandle, spec TurnSpec) (contracts.TurnOutput, *ConversationHandle, Usage, error)

	// GeneratePromptPack is the Phase-5 neutral call: input is the final
	// validated canon only, no transcript and no conversation handle — each
	// call is a fresh, stateless request.
	GeneratePromptPack(ctx context.Context, finalCanon contracts.Canon) (contracts.PromptPack, Usage, error)

	// ID identifies the underlying provider ("mock", "openai", "anthropic", "gemini").
	ID() string

	Close() error
}

// RetryBudget is the maximum number of adapter-level retries for a single
// GenerateTurn call before the error propagates to the engine as a turn
// failure. This is independent of, and sits below, the engine's own
// 2-repair-attempt validation loop.
const RetryBudget = 3

// RetryingAdapter wraps an Adapter, retrying provider_timeout,
// provider_rate_limited, and provider_unavailable errors up to RetryBudget
// attempts with a short backoff between attempts.
type RetryingAdapter struct {
	Adapter
	Backoff func(attempt int) time.Duration
}

// NewRetryingAdapter wraps adapter with the default linear backoff.
func NewRetryingAdapter(adapter Adapter) *RetryingAdapter {
	return &RetryingAdapter{
		Adapter: adapter,
		Backoff: func(attempt int) time.Duration { return time.Duration(attempt) * 50 * time.Millisecond },
	}
}

func (r *RetryingAdapter) GenerateTurn(ctx context.Context, handle *ConversationHandle, spec TurnSpec) (contracts.TurnOutput, *ConversationHandle, Usage, error) {
	var lastErr error
	for attempt := 0; attempt < RetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return contracts.TurnOutput{}, handle, Usage{}, ctx.Err()
			case <-time.After(r.Backoff(attempt)):
			}
		}
		out, newHandle, usage, err := r.Adapter.GenerateTurn(ctx, handle, spec)
		if err == nil {
			return out, newHandle, usage, nil
		}
		lastErr = err
		if !Retriable(err) {
			return contracts.TurnOutput{}, handle, Usage{}, err
		}
	}
	return contracts.TurnOutput{}, handle, Usage{}, lastErr
}

func (r *RetryingAdapter) GeneratePromptPack(ctx context.Context, finalCanon contracts.Canon) (contracts.PromptPack, Usage, error) {
	var lastErr error
	for attempt := 0; attempt < RetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return contracts.PromptPack{}, Usage{}, ctx.Err()
			case <-time.After(r.Backoff(attempt)):
			}
		}
		pack, usage, err := r.Adapter.GeneratePromptPack(ctx, finalCanon)
		if err == nil {
			return pack, usage, nil
		}
		lastErr = err
		if !Retriable(err) {
			return contracts.PromptPack{}, Usage{}, err
		}
	}
	return contracts.PromptPack{}, Usage{}, lastErr
}
