package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/logger"
)

// MockAdapter is the mandatory in-tree adapter: it returns fixture outputs
// parameterized by (role, turn_type, phase, round) with no network
// dependency, and supports deterministic error injection (schema violation,
// timeout, vote-tally shaping) for testing the engine's repair loop and
// vote-aggregation rules. Grounded in the repository-pattern mock provider
// shape (file/in-memory response sources), adapted here to produce
// structured TurnOutput fixtures instead of raw chat strings.
type MockAdapter struct {
	mu          sync.Mutex
	repository  MockTurnRepository
	injections  map[injectionKey]Injection
	handleSeq   int
}

// MockTurnRepository sources a TurnOutput for a given fixture lookup,
// falling back to a generated default when no override exists. Mirrors the
// file/in-memory repository pattern used for chat-string mocks, generalized
// to structured turns.
type MockTurnRepository interface {
	GetTurn(ctx context.Context, params FixtureParams) (contracts.TurnOutput, error)
}

// FixtureParams identifies one fixture lookup.
type FixtureParams struct {
	Role     contracts.Role
	TurnType contracts.TurnType
	Phase    int
	Round    int
	TieBreak bool
}

type injectionKind string

const (
	InjectSchemaViolation injectionKind = "schema_violation"
	InjectTimeout         injectionKind = "timeout"
	InjectUnavailable     injectionKind = "unavailable"
	InjectRateLimited     injectionKind = "rate_limited"
	InjectVoteTally       injectionKind = "vote_tally"
)

// Injection describes a deterministic fault or shaped output to return the
// next time a matching (phase, round, turn_type[, role]) call is made.
type Injection struct {
	Kind      injectionKind
	VoteTally map[contracts.Role]contracts.VoteChoice // for InjectVoteTally
	Attempts  int                                     // remaining times to inject; 0 means "always until cleared"
}

type injectionKey struct {
	Phase    int
	Round    int
	TurnType contracts.TurnType
}

// NewMockAdapter creates a mock adapter backed by an in-memory default
// fixture repository.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		repository: NewInMemoryFixtureRepository(),
		injections: make(map[injectionKey]Injection),
	}
}

// NewMockAdapterWithRepository creates a mock adapter backed by a
// caller-supplied fixture repository, e.g. an InMemoryFixtureRepository with
// specific overrides set, or a FileFixtureRepository loaded from a YAML
// config file.
func NewMockAdapterWithRepository(repo MockTurnRepository) *MockAdapter {
	return &MockAdapter{repository: repo, injections: make(map[injectionKey]Injection)}
}

// Inject registers a deterministic fault or vote-tally shaping for the next
// matching call(s). Used by tests to exercise the repair loop, the deadlock
// tie-break path, and phase-restriction rejections.
func (m *MockAdapter) Inject(phase, round int, turnType contracts.TurnType, injection Injection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injections[injectionKey{Phase: phase, Round: round, TurnType: turnType}] = injection
}

func (m *MockAdapter) takeInjection(phase, round int, turnType contracts.TurnType) (Injection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := injectionKey{Phase: phase, Round: round, TurnType: turnType}
	inj, ok := m.injections[key]
	if !ok {
		return Injection{}, false
	}
	if inj.Attempts == 1 {
		delete(m.injections, key)
	} else if inj.Attempts > 1 {
		inj.Attempts--
		m.injections[key] = inj
	}
	return inj, true
}

func (m *MockAdapter) ID() string { return "mock" }

func (m *MockAdapter) Close() error { return nil }

func (m *MockAdapter) StartConversation(ctx context.Context, systemPrompt string, schema string, challenge contracts.Challenge, initialCanon contracts.Canon) (*ConversationHandle, error) {
	m.mu.Lock()
	m.handleSeq++
	id := fmt.Sprintf("mock-conv-%d", m.handleSeq)
	m.mu.Unlock()

	logger.Debug("MockAdapter StartConversation", "handle", id, "biome", challenge.Biome)
	return &ConversationHandle{ProviderID: m.ID(), Data: []byte(id)}, nil
}

func (m *MockAdapter) GenerateTurn(ctx context.Context, handle *ConversationHandle, spec TurnSpec) (contracts.TurnOutput, *ConversationHandle, Usage, error) {
	if inj, ok := m.takeInjection(spec.Phase, spec.Round, spec.TurnType); ok {
		switch inj.Kind {
		case InjectTimeout:
			return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrTimeout, Err: fmt.Errorf("mock: injected timeout")}
		case InjectUnavailable:
			return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("mock: injected unavailable")}
		case InjectRateLimited:
			return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrRateLimited, Err: fmt.Errorf("mock: injected rate limit")}
		case InjectSchemaViolation:
			return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("mock: injected schema violation")}
		case InjectVoteTally:
			choice, ok := inj.VoteTally[spec.Role]
			if ok {
				out := voteOutput(spec, choice)
				return out, handle, mockUsage(out), nil
			}
		}
	}

	out, err := m.repository.GetTurn(ctx, FixtureParams{
		Role: spec.Role, TurnType: spec.TurnType, Phase: spec.Phase, Round: spec.Round, TieBreak: spec.TieBreak,
	})
	if err != nil {
		return contracts.TurnOutput{}, handle, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: err}
	}
	out = fillBackReferences(out, spec)
	return out, handle, mockUsage(out), nil
}

// GeneratePromptPack returns a deterministic fixture PromptPack derived from
// finalCanon's own content, so the pack's prompts plausibly describe the
// canon it was generated from without a network dependency.
func (m *MockAdapter) GeneratePromptPack(ctx context.Context, finalCanon contracts.Canon) (contracts.PromptPack, Usage, error) {
	if inj, ok := m.takeInjection(5, 1, "PROMPT_PACK"); ok {
		switch inj.Kind {
		case InjectTimeout:
			return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrTimeout, Err: fmt.Errorf("mock: injected timeout")}
		case InjectUnavailable:
			return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrUnavailable, Err: fmt.Errorf("mock: injected unavailable")}
		case InjectRateLimited:
			return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrRateLimited, Err: fmt.Errorf("mock: injected rate limit")}
		case InjectSchemaViolation:
			return contracts.PromptPack{}, Usage{}, &ProviderError{Kind: ErrSchemaViolation, Err: fmt.Errorf("mock: injected schema violation")}
		}
	}

	pack := contracts.PromptPack{
		Hero: contracts.PromptPackEntry{
			Title:  finalCanon.WorldName + ": hero shot",
			Prompt: fmt.Sprintf("%s, %s, cinematic establishing shot", finalCanon.WorldName, finalCanon.HeroImageDescription),
		},
		InhabitantPortrait: contracts.PromptPackEntry{
			Title:  "inhabitant portrait",
			Prompt: finalCanon.Inhabitants.Appearance + " — " + finalCanon.Inhabitants.CultureSnapshot,
		},
		TensionSnapshot: contracts.PromptPackEntry{
			Title:  "tension snapshot",
			Prompt: finalCanon.Tension.VisualManifestation + " — " + finalCanon.Tension.Conflict,
		},
	}
	for _, lm := range finalCanon.Landmarks {
		pack.LandmarkTriptych = append(pack.LandmarkTriptych, contracts.PromptPackEntry{
			Title:  lm.Name,
			Prompt: lm.Description + " — " + lm.VisualKey,
		})
	}
	return pack, Usage{InputTokens: 50, OutputTokens: 120, CostUSD: 0.0005}, nil
}

func mockUsage(out contracts.TurnOutput) Usage {
	in := len(out.Content) / 4
	if in == 0 {
		in = 10
	}
	return Usage{InputTokens: in, OutputTokens: len(out.Content) / 4, CostUSD: float64(in) * 0.00001}
}

func voteOutput(spec TurnSpec, choice contracts.VoteChoice) contracts.TurnOutput {
	vote := &contracts.Vote{Choice: choice}
	if choice == contracts.VoteAmend {
		vote.AmendmentSummary = "tighten the tension to better match the twist"
	}
	return contracts.TurnOutput{
		SpeakerRole: spec.Role,
		TurnType:    contracts.TurnVote,
		Content:     fmt.Sprintf("%s votes %s.", spec.Role, choice),
		Vote:        vote,
	}
}

// fillBackReferences ensures RESOLUTION fixtures satisfy the synthesizer
// traceability rule (non-empty references, content mentioning one) when the
// engine has supplied candidate prior turn ids.
func fillBackReferences(out contracts.TurnOutput, spec TurnSpec) contracts.TurnOutput {
	if out.TurnType != contracts.TurnResolution || len(spec.RecentTurnIDs) == 0 {
		return out
	}
	if len(out.References) == 0 {
		ref := spec.RecentTurnIDs[len(spec.RecentTurnIDs)-1]
		out.References = []string{ref}
		if !strings.Contains(out.Content, ref) {
			out.Content = fmt.Sprintf("%s (building on %s)", out.Content, ref)
		}
	}
	return out
}
