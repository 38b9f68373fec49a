package deliberation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wbarena/arena/internal/canon"
	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/convstate"
	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/internal/logger"
	"github.com/wbarena/arena/internal/validator"
	prommetrics "github.com/wbarena/arena/internal/metrics/prometheus"
)

// maxRepairAttempts bounds the engine's repair loop at 2 retries (3 total
// adapter calls per turn)
const maxRepairAttempts = 2

// Config wires one team's Engine to its collaborators. A Config is
// per-(match, team): the Canon store and Adapter conversation handle are
// never shared across teams.
type Config struct {
	MatchID   string
	TeamID    contracts.TeamID
	Challenge contracts.Challenge
	Canon     *canon.Store
	Adapter   llm.Adapter
	ConvState convstate.Store
	Sink      EventSink
}

// Engine runs one team's deterministic per-phase FSM.
type Engine struct {
	matchID   string
	teamID    contracts.TeamID
	challenge contracts.Challenge
	canonDoc  *canon.Store
	adapter   llm.Adapter
	convState convstate.Store
	sink      EventSink

	mu            sync.Mutex
	handle        *llm.ConversationHandle
	turnCounter   int
	recentTurnIDs []string
	lastProposer  map[int]contracts.Role
	rejectHint    map[int]string
}

// New creates an Engine for one team. Call Init before RunPhase.
func New(cfg Config) *Engine {
	return &Engine{
		matchID:      cfg.MatchID,
		teamID:       cfg.TeamID,
		challenge:    cfg.Challenge,
		canonDoc:     cfg.Canon,
		adapter:      cfg.Adapter,
		convState:    cfg.ConvState,
		sink:         cfg.Sink,
		lastProposer: make(map[int]contracts.Role),
		rejectHint:   make(map[int]string),
	}
}

// Init initializes this team's canon to its Phase-1 placeholder, opens the
// provider conversation, and emits canon_initialized.
func (e *Engine) Init(ctx context.Context) error {
	initialCanon, hash, err := e.canonDoc.Init()
	if err != nil {
		return fmt.Errorf("deliberation: canon init: %w", err)
	}

	handle, err := e.adapter.StartConversation(ctx, systemPrompt(), contracts.TurnOutputSchemaJSON(), e.challenge, initialCanon)
	if err != nil {
		return fmt.Errorf("deliberation: start conversation: %w", err)
	}
	e.handle = handle
	if e.convState != nil {
		_ = e.convState.Save(ctx, &convstate.Handle{
			MatchID: e.matchID, TeamID: e.teamID,
			ProviderID: handle.ProviderID, Data: handle.Data,
		})
	}

	_, err = e.sink.Append(ctx, &e.teamID, contracts.EventCanonInitialized, canonInitializedData{
		Canon: initialCanon, CanonHash: hash,
	})
	return err
}

// RunPhase emits phase_started and runs phase's deliberation rounds (1-3),
// ratification (4), or prompt-pack generation (5).
func (e *Engine) RunPhase(ctx context.Context, phase int) error {
	if _, err := e.sink.Append(ctx, &e.teamID, contracts.EventPhaseStarted, phaseStartedData{
		Phase: phase, RoundCount: RoundsForPhase(phase),
	}); err != nil {
		return fmt.Errorf("deliberation: emit phase_started: %w", err)
	}

	switch phase {
	case 1, 2, 3:
		e.lastProposer[phase] = ""
		for round := 1; round <= RoundsForPhase(phase); round++ {
			if err := e.runRound(ctx, phase, round, false); err != nil {
				return err
			}
		}
		return nil
	case 4:
		return e.runPhase4(ctx)
	case 5:
		return e.generatePromptPack(ctx)
	default:
		return fmt.Errorf("deliberation: unsupported phase %d", phase)
	}
}

// runPhase4 runs the single ratification round, retrying once on a
// non-unanimous vote before failing the team's pipeline.
func (e *Engine) runPhase4(ctx context.Context) error {
	for attempt := 1; attempt <= 2; attempt++ {
		accepted, err := e.runRound(ctx, 4, 1, true)
		if err != nil {
			return err
		}
		if accepted {
			return nil
		}
		logger.InfoContext(ctx, "deliberation: ratification attempt failed", "match_id", e.matchID, "team_id", e.teamID, "attempt", attempt)
	}
	return ErrRatificationFailed
}

// nextProposerRole picks the phase's proposer for round, alternating between
// ARCHITECT and LOREKEEPER; the first proposer of every phase is ARCHITECT.
func (e *Engine) nextProposerRole(phase, round int) contracts.Role {
	if round == 1 {
		return contracts.RoleArchitect
	}
	return otherOfArchitectLorekeeper(e.lastProposer[phase])
}

// nextTurnID returns a unique id within this team's deliberation, of the
// form "<match_id>:<team_id>:<n>", stable enough to serve as a
// back-reference target from a later resolution turn.
func (e *Engine) nextTurnID() string {
	e.turnCounter++
	return fmt.Sprintf("%s:%s:%d", e.matchID, e.teamID, e.turnCounter)
}

// produceTurn runs the bounded repair loop for one turn slot: up to 2
// repair attempts (3 total adapter calls). On success it emits turn_emitted
// and records the new turn id. On exhaustion it emits turn_validation_failed
// and reports ok=false so the caller can treat the slot as "no contribution".
func (e *Engine) produceTurn(ctx context.Context, phase, round int, spec llm.TurnSpec) (out contracts.TurnOutput, turnID string, ok bool, err error) {
	spec.AllowedPatchPrefixes = canon.AllowedPatchRoots(phase)
	spec.RecentTurnIDs = append([]string(nil), e.recentTurnIDs...)
	spec.RejectHint = e.rejectHint[phase]
	if spec.TurnType == contracts.TurnResolution {
		spec.MinReferences = 1
	}

	var lastOut contracts.TurnOutput
	var lastErrs []string

	for attempt := 0; attempt <= maxRepairAttempts; attempt++ {
		if attempt > 0 {
			spec.RepairContext = &llm.RepairContext{PriorOutput: lastOut, Errors: lastErrs}
			prommetrics.RecordRepairAttempt(string(spec.TurnType))
		}

		genOut, newHandle, usage, genErr := e.adapter.GenerateTurn(ctx, e.handle, spec)
		if genErr != nil {
			logger.WarnContext(ctx, "deliberation: provider call failed", "match_id", e.matchID, "team_id", e.teamID, "turn_type", spec.TurnType, "err", genErr)
			lastOut = contracts.TurnOutput{}
			lastErrs = []string{genErr.Error()}
			continue
		}
		e.handle = newHandle
		if e.convState != nil {
			_ = e.convState.Save(ctx, &convstate.Handle{MatchID: e.matchID, TeamID: e.teamID, ProviderID: newHandle.ProviderID, Data: newHandle.Data})
		}
		prommetrics.RecordProviderUsage(e.adapter.ID(), usage.InputTokens, usage.OutputTokens, usage.CostUSD)

		vctx := validator.Context{
			ExpectedRole:      spec.Role,
			ExpectedTurnType:  spec.TurnType,
			Phase:             phase,
			PriorProposerRole: priorProposerFor(spec, e.lastProposer[phase]),
			RecentTurnIDs:     e.recentTurnIDs,
			MinReferences:     spec.MinReferences,
			Store:             e.canonDoc,
		}
		res := validator.Validate(genOut, vctx)
		if res.Valid {
			prommetrics.RecordValidation(string(spec.TurnType), "passed")
			turnID = e.nextTurnID()
			if _, appendErr := e.sink.Append(ctx, &e.teamID, contracts.EventTurnEmitted, turnEmittedData{
				Phase: phase, Round: round, TurnID: turnID, Output: genOut,
			}); appendErr != nil {
				return contracts.TurnOutput{}, "", false, appendErr
			}
			e.recentTurnIDs = append(e.recentTurnIDs, turnID)
			return genOut, turnID, true, nil
		}

		prommetrics.RecordValidation(string(spec.TurnType), "failed")
		lastOut = genOut
		lastErrs = res.Errors
	}

	failedID := e.nextTurnID()
	if _, appendErr := e.sink.Append(ctx, &e.teamID, contracts.EventTurnValidationFailed, turnValidationFailedData{
		Phase: phase, Round: round, TurnID: failedID, Errors: lastErrs,
	}); appendErr != nil {
		return contracts.TurnOutput{}, "", false, appendErr
	}
	return contracts.TurnOutput{}, "", false, nil
}

// priorProposerFor only applies the alternation check to PROPOSAL turns.
func priorProposerFor(spec llm.TurnSpec, last contracts.Role) contracts.Role {
	if spec.TurnType != contracts.TurnProposal {
		return ""
	}
	return last
}

// generatePromptPack is Phase 5: a neutral, transcript-free adapter call
// over the team's final canon.
func (e *Engine) generatePromptPack(ctx context.Context) error {
	finalCanon, err := e.canonDoc.Snapshot()
	if err != nil {
		return fmt.Errorf("deliberation: canon snapshot: %w", err)
	}

	pack, usage, err := e.adapter.GeneratePromptPack(ctx, finalCanon)
	if err != nil {
		return fmt.Errorf("deliberation: generate prompt pack: %w", err)
	}
	prommetrics.RecordProviderUsage(e.adapter.ID(), usage.InputTokens, usage.OutputTokens, usage.CostUSD)

	result, verr := contracts.ValidatePromptPack(pack)
	if verr != nil {
		return fmt.Errorf("deliberation: prompt pack schema check: %w", verr)
	}
	if !result.Valid {
		msgs := make([]string, len(result.Errors))
		for i, verr := range result.Errors {
			msgs[i] = verr.Error()
		}
		return fmt.Errorf("deliberation: prompt pack failed schema validation: %s", strings.Join(msgs, "; "))
	}

	_, err = e.sink.Append(ctx, &e.teamID, contracts.EventPromptPackGenerated, promptPackGeneratedData{PromptPack: pack})
	return err
}

// systemPrompt is the provider-agnostic framing for a team's whole
// deliberation conversation; GenerateTurn's TurnSpec tells the provider
// which of the four fixed seats speaks on any given call.
func systemPrompt() string {
	return "You are simulating a four-person creative deliberation team building a fictional-world " +
		"specification (\"canon\") through structured turns. The fixed seats are ARCHITECT, LOREKEEPER, " +
		"CONTRARIAN, and SYNTHESIZER. Each call to you names the seat and turn type to produce next; stay " +
		"fully in character for that seat and reply with exactly one JSON object matching the requested " +
		"schema, no prose outside the JSON."
}
