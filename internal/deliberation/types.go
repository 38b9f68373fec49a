// Package deliberation implements the per-team deliberation engine (C6):
// the phase/round/turn scheduler that drives one team's Architect,
// Lorekeeper, Contrarian, and Synthesizer through the proposal -> objection
// -> responses -> resolution -> vote substep sequence, invoking the
// Provider Adapter, the Validator, the bounded repair loop, and vote
// aggregation, and emitting MatchEvents as it goes.
//
// A fixed-pipeline engine style drives the substep sequencing, with
// LLM-call logging conventions applied to the repair loop's telemetry.
package deliberation

import (
	"context"
	"errors"

	"github.com/wbarena/arena/internal/contracts"
)

// EventSink is the engine's only persistence/fan-out dependency: append one
// event to the match's durable log and notify live subscribers. Composed in
// internal/matchrunner from an eventlog.Repository and a matchhub.Hub so the
// engine itself never imports either.
type EventSink interface {
	Append(ctx context.Context, teamID *contracts.TeamID, eventType contracts.EventType, data interface{}) (contracts.MatchEvent, error)
}

// Sentinel errors the Match Runner inspects to decide how a team's pipeline
// run ended.
var (
	// ErrRatificationFailed is returned by RunPhase(4) when Phase 4's VOTE
	// failed unanimous ACCEPT twice.
	ErrRatificationFailed = errors.New("ratification_failed")
)

// turnEmittedData is the payload of a turn_emitted event.
type turnEmittedData struct {
	Phase  int                  `json:"phase"`
	Round  int                  `json:"round"`
	TurnID string               `json:"turn_id"`
	Output contracts.TurnOutput `json:"output"`
}

// turnValidationFailedData is the payload of a turn_validation_failed event.
type turnValidationFailedData struct {
	Phase  int      `json:"phase"`
	Round  int      `json:"round"`
	TurnID string   `json:"turn_id"`
	Errors []string `json:"errors"`
}

// voteResultData is the payload of a vote_result event.
type voteResultData struct {
	Phase  int                          `json:"phase"`
	Round  int                          `json:"round"`
	Result contracts.VoteResult         `json:"result"`
	Tally  map[contracts.VoteChoice]int `json:"tally"`
}

// canonPatchAppliedData is the payload of a canon_patch_applied event.
type canonPatchAppliedData struct {
	Phase           int             `json:"phase"`
	Round           int             `json:"round"`
	TurnID          string          `json:"turn_id"`
	Patch           contracts.Patch `json:"patch"`
	CanonBeforeHash string          `json:"canon_before_hash"`
	CanonAfterHash  string          `json:"canon_after_hash"`
}

// canonInitializedData is the payload of a canon_initialized event.
type canonInitializedData struct {
	Canon     contracts.Canon `json:"canon"`
	CanonHash string          `json:"canon_hash"`
}

// phaseStartedData is the payload of a phase_started event.
type phaseStartedData struct {
	Phase      int `json:"phase"`
	RoundCount int `json:"round_count"`
}

// promptPackGeneratedData is the payload of a prompt_pack_generated event.
type promptPackGeneratedData struct {
	PromptPack contracts.PromptPack `json:"prompt_pack"`
}

// RoundsForPhase returns the fixed round count for phases 1-4 and 0 for
// phase 5 (prompt-pack generation, which has no deliberation rounds),
//
func RoundsForPhase(phase int) int {
	switch phase {
	case 1:
		return 3
	case 2:
		return 4
	case 3:
		return 2
	case 4:
		return 1
	default:
		return 0
	}
}

// otherOfArchitectLorekeeper returns whichever of ARCHITECT/LOREKEEPER is
// not role.
func otherOfArchitectLorekeeper(role contracts.Role) contracts.Role {
	if role == contracts.RoleArchitect {
		return contracts.RoleLorekeeper
	}
	return contracts.RoleArchitect
}
