package deliberation

import (
	"context"
	"strings"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/internal/logger"
	prommetrics "github.com/wbarena/arena/internal/metrics/prometheus"
)

// roleVote pairs a participant with their ballot, including synthetic
// ABSTAIN->REJECT ballots for slots whose turn was abandoned.
type roleVote struct {
	Role contracts.Role
	Vote contracts.Vote
}

// rosterOrder is the fixed voting roster, always polled in this order.
var rosterOrder = []contracts.Role{
	contracts.RoleArchitect, contracts.RoleLorekeeper, contracts.RoleContrarian, contracts.RoleSynthesizer,
}

// runRound executes one round's full substep sequence: proposal, mandatory
// objection, three responses, resolution, vote, and aggregation.
// requireUnanimous switches to ratification aggregation (unanimous ACCEPT
// or bust) in place of the normal 5-rule aggregation. It returns whether
// the round's result was ACCEPT, which runPhase4 uses to decide whether a
// ratification retry is needed.
func (e *Engine) runRound(ctx context.Context, phase, round int, requireUnanimous bool) (bool, error) {
	proposerRole := e.nextProposerRole(phase, round)
	e.lastProposer[phase] = proposerRole

	if _, _, _, err := e.produceTurn(ctx, phase, round, llm.TurnSpec{
		Role: proposerRole, TurnType: contracts.TurnProposal, Phase: phase, Round: round,
	}); err != nil {
		return false, err
	}

	if _, _, _, err := e.produceTurn(ctx, phase, round, llm.TurnSpec{
		Role: contracts.RoleContrarian, TurnType: contracts.TurnObjection, Phase: phase, Round: round,
	}); err != nil {
		return false, err
	}

	responderOrder := []contracts.Role{otherOfArchitectLorekeeper(proposerRole), contracts.RoleContrarian, contracts.RoleSynthesizer}
	for _, role := range responderOrder {
		if _, _, _, err := e.produceTurn(ctx, phase, round, llm.TurnSpec{
			Role: role, TurnType: contracts.TurnResponse, Phase: phase, Round: round,
		}); err != nil {
			return false, err
		}
	}

	resOut, resTurnID, resOK, err := e.produceTurn(ctx, phase, round, llm.TurnSpec{
		Role: contracts.RoleSynthesizer, TurnType: contracts.TurnResolution, Phase: phase, Round: round,
	})
	if err != nil {
		return false, err
	}

	var (
		result       contracts.VoteResult
		tally        = map[contracts.VoteChoice]int{}
		patchToApply contracts.Patch
		patchTurnID  string
	)

	if !resOK {
		result, patchToApply, patchTurnID, err = e.tiebreak(ctx, phase, round)
		if err != nil {
			return false, err
		}
	} else {
		votes, verr := e.collectVotes(ctx, phase, round)
		if verr != nil {
			return false, verr
		}
		if requireUnanimous {
			result, tally = aggregateUnanimous(votes)
		} else {
			result, tally = aggregate(votes)
		}
		switch result {
		case contracts.ResultAccept, contracts.ResultAmend:
			patchToApply, patchTurnID = resOut.CanonPatch, resTurnID
		case contracts.ResultDeadlock:
			result, patchToApply, patchTurnID, err = e.tiebreak(ctx, phase, round)
			if err != nil {
				return false, err
			}
		case contracts.ResultReject:
			e.rejectHint[phase] = rejectHint(resOut.Content)
		}
	}

	if _, err := e.sink.Append(ctx, &e.teamID, contracts.EventVoteResult, voteResultData{
		Phase: phase, Round: round, Result: result, Tally: tally,
	}); err != nil {
		return false, err
	}
	prommetrics.RecordVoteResult(string(result))

	if len(patchToApply) > 0 {
		if err := e.applyPatch(ctx, phase, round, patchTurnID, patchToApply); err != nil {
			return false, err
		}
	}

	return result == contracts.ResultAccept, nil
}

// collectVotes polls the fixed roster for a VOTE turn each, in order. A
// turn abandoned by the repair loop counts as an ABSTAIN ballot, tallied as
// REJECT.
func (e *Engine) collectVotes(ctx context.Context, phase, round int) ([]roleVote, error) {
	votes := make([]roleVote, 0, len(rosterOrder))
	for _, role := range rosterOrder {
		out, _, ok, err := e.produceTurn(ctx, phase, round, llm.TurnSpec{
			Role: role, TurnType: contracts.TurnVote, Phase: phase, Round: round,
		})
		if err != nil {
			return nil, err
		}
		if !ok || out.Vote == nil {
			votes = append(votes, roleVote{Role: role, Vote: contracts.Vote{Choice: contracts.VoteReject}})
			continue
		}
		votes = append(votes, roleVote{Role: role, Vote: *out.Vote})
	}
	return votes, nil
}

// aggregate implements the 5-rule vote aggregation used by phases 1-3.
func aggregate(votes []roleVote) (contracts.VoteResult, map[contracts.VoteChoice]int) {
	tally := map[contracts.VoteChoice]int{}
	amendTexts := map[string]int{}
	for _, v := range votes {
		tally[v.Vote.Choice]++
		if v.Vote.Choice == contracts.VoteAmend {
			amendTexts[normalizeAmendment(v.Vote.AmendmentSummary)]++
		}
	}

	switch {
	case tally[contracts.VoteAccept] >= 3:
		return contracts.ResultAccept, tally
	case tally[contracts.VoteAmend] >= 2 && hasSharedAmendment(amendTexts):
		return contracts.ResultAmend, tally
	case tally[contracts.VoteReject] >= 2:
		return contracts.ResultReject, tally
	default:
		return contracts.ResultDeadlock, tally
	}
}

// aggregateUnanimous implements Phase 4's ratification rule: unanimous
// ACCEPT or the round fails outright (no AMEND/REJECT/DEADLOCK distinction
// at ratification — VOTE must be unanimous ACCEPT).
func aggregateUnanimous(votes []roleVote) (contracts.VoteResult, map[contracts.VoteChoice]int) {
	tally := map[contracts.VoteChoice]int{}
	for _, v := range votes {
		tally[v.Vote.Choice]++
	}
	if len(votes) > 0 && tally[contracts.VoteAccept] == len(votes) {
		return contracts.ResultAccept, tally
	}
	return contracts.ResultReject, tally
}

func hasSharedAmendment(counts map[string]int) bool {
	for _, n := range counts {
		if n >= 2 {
			return true
		}
	}
	return false
}

func normalizeAmendment(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// rejectHint derives the "must address the gap" hint passed to the next
// round's PROPOSAL turn spec from the rejected resolution's own content.
func rejectHint(resolutionContent string) string {
	const maxLen = 240
	hint := strings.TrimSpace(resolutionContent)
	if len(hint) > maxLen {
		hint = hint[:maxLen]
	}
	return hint
}

// tiebreak invokes a second SYNTHESIZER RESOLUTION with TieBreak=true; its
// decision is binding. A non-empty canon_patch on the tiebreak resolution
// signals ACCEPT, an empty one signals REJECT.
func (e *Engine) tiebreak(ctx context.Context, phase, round int) (contracts.VoteResult, contracts.Patch, string, error) {
	out, turnID, ok, err := e.produceTurn(ctx, phase, round, llm.TurnSpec{
		Role: contracts.RoleSynthesizer, TurnType: contracts.TurnResolution, Phase: phase, Round: round, TieBreak: true,
	})
	if err != nil {
		return "", nil, "", err
	}
	if !ok {
		logger.WarnContext(ctx, "deliberation: tiebreak resolution failed validation, defaulting to REJECT",
			"match_id", e.matchID, "team_id", e.teamID, "phase", phase, "round", round)
		return contracts.ResultReject, nil, "", nil
	}
	if len(out.CanonPatch) > 0 {
		return contracts.ResultAccept, out.CanonPatch, turnID, nil
	}
	return contracts.ResultReject, nil, "", nil
}

// applyPatch applies an accepted/amended round's resolution patch to this
// team's canon and emits canon_patch_applied. A patch-application failure
// (which should not occur since the same patch already passed the
// validator's phase dry-run at turn-emission time) is logged but does not
// fail the match; the vote result stands and canon is simply left
// unchanged.
func (e *Engine) applyPatch(ctx context.Context, phase, round int, turnID string, patch contracts.Patch) error {
	before, after, _, perr := e.canonDoc.Apply(patch, phase)
	if perr != nil {
		logger.ErrorContext(ctx, "deliberation: accepted patch failed to apply",
			"match_id", e.matchID, "team_id", e.teamID, "phase", phase, "round", round, "err", perr)
		return nil
	}
	_, err := e.sink.Append(ctx, &e.teamID, contracts.EventCanonPatchApplied, canonPatchAppliedData{
		Phase: phase, Round: round, TurnID: turnID, Patch: patch, CanonBeforeHash: before, CanonAfterHash: after,
	})
	return err
}
