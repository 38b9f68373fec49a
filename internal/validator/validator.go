// Package validator implements the discourse-rule validator: schema
// conformance plus the per-turn-type substance rules, producing a structured
// error list rather than a single combined error, so the deliberation engine
// can surface every violation to a repair attempt at once. A struct
// accumulates rule violations across validateX methods and returns them
// together.
package validator

import (
	"fmt"
	"strings"

	"github.com/wbarena/arena/internal/canon"
	"github.com/wbarena/arena/internal/contracts"
)

// Context carries everything a turn's validation rules need beyond the
// TurnOutput itself.
type Context struct {
	ExpectedRole     contracts.Role
	ExpectedTurnType contracts.TurnType
	Phase            int
	PriorProposerRole contracts.Role // for PROPOSAL alternation, "" if round 1
	RecentTurnIDs    []string        // candidate references for RESOLUTION traceability
	MinReferences    int
	Store            *canon.Store // for phase-write-restriction delegation
}

// Result is the outcome of validating one TurnOutput.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate runs every rule applicable to out.TurnType and returns every
// violation found — never just the first.
func Validate(out contracts.TurnOutput, ctx Context) Result {
	var errs []string

	errs = append(errs, validateSchema(out)...)
	errs = append(errs, validateRoleAndTurnType(out, ctx)...)

	switch out.TurnType {
	case contracts.TurnObjection:
		errs = append(errs, validateObjectionSubstance(out)...)
	case contracts.TurnResponse:
		errs = append(errs, validateResponseSubstance(out)...)
	case contracts.TurnResolution:
		errs = append(errs, validateResolutionTraceability(out, ctx)...)
	case contracts.TurnProposal:
		errs = append(errs, validateProposerAlternation(out, ctx)...)
	case contracts.TurnVote:
		errs = append(errs, validateVoteShape(out)...)
	}

	if len(out.CanonPatch) > 0 && ctx.Store != nil {
		if perr := ctx.Store.DryRun(out.CanonPatch, ctx.Phase); perr != nil {
			errs = append(errs, "canon_patch rejected: "+perr.Error())
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

func validateSchema(out contracts.TurnOutput) []string {
	res, err := contracts.ValidateTurnOutput(out)
	if err != nil {
		return []string{fmt.Sprintf("schema: validation failed: %v", err)}
	}
	if res.Valid {
		return nil
	}
	errs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, fmt.Sprintf("schema: %s: %s", e.Field, e.Description))
	}
	return errs
}

func validateRoleAndTurnType(out contracts.TurnOutput, ctx Context) []string {
	var errs []string
	if ctx.ExpectedRole != "" && out.SpeakerRole != ctx.ExpectedRole {
		errs = append(errs, fmt.Sprintf("expected speaker_role %q, got %q", ctx.ExpectedRole, out.SpeakerRole))
	}
	if ctx.ExpectedTurnType != "" && out.TurnType != ctx.ExpectedTurnType {
		errs = append(errs, fmt.Sprintf("expected turn_type %q, got %q", ctx.ExpectedTurnType, out.TurnType))
	}
	return errs
}

// validateObjectionSubstance enforces "no trivial agreement": an OBJECTION
// must actually name a concern, not just restate the proposal approvingly.
func validateObjectionSubstance(out contracts.TurnOutput) []string {
	var errs []string
	if out.SpeakerRole != contracts.RoleContrarian {
		errs = append(errs, "OBJECTION must be authored by CONTRARIAN")
	}
	if len(strings.TrimSpace(out.Content)) < 40 {
		errs = append(errs, "OBJECTION content is too short to state a substantive concern")
	}
	if isTriviallyAgreeable(out.Content) {
		errs = append(errs, "OBJECTION must raise a concern, not merely agree with the proposal")
	}
	return errs
}

// validateResponseSubstance enforces the same no-trivial-agreement rule for
// RESPONSE turns.
func validateResponseSubstance(out contracts.TurnOutput) []string {
	var errs []string
	if len(strings.TrimSpace(out.Content)) < 40 {
		errs = append(errs, "RESPONSE content is too short to be substantive")
	}
	if isTriviallyAgreeable(out.Content) {
		errs = append(errs, "RESPONSE must substantively engage with the objection, not merely concede or restate it")
	}
	return errs
}

func isTriviallyAgreeable(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	trivial := []string{"sounds good", "i agree", "no objection", "looks fine", "ok", "agreed", "sure"}
	for _, t := range trivial {
		if lower == t || lower == t+"." {
			return true
		}
	}
	return len(lower) < 15
}

// validateResolutionTraceability enforces synthesizer traceability: the
// RESOLUTION must be authored by SYNTHESIZER, carry at least MinReferences
// entries, and its content must textually mention at least one of them.
func validateResolutionTraceability(out contracts.TurnOutput, ctx Context) []string {
	var errs []string
	if out.SpeakerRole != contracts.RoleSynthesizer {
		errs = append(errs, "RESOLUTION must be authored by SYNTHESIZER")
	}
	minRefs := ctx.MinReferences
	if minRefs == 0 {
		minRefs = 1
	}
	if len(out.References) < minRefs {
		errs = append(errs, fmt.Sprintf("RESOLUTION must reference at least %d prior turn(s)", minRefs))
		return errs
	}
	mentioned := false
	for _, ref := range out.References {
		if strings.Contains(out.Content, ref) {
			mentioned = true
			break
		}
	}
	if !mentioned {
		errs = append(errs, "RESOLUTION content must textually mention at least one entry in references")
	}
	if len(ctx.RecentTurnIDs) > 0 {
		known := make(map[string]bool, len(ctx.RecentTurnIDs))
		for _, id := range ctx.RecentTurnIDs {
			known[id] = true
		}
		for _, ref := range out.References {
			if !known[ref] {
				errs = append(errs, fmt.Sprintf("RESOLUTION references unknown turn id %q", ref))
			}
		}
	}
	return errs
}

// validateProposerAlternation enforces that the proposer in round N+1 is not
// the same role that proposed in round N.
func validateProposerAlternation(out contracts.TurnOutput, ctx Context) []string {
	if ctx.PriorProposerRole != "" && out.SpeakerRole == ctx.PriorProposerRole {
		return []string{fmt.Sprintf("proposer must alternate: %q proposed last round too", out.SpeakerRole)}
	}
	return nil
}

func validateVoteShape(out contracts.TurnOutput) []string {
	var errs []string
	if out.Vote == nil {
		errs = append(errs, "VOTE turn must carry a vote")
		return errs
	}
	switch out.Vote.Choice {
	case contracts.VoteAccept, contracts.VoteAmend, contracts.VoteReject:
	default:
		errs = append(errs, fmt.Sprintf("unknown vote choice %q", out.Vote.Choice))
	}
	if out.Vote.Choice == contracts.VoteAmend && strings.TrimSpace(out.Vote.AmendmentSummary) == "" {
		errs = append(errs, "AMEND vote must carry a non-empty amendment_summary")
	}
	return errs
}
