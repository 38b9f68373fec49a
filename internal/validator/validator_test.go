package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/validator"
)

func TestValidate_ObjectionRejectsTrivialAgreement(t *testing.T) {
	out := contracts.TurnOutput{
		SpeakerRole: contracts.RoleContrarian,
		TurnType:    contracts.TurnObjection,
		Content:     "sounds good",
	}
	res := validator.Validate(out, validator.Context{ExpectedTurnType: contracts.TurnObjection})
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)
}

func TestValidate_ObjectionAcceptsSubstantiveConcern(t *testing.T) {
	out := contracts.TurnOutput{
		SpeakerRole: contracts.RoleContrarian,
		TurnType:    contracts.TurnObjection,
		Content:     "This proposal leaves the twist unexplained: the inhabitants' relationship to the place contradicts the stated tension, and a reader will notice immediately.",
	}
	res := validator.Validate(out, validator.Context{ExpectedTurnType: contracts.TurnObjection})
	assert.True(t, res.Valid, res.Errors)
}

func TestValidate_ResolutionRequiresSynthesizerAndReferences(t *testing.T) {
	out := contracts.TurnOutput{
		SpeakerRole: contracts.RoleArchitect,
		TurnType:    contracts.TurnResolution,
		Content:     "resolved",
	}
	res := validator.Validate(out, validator.Context{ExpectedTurnType: contracts.TurnResolution, MinReferences: 1})
	assert.False(t, res.Valid)
	found := false
	for _, e := range res.Errors {
		if e == "RESOLUTION must be authored by SYNTHESIZER" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_ResolutionPassesWithTraceableReference(t *testing.T) {
	out := contracts.TurnOutput{
		SpeakerRole: contracts.RoleSynthesizer,
		TurnType:    contracts.TurnResolution,
		Content:     "Building on turn-7, the synthesis resolves the objection by tightening the twist.",
		References:  []string{"turn-7"},
	}
	res := validator.Validate(out, validator.Context{
		ExpectedTurnType: contracts.TurnResolution,
		MinReferences:    1,
		RecentTurnIDs:    []string{"turn-5", "turn-7"},
	})
	assert.True(t, res.Valid, res.Errors)
}

func TestValidate_ProposerAlternationRejectsRepeat(t *testing.T) {
	out := contracts.TurnOutput{
		SpeakerRole: contracts.RoleArchitect,
		TurnType:    contracts.TurnProposal,
		Content:     "A new direction for the landmark triptych, extending the prior round's thread.",
	}
	res := validator.Validate(out, validator.Context{
		ExpectedTurnType:  contracts.TurnProposal,
		PriorProposerRole: contracts.RoleArchitect,
	})
	assert.False(t, res.Valid)
}

func TestValidate_VoteRequiresAmendmentSummaryOnAmend(t *testing.T) {
	out := contracts.TurnOutput{
		SpeakerRole: contracts.RoleLorekeeper,
		TurnType:    contracts.TurnVote,
		Content:     "I vote to amend.",
		Vote:        &contracts.Vote{Choice: contracts.VoteAmend},
	}
	res := validator.Validate(out, validator.Context{ExpectedTurnType: contracts.TurnVote})
	assert.False(t, res.Valid)
}
