package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTurnOutput(t *testing.T) {
	result, err := ValidateTurnOutput(TurnOutput{
		SpeakerRole: RoleArchitect,
		TurnType:    TurnProposal,
		Content:     "a founding proposal for the world",
	})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateTurnOutput_MissingRole(t *testing.T) {
	data := []byte(`{"turn_type": "PROPOSAL", "content": "x"}`)
	result, err := ValidateJSONAgainstLoader(data, turnOutputLoader)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateCanon(t *testing.T) {
	c := Canon{
		WorldName:      "Embervale",
		GoverningLogic: "Magic is fueled by grief",
		AestheticMood:  "Somber bioluminescence",
		Landmarks: []Landmark{
			{Name: "A", Description: "a", Significance: "a", VisualKey: "a"},
			{Name: "B", Description: "b", Significance: "b", VisualKey: "b"},
			{Name: "C", Description: "c", Significance: "c", VisualKey: "c"},
		},
		Inhabitants: Inhabitants{Appearance: "x", CultureSnapshot: "y", RelationshipToPlace: "z"},
		Tension:     Tension{Conflict: "x", Stakes: "y", VisualManifestation: "z"},
		HeroImageDescription: "a lone spire over embered fog",
	}
	result, err := ValidateCanon(c)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateCanon_PlaceholderFailsSchema(t *testing.T) {
	result, err := ValidateCanon(PlaceholderCanon())
	require.NoError(t, err)
	assert.False(t, result.Valid, "placeholder canon must not satisfy the final schema")
}

func TestValidatePatch(t *testing.T) {
	p := Patch{{Op: OpReplace, Path: "/world_name", Value: "Embervale"}}
	result, err := ValidatePatch(p)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
