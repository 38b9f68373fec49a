package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_Deterministic(t *testing.T) {
	c1 := Generate(42, 1)
	c2 := Generate(42, 1)
	assert.Equal(t, c1, c2)
}

func TestGenerate_DifferentTiersDifferentPools(t *testing.T) {
	c1 := Generate(42, 1)
	c3 := Generate(42, 3)
	assert.NotEqual(t, c1.Biome, c3.Biome)
}

func TestGenerate_AllFieldsPopulated(t *testing.T) {
	c := Generate(7, 2)
	assert.NotEmpty(t, c.Biome)
	assert.NotEmpty(t, c.Inhabitants)
	assert.NotEmpty(t, c.Twist)
}

func TestValidateTier(t *testing.T) {
	assert.NoError(t, ValidateTier(1))
	assert.NoError(t, ValidateTier(3))
	assert.Error(t, ValidateTier(0))
	assert.Error(t, ValidateTier(4))
}
