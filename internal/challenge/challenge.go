// Package challenge deterministically derives a match's creative constraints
// from its seed and tier.
package challenge

import (
	"fmt"
	"math/rand"

	"github.com/wbarena/arena/internal/contracts"
)

// tieredPool holds per-tier candidate lists; tier 1 is the most familiar,
// tier 3 the most unusual, but a seed always selects deterministically
// within the tier's pool.
type tieredPool struct {
	tier1 []string
	tier2 []string
	tier3 []string
}

func (p tieredPool) forTier(tier int) []string {
	switch tier {
	case 1:
		return p.tier1
	case 2:
		return p.tier2
	default:
		return p.tier3
	}
}

var biomes = tieredPool{
	tier1: []string{"a flooded coastal delta", "a terraced mountain valley", "a sun-cracked salt basin"},
	tier2: []string{"a bioluminescent cave network", "a drifting archipelago of ice", "a canopy city above a fog sea"},
	tier3: []string{"the inside of a dying star's corona", "a recursive pocket dimension", "a world built on the back of a migrating leviathan"},
}

var inhabitantSeeds = tieredPool{
	tier1: []string{"a guild of itinerant cartographers", "a clan of river-herders", "a loose federation of orchardists"},
	tier2: []string{"a hive of memory-trading insectoids", "a monastic order that communicates only in song", "a diaspora of exiled shipwrights"},
	tier3: []string{"a species that experiences time non-linearly", "a colony grown from a single shared dream", "beings who exist one generation ahead of their own causes"},
}

var twists = tieredPool{
	tier1: []string{"resources are abundant but trust is not", "the land remembers every promise broken upon it", "seasons are decided by vote, not weather"},
	tier2: []string{"death is optional but costly", "every structure must be built to eventually be forgotten", "names are currency and can be spent"},
	tier3: []string{"the world is shrinking by one step per generation", "causality runs backward for one caste", "the inhabitants are unaware they are the second attempt"},
}

// Generate derives a Challenge deterministically from (seed, tier). The same
// (seed, tier) pair always yields the same Challenge.
func Generate(seed int64, tier int) contracts.Challenge {
	rng := rand.New(rand.NewSource(seed ^ int64(tier)*0x9E3779B97F4A7C15))

	return contracts.Challenge{
		Biome:       pick(rng, biomes.forTier(tier)),
		Inhabitants: pick(rng, inhabitantSeeds.forTier(tier)),
		Twist:       pick(rng, twists.forTier(tier)),
	}
}

func pick(rng *rand.Rand, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rng.Intn(len(pool))]
}

// ValidateTier reports whether tier is one of the supported values.
func ValidateTier(tier int) error {
	if tier < 1 || tier > 3 {
		return fmt.Errorf("challenge: tier must be 1, 2, or 3, got %d", tier)
	}
	return nil
}
