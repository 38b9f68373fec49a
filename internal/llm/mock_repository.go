package llm

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wbarena/arena/internal/contracts"
)

// InMemoryFixtureRepository generates a plausible default TurnOutput for any
// fixture lookup and allows specific (role, turn_type, phase, round)
// combinations to be overridden programmatically — the common case for unit
// tests that need one specific turn to look a certain way while everything
// else runs the deterministic happy path.
type InMemoryFixtureRepository struct {
	overrides map[FixtureParams]contracts.TurnOutput
}

// NewInMemoryFixtureRepository creates an empty override table; GetTurn
// always falls back to a generated default when no override matches.
func NewInMemoryFixtureRepository() *InMemoryFixtureRepository {
	return &InMemoryFixtureRepository{overrides: make(map[FixtureParams]contracts.TurnOutput)}
}

// SetTurn registers an explicit fixture for one (role, turn_type, phase,
// round) combination.
func (r *InMemoryFixtureRepository) SetTurn(params FixtureParams, out contracts.TurnOutput) {
	r.overrides[params] = out
}

func (r *InMemoryFixtureRepository) GetTurn(ctx context.Context, params FixtureParams) (contracts.TurnOutput, error) {
	if out, ok := r.overrides[params]; ok {
		return out, nil
	}
	return defaultFixture(params), nil
}

// defaultFixture synthesizes a TurnOutput that satisfies every Validator
// rule for its turn type, so an unconfigured match runs its happy path to
// completion without ever entering the repair loop.
func defaultFixture(p FixtureParams) contracts.TurnOutput {
	switch p.TurnType {
	case contracts.TurnProposal:
		return contracts.TurnOutput{
			SpeakerRole: p.Role,
			TurnType:    contracts.TurnProposal,
			Content:     fmt.Sprintf("%s proposes a concrete direction for phase %d, round %d, grounding it in the challenge's biome and twist.", p.Role, p.Phase, p.Round),
		}
	case contracts.TurnObjection:
		return contracts.TurnOutput{
			SpeakerRole: contracts.RoleContrarian,
			TurnType:    contracts.TurnObjection,
			Content:     "This direction risks internal inconsistency: the proposal does not reconcile the stated twist with the inhabitants' stated relationship to the place, and a reader will notice the gap immediately.",
		}
	case contracts.TurnResponse:
		return contracts.TurnOutput{
			SpeakerRole: p.Role,
			TurnType:    contracts.TurnResponse,
			Content:     fmt.Sprintf("%s responds with a substantive refinement: the concern is addressed by tightening the causal link between the twist and the landmark's described significance, rather than leaving it implicit.", p.Role),
		}
	case contracts.TurnResolution:
		// A tiebreak resolution's canon_patch is left empty by default: the
		// tiebreak rule reads an empty patch as REJECT, which is the more
		// conservative default for a scenario that only arises from genuine
		// deadlock.
		var patch contracts.Patch
		if !p.TieBreak {
			patch = defaultResolutionPatch(p.Phase)
		}
		return contracts.TurnOutput{
			SpeakerRole: contracts.RoleSynthesizer,
			TurnType:    contracts.TurnResolution,
			Content:     "Synthesizing the discussion into a single direction that resolves the objection.",
			References:  []string{},
			CanonPatch:  patch,
		}
	case contracts.TurnVote:
		return contracts.TurnOutput{
			SpeakerRole: p.Role,
			TurnType:    contracts.TurnVote,
			Content:     fmt.Sprintf("%s votes ACCEPT.", p.Role),
			Vote:        &contracts.Vote{Choice: contracts.VoteAccept},
		}
	default:
		return contracts.TurnOutput{SpeakerRole: p.Role, TurnType: p.TurnType, Content: "default fixture"}
	}
}

// defaultResolutionPatch returns the canon contribution a round's default
// RESOLUTION fixture carries, scoped to whatever phase allows writing so an
// unconfigured match still converges on a schema-valid final Canon by the
// end of phase 4. Phase 4 ("any path") is where inhabitants and the hero
// image description land, since phases 1-3 are each restricted to their own
// subtree (internal/canon's writeRestrictions).
func defaultResolutionPatch(phase int) contracts.Patch {
	switch phase {
	case 1:
		return contracts.Patch{
			{Op: contracts.OpReplace, Path: "/world_name", Value: "Emberreach"},
			{Op: contracts.OpReplace, Path: "/governing_logic", Value: "The world's rules bend to whatever the river-herders collectively agree upon each season."},
			{Op: contracts.OpReplace, Path: "/aesthetic_mood", Value: "brackish, bioluminescent, quietly ceremonial"},
		}
	case 2:
		return contracts.Patch{
			{Op: contracts.OpReplace, Path: "/landmarks/0/name", Value: "The Tideworks"},
			{Op: contracts.OpReplace, Path: "/landmarks/0/description", Value: "A tangle of locks and channels the herders retune every equinox."},
			{Op: contracts.OpReplace, Path: "/landmarks/0/significance", Value: "Where the season's vote is physically enacted."},
			{Op: contracts.OpReplace, Path: "/landmarks/0/visual_key", Value: "water gates opening in unison"},
			{Op: contracts.OpReplace, Path: "/landmarks/1/name", Value: "Salt Cathedral"},
			{Op: contracts.OpReplace, Path: "/landmarks/1/description", Value: "A crystallized basin where seasonal disputes are aired in public."},
			{Op: contracts.OpReplace, Path: "/landmarks/1/significance", Value: "The seat of seasonal arbitration."},
			{Op: contracts.OpReplace, Path: "/landmarks/1/visual_key", Value: "salt-white terraces under lantern light"},
			{Op: contracts.OpReplace, Path: "/landmarks/2/name", Value: "Drowned Archive"},
			{Op: contracts.OpReplace, Path: "/landmarks/2/description", Value: "A submerged library of prior seasons' broken promises."},
			{Op: contracts.OpReplace, Path: "/landmarks/2/significance", Value: "Proof that the land remembers what was voted."},
			{Op: contracts.OpReplace, Path: "/landmarks/2/visual_key", Value: "silt-covered shelving glimpsed through clear water"},
		}
	case 3:
		return contracts.Patch{
			{Op: contracts.OpReplace, Path: "/tension/conflict", Value: "a faction wants to abolish the seasonal vote entirely"},
			{Op: contracts.OpReplace, Path: "/tension/stakes", Value: "losing the vote means losing the only check on the river's mood"},
			{Op: contracts.OpReplace, Path: "/tension/visual_manifestation", Value: "ballots carved into driftwood, some charred"},
		}
	case 4:
		return contracts.Patch{
			{Op: contracts.OpReplace, Path: "/inhabitants/appearance", Value: "weathered, salt-bleached river-herders in layered wading gear"},
			{Op: contracts.OpReplace, Path: "/inhabitants/culture_snapshot", Value: "a culture that treats consensus-building as a craft"},
			{Op: contracts.OpReplace, Path: "/inhabitants/relationship_to_place", Value: "proprietary but anxious, aware the delta outlives any one vote"},
			{Op: contracts.OpReplace, Path: "/hero_image_description", Value: "a lone herder casting a ballot into the tideworks at dusk"},
		}
	default:
		return nil
	}
}

// FileFixtureRepository loads fixture overrides from a YAML file, for
// scripting a deterministic demo or reproducing a specific match scenario
// without code changes. The file maps a "phase:round:turn_type:role" key to
// literal TurnOutput fields.
type FileFixtureRepository struct {
	fallback *InMemoryFixtureRepository
	entries  map[string]contracts.TurnOutput
}

// fixtureFile is the on-disk YAML shape for FileFixtureRepository.
type fixtureFile struct {
	Fixtures map[string]struct {
		Content    string             `yaml:"content"`
		CanonPatch []contracts.PatchOp `yaml:"canon_patch,omitempty"`
		References []string           `yaml:"references,omitempty"`
		Vote       *contracts.Vote    `yaml:"vote,omitempty"`
	} `yaml:"fixtures"`
}

// NewFileFixtureRepository loads fixture overrides from configPath.
func NewFileFixtureRepository(configPath string) (*FileFixtureRepository, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock fixture file: %w", err)
	}
	var parsed fixtureFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse mock fixture YAML: %w", err)
	}

	entries := make(map[string]contracts.TurnOutput, len(parsed.Fixtures))
	for key, v := range parsed.Fixtures {
		entries[key] = contracts.TurnOutput{
			Content:    v.Content,
			CanonPatch: v.CanonPatch,
			References: v.References,
			Vote:       v.Vote,
		}
	}
	return &FileFixtureRepository{fallback: NewInMemoryFixtureRepository(), entries: entries}, nil
}

func fixtureKey(p FixtureParams) string {
	return fmt.Sprintf("%d:%d:%s:%s", p.Phase, p.Round, p.TurnType, p.Role)
}

func (r *FileFixtureRepository) GetTurn(ctx context.Context, params FixtureParams) (contracts.TurnOutput, error) {
	if out, ok := r.entries[fixtureKey(params)]; ok {
		out.SpeakerRole = params.Role
		out.TurnType = params.TurnType
		return out, nil
	}
	return r.fallback.GetTurn(ctx, params)
}
