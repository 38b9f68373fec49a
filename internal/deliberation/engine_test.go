package deliberation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbarena/arena/internal/canon"
	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/convstate"
	"github.com/wbarena/arena/internal/llm"
)

// memorySink is a minimal in-memory EventSink used by engine tests, standing
// in for internal/matchrunner's eventlog+hub composition.
type memorySink struct {
	mu     sync.Mutex
	seq    int64
	events []contracts.MatchEvent
}

func (s *memorySink) Append(ctx context.Context, teamID *contracts.TeamID, eventType contracts.EventType, data interface{}) (contracts.MatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev := contracts.MatchEvent{
		ID: fmt.Sprintf("e%d", s.seq), Seq: s.seq, TS: time.Now(),
		MatchID: "match-1", TeamID: teamID, Type: eventType, Data: data,
	}
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *memorySink) byType(t contracts.EventType) []contracts.MatchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.MatchEvent
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestEngine(t *testing.T, adapter *llm.MockAdapter) (*Engine, *memorySink) {
	t.Helper()
	sink := &memorySink{}
	eng := New(Config{
		MatchID:   "match-1",
		TeamID:    contracts.TeamA,
		Challenge: contracts.Challenge{Biome: "a flooded coastal delta", Inhabitants: "river-herders", Twist: "seasons are voted"},
		Canon:     canon.New(),
		Adapter:   adapter,
		ConvState: convstate.NewMemoryStore(),
		Sink:      sink,
	})
	return eng, sink
}

func TestEngine_HappyPathPhase1(t *testing.T) {
	adapter := llm.NewMockAdapter()
	eng, sink := newTestEngine(t, adapter)
	ctx := context.Background()

	require.NoError(t, eng.Init(ctx))
	require.NoError(t, eng.RunPhase(ctx, 1))

	assert.Len(t, sink.byType(contracts.EventCanonInitialized), 1)
	assert.Len(t, sink.byType(contracts.EventPhaseStarted), 1)
	assert.Empty(t, sink.byType(contracts.EventTurnValidationFailed))

	// 3 rounds * (1 proposal + 1 objection + 3 responses + 1 resolution + 4 votes) = 30
	assert.Len(t, sink.byType(contracts.EventTurnEmitted), 30)

	votes := sink.byType(contracts.EventVoteResult)
	require.Len(t, votes, 3)
	for _, v := range votes {
		data := v.Data.(voteResultData)
		assert.Equal(t, contracts.ResultAccept, data.Result)
	}
}

func TestEngine_ProposerAlternates(t *testing.T) {
	adapter := llm.NewMockAdapter()
	eng, sink := newTestEngine(t, adapter)
	ctx := context.Background()

	require.NoError(t, eng.Init(ctx))
	require.NoError(t, eng.RunPhase(ctx, 1))

	var proposers []contracts.Role
	for _, ev := range sink.byType(contracts.EventTurnEmitted) {
		data := ev.Data.(turnEmittedData)
		if data.Output.TurnType == contracts.TurnProposal {
			proposers = append(proposers, data.Output.SpeakerRole)
		}
	}
	require.Len(t, proposers, 3)
	assert.Equal(t, contracts.RoleArchitect, proposers[0])
	for i := 1; i < len(proposers); i++ {
		assert.NotEqual(t, proposers[i-1], proposers[i])
	}
}

func TestEngine_DeadlockTriggersTiebreak(t *testing.T) {
	adapter := llm.NewMockAdapter()
	adapter.Inject(1, 1, contracts.TurnVote, llm.Injection{
		Kind: llm.InjectVoteTally,
		VoteTally: map[contracts.Role]contracts.VoteChoice{
			contracts.RoleArchitect:   contracts.VoteAccept,
			contracts.RoleLorekeeper:  contracts.VoteAmend,
			contracts.RoleContrarian:  contracts.VoteReject,
			contracts.RoleSynthesizer: contracts.VoteAccept, // 2 accept, 1 amend, 1 reject => deadlock
		},
	})

	eng, sink := newTestEngine(t, adapter)
	ctx := context.Background()
	require.NoError(t, eng.Init(ctx))
	require.NoError(t, eng.RunPhase(ctx, 1))

	// A round's deadlock is resolved in-band by the tiebreak resolution before
	// vote_result is ever emitted, so the round's single recorded result is
	// the tiebreak's binding verdict, not DEADLOCK itself. The default
	// fixture's tiebreak resolution carries no canon_patch, which this
	// engine's tiebreak rule reads as REJECT.
	votes := sink.byType(contracts.EventVoteResult)
	require.GreaterOrEqual(t, len(votes), 1)
	firstRoundResult := votes[0].Data.(voteResultData)
	assert.Equal(t, contracts.ResultReject, firstRoundResult.Result)

	resolutions := 0
	for _, ev := range sink.byType(contracts.EventTurnEmitted) {
		data := ev.Data.(turnEmittedData)
		if data.Phase == 1 && data.Round == 1 && data.Output.TurnType == contracts.TurnResolution {
			resolutions++
		}
	}
	assert.Equal(t, 2, resolutions, "expected the normal resolution plus one tiebreak resolution")
}

func TestEngine_PhaseRestrictionRejectionAbandonsTurn(t *testing.T) {
	repo := llm.NewInMemoryFixtureRepository()
	repo.SetTurn(llm.FixtureParams{Role: contracts.RoleArchitect, TurnType: contracts.TurnProposal, Phase: 1, Round: 1}, contracts.TurnOutput{
		SpeakerRole: contracts.RoleArchitect,
		TurnType:    contracts.TurnProposal,
		Content:     "A proposal that reaches into Phase 3's territory, well past the forty character floor.",
		CanonPatch:  contracts.Patch{{Op: contracts.OpReplace, Path: "/tension/conflict", Value: "drought"}},
	})
	adapter := llm.NewMockAdapterWithRepository(repo)

	eng, sink := newTestEngine(t, adapter)
	ctx := context.Background()
	require.NoError(t, eng.Init(ctx))

	// The fixture's canon_patch targets /tension, which is only writable in
	// Phase 3; the validator's phase dry-run rejects it on every one of the
	// repair loop's three attempts, since the fixture never changes, so the
	// slot is abandoned.
	out, turnID, ok, err := eng.produceTurn(ctx, 1, 1, llm.TurnSpec{Role: contracts.RoleArchitect, TurnType: contracts.TurnProposal, Phase: 1, Round: 1})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, turnID)
	assert.Zero(t, out)

	failures := sink.byType(contracts.EventTurnValidationFailed)
	require.Len(t, failures, 1)
	data := failures[0].Data.(turnValidationFailedData)
	found := false
	for _, e := range data.Errors {
		if strings.Contains(e, "patch_rejected_phase") {
			found = true
		}
	}
	assert.True(t, found, "expected a patch_rejected_phase validation error, got %v", data.Errors)
}

func TestEngine_RepairSucceedsOnSecondAttempt(t *testing.T) {
	adapter := llm.NewMockAdapter()
	adapter.Inject(1, 1, contracts.TurnProposal, llm.Injection{Kind: llm.InjectSchemaViolation, Attempts: 1})

	eng, sink := newTestEngine(t, adapter)
	ctx := context.Background()
	require.NoError(t, eng.Init(ctx))

	_, _, ok, err := eng.produceTurn(ctx, 1, 1, llm.TurnSpec{Role: contracts.RoleArchitect, TurnType: contracts.TurnProposal, Phase: 1, Round: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, sink.byType(contracts.EventTurnValidationFailed))
	assert.Len(t, sink.byType(contracts.EventTurnEmitted), 1)
}

func TestEngine_RatificationFailsAfterOneRetry(t *testing.T) {
	adapter := llm.NewMockAdapter()
	// Attempts is left at its zero value ("always until cleared") since each
	// ratification attempt polls all four roles against this same
	// (phase, round, turn_type) key; a limited Attempts count would exhaust
	// after the first attempt's own vote calls and let the retry pass by
	// accident.
	adapter.Inject(4, 1, contracts.TurnVote, llm.Injection{
		Kind: llm.InjectVoteTally,
		VoteTally: map[contracts.Role]contracts.VoteChoice{
			contracts.RoleArchitect:   contracts.VoteAccept,
			contracts.RoleLorekeeper:  contracts.VoteAccept,
			contracts.RoleContrarian:  contracts.VoteReject,
			contracts.RoleSynthesizer: contracts.VoteAccept,
		},
	})

	eng, _ := newTestEngine(t, adapter)
	ctx := context.Background()
	require.NoError(t, eng.Init(ctx))

	err := eng.RunPhase(ctx, 4)
	require.ErrorIs(t, err, ErrRatificationFailed)
}

func TestEngine_PromptPackGeneration(t *testing.T) {
	adapter := llm.NewMockAdapter()
	eng, sink := newTestEngine(t, adapter)
	ctx := context.Background()
	require.NoError(t, eng.Init(ctx))

	// Phase 4's Apply gates on the full canon schema, so the prior phases
	// must actually run first: the mock adapter's default RESOLUTION
	// fixtures populate world_name/landmarks/tension in phases 1-3 and
	// inhabitants/hero_image_description in phase 4's "any path" window,
	// leaving a schema-valid canon by the time phase 5 reads it.
	for phase := 1; phase <= 4; phase++ {
		require.NoError(t, eng.RunPhase(ctx, phase))
	}

	require.NoError(t, eng.RunPhase(ctx, 5))
	packs := sink.byType(contracts.EventPromptPackGenerated)
	require.Len(t, packs, 1)
	data := packs[0].Data.(promptPackGeneratedData)
	assert.NotEmpty(t, data.PromptPack.Hero.Prompt)
	assert.Len(t, data.PromptPack.LandmarkTriptych, 3)
}
