package judging_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/convstate"
	"github.com/wbarena/arena/internal/eventlog"
	"github.com/wbarena/arena/internal/judging"
	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/internal/matchhub"
	"github.com/wbarena/arena/internal/matchrunner"
)

// completedMatch runs a real match to completion via matchrunner and returns
// its ID, giving judging tests a genuine event log to read rather than a
// hand-synthesized one.
func completedMatch(t *testing.T) (*eventlog.Repository, string) {
	t.Helper()
	db, err := eventlog.NewDB(eventlog.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eventlog.Close(db) })

	repo := eventlog.NewRepository(db)
	runner := matchrunner.New(repo, matchhub.New(), llm.NewMockAdapter(), convstate.NewMemoryStore())

	seed := int64(42)
	summary, err := runner.Create(context.Background(), &seed, 1)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m, err := repo.GetMatch(context.Background(), summary.MatchID)
		require.NoError(t, err)
		if m.Status != string(contracts.MatchRunning) {
			require.Equal(t, string(contracts.MatchCompleted), m.Status)
			return repo, summary.MatchID
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for match to complete")
	return nil, ""
}

func TestStore_BlindPackageAssignsAndPersists(t *testing.T) {
	repo, matchID := completedMatch(t)
	store := judging.New(repo)
	ctx := context.Background()

	pkg1, err := store.BlindPackage(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, pkg1.Worlds, 2)
	assert.Equal(t, "WORLD-1", pkg1.Worlds[0].BlindID)
	assert.Equal(t, "WORLD-2", pkg1.Worlds[1].BlindID)
	assert.NotEmpty(t, pkg1.Worlds[0].Canon.WorldName)
	assert.NotEmpty(t, pkg1.Worlds[0].PromptPack.Hero.Prompt)

	pkg2, err := store.BlindPackage(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, pkg1, pkg2, "second request must reuse the persisted mapping, not reassign")
}

func TestStore_ArtifactsReturnsBothTeams(t *testing.T) {
	repo, matchID := completedMatch(t)
	store := judging.New(repo)
	ctx := context.Background()

	artifacts, err := store.Artifacts(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	for _, team := range []contracts.TeamID{contracts.TeamA, contracts.TeamB} {
		a, ok := artifacts[team]
		require.True(t, ok)
		assert.NotEmpty(t, a.Canon.WorldName)
		assert.NotEmpty(t, a.PromptPack.Hero.Prompt)
	}
}

func TestStore_RevealMatchesBlindPackageAssignment(t *testing.T) {
	repo, matchID := completedMatch(t)
	store := judging.New(repo)
	ctx := context.Background()

	_, err := store.BlindPackage(ctx, matchID)
	require.NoError(t, err)

	mapping, err := store.Reveal(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, mapping, 2)
	teams := map[contracts.TeamID]bool{mapping["WORLD-1"]: true, mapping["WORLD-2"]: true}
	assert.True(t, teams[contracts.TeamA])
	assert.True(t, teams[contracts.TeamB])
}

func TestStore_SubmitAndListScores(t *testing.T) {
	repo, matchID := completedMatch(t)
	store := judging.New(repo)
	ctx := context.Background()

	_, err := store.BlindPackage(ctx, matchID)
	require.NoError(t, err)

	sub := contracts.JudgingScoreSubmission{
		Judge:   "judge-1",
		BlindID: "WORLD-1",
		Scores: contracts.JudgingScores{
			Originality: 5, Coherence: 4, Evocativeness: 4, PromptQuality: 3, ProcessQuality: 5,
		},
		Notes: "Strong central tension.",
	}
	record, err := store.SubmitScore(ctx, matchID, sub)
	require.NoError(t, err)
	assert.Equal(t, "judge-1", record.Judge)
	assert.InDelta(t, 5*25+4*20+4*20+3*20+5*15, record.WeightedTotal, 0.001)

	scores, err := store.ListScores(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, record.WeightedTotal, scores[0].WeightedTotal)
}

func TestStore_SubmitScoreRejectsOutOfRange(t *testing.T) {
	repo, matchID := completedMatch(t)
	store := judging.New(repo)
	ctx := context.Background()
	_, err := store.BlindPackage(ctx, matchID)
	require.NoError(t, err)

	sub := contracts.JudgingScoreSubmission{
		Judge:   "judge-1",
		BlindID: "WORLD-1",
		Scores:  contracts.JudgingScores{Originality: 6, Coherence: 4, Evocativeness: 4, PromptQuality: 3, ProcessQuality: 5},
	}
	_, err = store.SubmitScore(ctx, matchID, sub)
	assert.ErrorIs(t, err, judging.ErrInvalidScore)
}

func TestStore_SubmitScoreRejectsUnknownBlindID(t *testing.T) {
	repo, matchID := completedMatch(t)
	store := judging.New(repo)
	ctx := context.Background()

	sub := contracts.JudgingScoreSubmission{
		Judge:   "judge-1",
		BlindID: "WORLD-3",
		Scores:  contracts.JudgingScores{Originality: 3, Coherence: 3, Evocativeness: 3, PromptQuality: 3, ProcessQuality: 3},
	}
	_, err := store.SubmitScore(ctx, matchID, sub)
	assert.ErrorIs(t, err, judging.ErrUnknownBlindID)
}
