package matchrunner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/convstate"
	"github.com/wbarena/arena/internal/eventlog"
	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/internal/matchhub"
	"github.com/wbarena/arena/internal/matchrunner"
)

func newTestRunner(t *testing.T) (*matchrunner.Runner, *eventlog.Repository) {
	t.Helper()
	db, err := eventlog.NewDB(eventlog.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eventlog.Close(db) })

	repo := eventlog.NewRepository(db)
	hub := matchhub.New()
	adapter := llm.NewMockAdapter()
	runner := matchrunner.New(repo, hub, adapter, convstate.NewMemoryStore())
	return runner, repo
}

// waitForStatus polls the match row until it leaves "running" or the timeout
// elapses, standing in for the eventual-completion signal a real caller
// would get by tailing /matches/{id}/events instead.
func waitForStatus(t *testing.T, repo *eventlog.Repository, matchID string, timeout time.Duration) *eventlog.MatchModel {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		m, err := repo.GetMatch(context.Background(), matchID)
		require.NoError(t, err)
		if m.Status != string(contracts.MatchRunning) {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for match to finish")
	return nil
}

func TestRunner_CreateRunsToCompletion(t *testing.T) {
	runner, repo := newTestRunner(t)
	ctx := context.Background()

	seed := int64(7)
	summary, err := runner.Create(ctx, &seed, 1)
	require.NoError(t, err)
	assert.Equal(t, contracts.MatchRunning, summary.Status)
	assert.Equal(t, int64(7), summary.Seed)

	final := waitForStatus(t, repo, summary.MatchID, 5*time.Second)
	assert.Equal(t, string(contracts.MatchCompleted), final.Status)
	assert.Empty(t, final.FailureReason)

	events, err := repo.ListEventsSince(ctx, summary.MatchID, 0)
	require.NoError(t, err)

	var sawCreated, sawRevealed, sawCompleted bool
	teamACompletedPhases := 0
	for _, ev := range events {
		switch ev.Type {
		case contracts.EventMatchCreated:
			sawCreated = true
		case contracts.EventChallengeRevealed:
			sawRevealed = true
		case contracts.EventMatchCompleted:
			sawCompleted = true
		case contracts.EventPhaseStarted:
			if ev.TeamID != nil && *ev.TeamID == contracts.TeamA {
				teamACompletedPhases++
			}
		}
	}
	assert.True(t, sawCreated)
	assert.True(t, sawRevealed)
	assert.True(t, sawCompleted)
	assert.Equal(t, 5, teamACompletedPhases, "expected phase_started for each of phases 1-5")
}

func TestRunner_DeterministicSeedReproducesChallenge(t *testing.T) {
	runner, repo := newTestRunner(t)
	ctx := context.Background()
	seed := int64(99)

	s1, err := runner.Create(ctx, &seed, 2)
	require.NoError(t, err)
	waitForStatus(t, repo, s1.MatchID, 5*time.Second)

	s2, err := runner.Create(ctx, &seed, 2)
	require.NoError(t, err)
	waitForStatus(t, repo, s2.MatchID, 5*time.Second)

	events1, err := repo.ListEventsSince(ctx, s1.MatchID, 0)
	require.NoError(t, err)
	events2, err := repo.ListEventsSince(ctx, s2.MatchID, 0)
	require.NoError(t, err)

	chal1 := findChallenge(t, events1)
	chal2 := findChallenge(t, events2)
	assert.Equal(t, chal1, chal2)
}

func findChallenge(t *testing.T, events []contracts.MatchEvent) contracts.Challenge {
	t.Helper()
	for _, ev := range events {
		if ev.Type == contracts.EventChallengeRevealed {
			m, ok := ev.Data.(map[string]interface{})
			require.True(t, ok)
			chMap, ok := m["challenge"].(map[string]interface{})
			require.True(t, ok)
			return contracts.Challenge{
				Biome:       chMap["biome"].(string),
				Inhabitants: chMap["inhabitants"].(string),
				Twist:       chMap["twist"].(string),
			}
		}
	}
	t.Fatal("no challenge_revealed event found")
	return contracts.Challenge{}
}

func TestRunner_InvalidTierRejected(t *testing.T) {
	runner, _ := newTestRunner(t)
	_, err := runner.Create(context.Background(), nil, 9)
	require.Error(t, err)
}
