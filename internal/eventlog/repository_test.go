package eventlog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/eventlog"
)

func newTestRepo(t *testing.T) *eventlog.Repository {
	t.Helper()
	db, err := eventlog.NewDB(eventlog.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eventlog.Close(db) })
	return eventlog.NewRepository(db)
}

func TestAppendEvent_AssignsGapFreeSequence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateMatch(ctx, "m1", 42, 1))

	e1, err := repo.AppendEvent(ctx, "m1", nil, contracts.EventMatchCreated, map[string]string{"x": "1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, e1.Seq)

	e2, err := repo.AppendEvent(ctx, "m1", nil, contracts.EventChallengeRevealed, map[string]string{"x": "2"})
	require.NoError(t, err)
	require.EqualValues(t, 2, e2.Seq)
}

func TestListEventsSince_ReturnsOrderedTail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateMatch(ctx, "m1", 42, 1))

	for i := 0; i < 3; i++ {
		_, err := repo.AppendEvent(ctx, "m1", nil, contracts.EventPhaseStarted, map[string]int{"i": i})
		require.NoError(t, err)
	}

	tail, err := repo.ListEventsSince(ctx, "m1", 1)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.EqualValues(t, 2, tail[0].Seq)
	require.EqualValues(t, 3, tail[1].Seq)
}

func TestBlindMapping_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateMatch(ctx, "m1", 1, 1))

	err := repo.SaveBlindMapping(ctx, "m1", map[string]contracts.TeamID{
		"WORLD-1": contracts.TeamB,
		"WORLD-2": contracts.TeamA,
	})
	require.NoError(t, err)

	mapping, err := repo.GetBlindMapping(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, contracts.TeamB, mapping["WORLD-1"])
	require.Equal(t, contracts.TeamA, mapping["WORLD-2"])
}
