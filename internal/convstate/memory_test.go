package convstate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/convstate"
)

func TestMemoryStore_SaveLoadRoundTrip(t *testing.T) {
	s := convstate.NewMemoryStore()
	ctx := context.Background()

	err := s.Save(ctx, &convstate.Handle{MatchID: "m1", TeamID: contracts.TeamA, ProviderID: "mock", Data: []byte("abc")})
	require.NoError(t, err)

	h, err := s.Load(ctx, "m1", contracts.TeamA)
	require.NoError(t, err)
	assert.Equal(t, "mock", h.ProviderID)
	assert.Equal(t, []byte("abc"), h.Data)
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	s := convstate.NewMemoryStore()
	_, err := s.Load(context.Background(), "missing", contracts.TeamB)
	assert.ErrorIs(t, err, convstate.ErrNotFound)
}

func TestMemoryStore_SaveInvalidID(t *testing.T) {
	s := convstate.NewMemoryStore()
	err := s.Save(context.Background(), &convstate.Handle{})
	assert.ErrorIs(t, err, convstate.ErrInvalidID)
}

func TestMemoryStore_TeamsAreIndependent(t *testing.T) {
	s := convstate.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &convstate.Handle{MatchID: "m1", TeamID: contracts.TeamA, Data: []byte("a")}))
	require.NoError(t, s.Save(ctx, &convstate.Handle{MatchID: "m1", TeamID: contracts.TeamB, Data: []byte("b")}))

	ha, err := s.Load(ctx, "m1", contracts.TeamA)
	require.NoError(t, err)
	hb, err := s.Load(ctx, "m1", contracts.TeamB)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), ha.Data)
	assert.Equal(t, []byte("b"), hb.Data)
}
