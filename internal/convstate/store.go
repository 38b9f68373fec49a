// Package convstate persists each team's provider ConversationHandle between
// turns, so a crashed or redeployed match runner can resume deliberation
// without losing the provider's conversation context.
package convstate

import (
	"context"
	"errors"
	"time"

	"github.com/wbarena/arena/internal/contracts"
)

// ErrNotFound is returned when no handle is stored for a (match, team).
var ErrNotFound = errors.New("convstate: handle not found")

// ErrInvalidID is returned when matchID or teamID is empty.
var ErrInvalidID = errors.New("convstate: invalid match or team id")

// Handle is the persisted form of an llm.ConversationHandle, scoped to one
// team's deliberation within one match.
type Handle struct {
	MatchID    string
	TeamID     contracts.TeamID
	ProviderID string
	Data       []byte
	UpdatedAt  time.Time
}

// Store persists and retrieves per-team conversation handles.
type Store interface {
	Load(ctx context.Context, matchID string, teamID contracts.TeamID) (*Handle, error)
	Save(ctx context.Context, h *Handle) error
}

func key(matchID string, teamID contracts.TeamID) string {
	return matchID + ":" + string(teamID)
}
