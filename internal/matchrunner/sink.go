package matchrunner

import (
	"context"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/eventlog"
	"github.com/wbarena/arena/internal/matchhub"
)

// repoHubSink composes eventlog's durable, sequence-assigning append with
// matchhub's live fan-out into the single EventSink dependency
// internal/deliberation's Engine expects, so the engine itself never imports
// either package directly.
type repoHubSink struct {
	repo    *eventlog.Repository
	hub     *matchhub.Hub
	matchID string
}

func (r *Runner) sinkFor(matchID string) *repoHubSink {
	return &repoHubSink{repo: r.repo, hub: r.hub, matchID: matchID}
}

func (s *repoHubSink) Append(ctx context.Context, teamID *contracts.TeamID, eventType contracts.EventType, data interface{}) (contracts.MatchEvent, error) {
	ev, err := s.repo.AppendEvent(ctx, s.matchID, teamID, eventType, data)
	if err != nil {
		return contracts.MatchEvent{}, err
	}
	s.hub.Publish(ev)
	return ev, nil
}
