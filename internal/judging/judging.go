// Package judging implements the blind judging store (C10): deterministic
// blind-ID assignment, score submission, weighted-total computation as a
// read-side projection, and reveal — all persisted through
// internal/eventlog's judging_scores and blind_mapping tables. Grounded on
// internal/matchrunner's pattern of a thin orchestration type wrapping an
// eventlog.Repository, and on internal/challenge's seeded-rand-from-identity
// technique for the blind-ID assignment.
package judging

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/eventlog"
	pkgerrors "github.com/wbarena/arena/pkg/errors"
)

const (
	blindWorld1 = "WORLD-1"
	blindWorld2 = "WORLD-2"
)

// Sentinel errors the API layer maps to HTTP status codes.
var (
	// ErrArtifactsNotReady is returned when a match's canon/prompt-pack
	// artifacts cannot yet be reconstructed from its event log (e.g. the
	// match hasn't completed phase 5 for one or both teams).
	ErrArtifactsNotReady = errors.New("judging: match artifacts not ready")
	// ErrUnknownBlindID is returned when a score submission names a blind_id
	// outside {WORLD-1, WORLD-2} for the match's assignment.
	ErrUnknownBlindID = errors.New("judging: unknown blind_id")
	// ErrInvalidScore is returned when any of the five dimensions falls
	// outside [1,5].
	ErrInvalidScore = errors.New("judging: each score must be in the range 1-5")
)

// Store computes and persists blind judging state for completed matches.
type Store struct {
	repo *eventlog.Repository
}

// New creates a Store backed by repo.
func New(repo *eventlog.Repository) *Store {
	return &Store{repo: repo}
}

// BlindPackage returns the match's two blind-labeled worlds, assigning and
// persisting the blind-ID mapping on first request.
func (s *Store) BlindPackage(ctx context.Context, matchID string) (contracts.BlindJudgingPackage, error) {
	mapping, err := s.mappingFor(ctx, matchID)
	if err != nil {
		return contracts.BlindJudgingPackage{}, err
	}

	events, err := s.repo.ListEventsSince(ctx, matchID, 0)
	if err != nil {
		return contracts.BlindJudgingPackage{}, pkgerrors.New("judging", "list_events", err)
	}

	pkg := contracts.BlindJudgingPackage{MatchID: matchID}
	for _, blindID := range []string{blindWorld1, blindWorld2} {
		team, ok := mapping[blindID]
		if !ok {
			return contracts.BlindJudgingPackage{}, fmt.Errorf("judging: mapping missing %s: %w", blindID, ErrArtifactsNotReady)
		}
		artifact, err := reconstructArtifact(events, team)
		if err != nil {
			return contracts.BlindJudgingPackage{}, err
		}
		pkg.Worlds = append(pkg.Worlds, contracts.BlindJudgingEntry{BlindID: blindID, WorldArtifact: artifact})
	}
	return pkg, nil
}

// Artifacts returns both teams' final canon and prompt pack, reconstructed
// from the match's event log, for the artifacts endpoint.
func (s *Store) Artifacts(ctx context.Context, matchID string) (map[contracts.TeamID]contracts.WorldArtifact, error) {
	events, err := s.repo.ListEventsSince(ctx, matchID, 0)
	if err != nil {
		return nil, pkgerrors.New("judging", "list_events", err)
	}

	out := make(map[contracts.TeamID]contracts.WorldArtifact, 2)
	for _, team := range []contracts.TeamID{contracts.TeamA, contracts.TeamB} {
		artifact, err := reconstructArtifact(events, team)
		if err != nil {
			return nil, err
		}
		out[team] = artifact
	}
	return out, nil
}

// SubmitScore records one judge's score submission, returning the persisted
// record with its weighted total computed.
func (s *Store) SubmitScore(ctx context.Context, matchID string, sub contracts.JudgingScoreSubmission) (contracts.JudgingScoreRecord, error) {
	if err := validateScores(sub.Scores); err != nil {
		return contracts.JudgingScoreRecord{}, err
	}

	mapping, err := s.mappingFor(ctx, matchID)
	if err != nil {
		return contracts.JudgingScoreRecord{}, err
	}
	if _, ok := mapping[sub.BlindID]; !ok {
		return contracts.JudgingScoreRecord{}, fmt.Errorf("judging: %s: %w", sub.BlindID, ErrUnknownBlindID)
	}

	model := &eventlog.JudgingScoreModel{
		MatchID:        matchID,
		JudgeID:        sub.Judge,
		BlindLabel:     sub.BlindID,
		Originality:    sub.Scores.Originality,
		Coherence:      sub.Scores.Coherence,
		Evocativeness:  sub.Scores.Evocativeness,
		PromptQuality:  sub.Scores.PromptQuality,
		ProcessQuality: sub.Scores.ProcessQuality,
		Notes:          sub.Notes,
	}
	if err := s.repo.SaveJudgingScore(ctx, model); err != nil {
		return contracts.JudgingScoreRecord{}, pkgerrors.New("judging", "save_score", err)
	}
	return toRecord(model), nil
}

// ListScores returns every score submitted for matchID, each with its
// weighted total computed as a read-side projection.
func (s *Store) ListScores(ctx context.Context, matchID string) ([]contracts.JudgingScoreRecord, error) {
	rows, err := s.repo.ListJudgingScores(ctx, matchID)
	if err != nil {
		return nil, pkgerrors.New("judging", "list_scores", err)
	}
	out := make([]contracts.JudgingScoreRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

// Reveal returns the match's blind_id-to-team mapping, assigning it first if
// no judging request has happened yet.
func (s *Store) Reveal(ctx context.Context, matchID string) (map[string]contracts.TeamID, error) {
	return s.mappingFor(ctx, matchID)
}

// mappingFor returns the match's existing blind mapping, deriving and
// persisting one on first call. A concurrent first call from another
// goroutine or process is resolved by re-reading the now-persisted mapping
// rather than erroring, since blind_mapping's primary key rejects the loser
// of the race.
func (s *Store) mappingFor(ctx context.Context, matchID string) (map[string]contracts.TeamID, error) {
	existing, err := s.repo.GetBlindMapping(ctx, matchID)
	if err != nil {
		return nil, pkgerrors.New("judging", "get_blind_mapping", err)
	}
	if len(existing) == 2 {
		return existing, nil
	}

	mapping := deriveMapping(matchID)
	if err := s.repo.SaveBlindMapping(ctx, matchID, mapping); err != nil {
		existing, rerr := s.repo.GetBlindMapping(ctx, matchID)
		if rerr == nil && len(existing) == 2 {
			return existing, nil
		}
		return nil, pkgerrors.New("judging", "save_blind_mapping", err)
	}
	return mapping, nil
}

// deriveMapping assigns team A and team B to WORLD-1/WORLD-2 using a seed
// derived deterministically from match_id.
func deriveMapping(matchID string) map[string]contracts.TeamID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(matchID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	if rng.Intn(2) == 0 {
		return map[string]contracts.TeamID{blindWorld1: contracts.TeamA, blindWorld2: contracts.TeamB}
	}
	return map[string]contracts.TeamID{blindWorld1: contracts.TeamB, blindWorld2: contracts.TeamA}
}

func validateScores(sc contracts.JudgingScores) error {
	for _, v := range []int{sc.Originality, sc.Coherence, sc.Evocativeness, sc.PromptQuality, sc.ProcessQuality} {
		if v < 1 || v > 5 {
			return ErrInvalidScore
		}
	}
	return nil
}

func toRecord(m *eventlog.JudgingScoreModel) contracts.JudgingScoreRecord {
	scores := contracts.JudgingScores{
		Originality:    m.Originality,
		Coherence:      m.Coherence,
		Evocativeness:  m.Evocativeness,
		PromptQuality:  m.PromptQuality,
		ProcessQuality: m.ProcessQuality,
	}
	return contracts.JudgingScoreRecord{
		Judge:         m.JudgeID,
		BlindID:       m.BlindLabel,
		Scores:        scores,
		Notes:         m.Notes,
		WeightedTotal: scores.WeightedTotal(),
		SubmittedAt:   m.SubmittedAt,
	}
}
