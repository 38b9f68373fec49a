// Package matchrunner implements the two-team orchestration (C9): match
// creation, seed derivation, and driving both teams' deliberation.Engine
// instances through a phase barrier so neither team begins phase P+1 until
// both have finished phase P, using an errgroup-based concurrent fan-out for
// per-team work. The EventSink composition ties internal/eventlog and
// internal/matchhub together behind one interface.
package matchrunner

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wbarena/arena/internal/canon"
	"github.com/wbarena/arena/internal/challenge"
	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/convstate"
	"github.com/wbarena/arena/internal/deliberation"
	"github.com/wbarena/arena/internal/eventlog"
	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/internal/logger"
	"github.com/wbarena/arena/internal/matchhub"
	prommetrics "github.com/wbarena/arena/internal/metrics/prometheus"
	pkgerrors "github.com/wbarena/arena/pkg/errors"
)

// finalPhase is the last phase the pipeline drives a team through: phase 5,
// prompt-pack generation.
const finalPhase = 5

// Runner creates matches and drives their two-team pipelines to completion.
// One Runner is shared process-wide; each Create call starts an independent
// pipeline goroutine.
type Runner struct {
	repo      *eventlog.Repository
	hub       *matchhub.Hub
	adapter   llm.Adapter
	convState convstate.Store
}

// New creates a Runner. adapter is shared across every match and team the
// Runner drives: StartConversation/GenerateTurn are parameterized entirely
// by the ConversationHandle and TurnSpec passed in, so one Adapter instance
// safely serves many independent, concurrent conversations.
func New(repo *eventlog.Repository, hub *matchhub.Hub, adapter llm.Adapter, convState convstate.Store) *Runner {
	return &Runner{repo: repo, hub: hub, adapter: adapter, convState: convState}
}

// Create allocates a new match, persists its record, emits match_created and
// challenge_revealed, and starts its pipeline in the background. It returns
// as soon as the match is durably recorded; the pipeline itself runs
// concurrently and reports its outcome via match_completed/match_failed.
func (r *Runner) Create(ctx context.Context, seed *int64, tier int) (contracts.MatchSummary, error) {
	if err := challenge.ValidateTier(tier); err != nil {
		return contracts.MatchSummary{}, err
	}

	resolvedSeed := deriveSeed(seed)
	matchID := uuid.NewString()
	now := time.Now()

	if err := r.repo.CreateMatch(ctx, matchID, resolvedSeed, tier); err != nil {
		return contracts.MatchSummary{}, pkgerrors.New("matchrunner", "create_match", err)
	}

	sink := r.sinkFor(matchID)
	if _, err := sink.Append(ctx, nil, contracts.EventMatchCreated, matchCreatedData{
		MatchID: matchID, Seed: resolvedSeed, Tier: tier,
	}); err != nil {
		return contracts.MatchSummary{}, pkgerrors.New("matchrunner", "emit_match_created", err)
	}

	chal := challenge.Generate(resolvedSeed, tier)
	if _, err := sink.Append(ctx, nil, contracts.EventChallengeRevealed, challengeRevealedData{Challenge: chal}); err != nil {
		return contracts.MatchSummary{}, pkgerrors.New("matchrunner", "emit_challenge_revealed", err)
	}

	go r.runPipeline(context.Background(), matchID, chal)

	return contracts.MatchSummary{
		MatchID: matchID, Seed: resolvedSeed, Tier: tier, Status: contracts.MatchRunning, CreatedAt: now,
	}, nil
}

// deriveSeed returns *seed when the caller supplied one; otherwise it
// derives a fresh seed from the process clock.
func deriveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return rand.New(rand.NewSource(time.Now().UnixNano())).Int63()
}

// runPipeline drives both teams' engines through Init and phases 1-5 behind
// a phase barrier, then records the match's terminal outcome. It is started
// as its own goroutine by Create and owns the match's background context.
func (r *Runner) runPipeline(ctx context.Context, matchID string, chal contracts.Challenge) {
	start := time.Now()
	prommetrics.RecordMatchStart()

	canonA, canonB := canon.New(), canon.New()
	engA := deliberation.New(deliberation.Config{
		MatchID: matchID, TeamID: contracts.TeamA, Challenge: chal, Canon: canonA,
		Adapter: r.adapter, ConvState: r.convState, Sink: r.sinkFor(matchID),
	})
	engB := deliberation.New(deliberation.Config{
		MatchID: matchID, TeamID: contracts.TeamB, Challenge: chal, Canon: canonB,
		Adapter: r.adapter, ConvState: r.convState, Sink: r.sinkFor(matchID),
	})

	if err := r.runBarrier(ctx, engA.Init, engB.Init); err != nil {
		r.fail(ctx, matchID, err, start)
		return
	}

	for phase := 1; phase <= finalPhase; phase++ {
		workA := func(gctx context.Context) error { return engA.RunPhase(gctx, phase) }
		workB := func(gctx context.Context) error { return engB.RunPhase(gctx, phase) }
		if err := r.runBarrier(ctx, workA, workB); err != nil {
			r.fail(ctx, matchID, err, start)
			return
		}
	}

	hashA, err := canonA.Hash()
	if err != nil {
		r.fail(ctx, matchID, err, start)
		return
	}
	hashB, err := canonB.Hash()
	if err != nil {
		r.fail(ctx, matchID, err, start)
		return
	}

	if err := r.repo.FinishMatch(ctx, matchID, contracts.MatchCompleted, ""); err != nil {
		logger.ErrorContext(ctx, "matchrunner: finish match failed", "match_id", matchID, "err", err)
	}
	if _, err := r.sinkFor(matchID).Append(ctx, nil, contracts.EventMatchCompleted, matchCompletedData{
		CanonHashA: hashA, CanonHashB: hashB,
	}); err != nil {
		logger.ErrorContext(ctx, "matchrunner: emit match_completed failed", "match_id", matchID, "err", err)
	}
	prommetrics.RecordMatchEnd("completed", time.Since(start).Seconds())
}

// runBarrier runs both teams' work for one pipeline stage concurrently and
// waits for both to finish before returning — the phase-barrier rule that
// keeps the two teams in lockstep. A failure in either team cancels the
// other's context via errgroup, so a stuck or erroring team never leaves
// its twin running alone.
func (r *Runner) runBarrier(ctx context.Context, workA, workB func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return workA(gctx) })
	g.Go(func() error { return workB(gctx) })
	return g.Wait()
}

// fail records a match's terminal failure. deliberation.ErrRatificationFailed
// is reported under its own stable reason string and a cancelled context as
// "cancelled"; any other error is reported as its message.
func (r *Runner) fail(ctx context.Context, matchID string, err error, start time.Time) {
	reason := failureReason(err)
	logger.ErrorContext(ctx, "matchrunner: pipeline failed", "match_id", matchID, "reason", reason)

	bg := context.Background()
	if dberr := r.repo.FinishMatch(bg, matchID, contracts.MatchFailed, reason); dberr != nil {
		logger.ErrorContext(bg, "matchrunner: finish match (failed) failed", "match_id", matchID, "err", dberr)
	}
	if _, aerr := r.sinkFor(matchID).Append(bg, nil, contracts.EventMatchFailed, matchFailedData{Error: reason}); aerr != nil {
		logger.ErrorContext(bg, "matchrunner: emit match_failed failed", "match_id", matchID, "err", aerr)
	}
	prommetrics.RecordMatchEnd("failed", time.Since(start).Seconds())
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, deliberation.ErrRatificationFailed):
		return "ratification_failed"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
