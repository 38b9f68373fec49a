package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/wbarena/arena/internal/contracts"
)

// ErrNotFound is returned when a match or event lookup misses.
var ErrNotFound = errors.New("eventlog: not found")

// Repository is the persistence boundary for matches and their event logs.
type Repository struct {
	db bun.IDB
}

// NewRepository wraps a *bun.DB (or an active bun.Tx) as a Repository.
func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Ping verifies the underlying database connection is reachable, for use by
// the health endpoint.
func (r *Repository) Ping(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("eventlog: ping: %w", err)
	}
	return nil
}

// CreateMatch inserts a new match row in "running" status.
func (r *Repository) CreateMatch(ctx context.Context, matchID string, seed int64, tier int) error {
	m := &MatchModel{
		MatchID:   matchID,
		Seed:      seed,
		Tier:      tier,
		Status:    string(contracts.MatchRunning),
		CreatedAt: time.Now(),
	}
	_, err := r.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("eventlog: create match: %w", err)
	}
	return nil
}

// GetMatch retrieves a match's summary row.
func (r *Repository) GetMatch(ctx context.Context, matchID string) (*MatchModel, error) {
	m := new(MatchModel)
	err := r.db.NewSelect().Model(m).Where("match_id = ?", matchID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("eventlog: get match: %w", err)
	}
	return m, nil
}

// ListMatches returns matches ordered newest-first.
func (r *Repository) ListMatches(ctx context.Context, limit, offset int) ([]*MatchModel, error) {
	var ms []*MatchModel
	q := r.db.NewSelect().Model(&ms).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("eventlog: list matches: %w", err)
	}
	return ms, nil
}

// FinishMatch marks a match completed or failed.
func (r *Repository) FinishMatch(ctx context.Context, matchID string, status contracts.MatchStatus, failureReason string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().Model((*MatchModel)(nil)).
		Set("status = ?", string(status)).
		Set("completed_at = ?", now).
		Set("failure_reason = ?", failureReason).
		Where("match_id = ?", matchID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("eventlog: finish match: %w", err)
	}
	return nil
}

// AppendEvent assigns the next strictly-increasing seq for matchID inside a
// transaction and inserts the event row, so concurrent appends from the two
// team engines never collide or leave a gap.
func (r *Repository) AppendEvent(ctx context.Context, matchID string, teamID *contracts.TeamID, eventType contracts.EventType, data interface{}) (contracts.MatchEvent, error) {
	db, ok := r.db.(*bun.DB)
	if !ok {
		return r.appendEventTx(ctx, r.db, matchID, teamID, eventType, data)
	}
	var out contracts.MatchEvent
	err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = r.appendEventTx(ctx, tx, matchID, teamID, eventType, data)
		return err
	})
	return out, err
}

func (r *Repository) appendEventTx(ctx context.Context, db bun.IDB, matchID string, teamID *contracts.TeamID, eventType contracts.EventType, data interface{}) (contracts.MatchEvent, error) {
	var maxSeq sql.NullInt64
	if err := db.NewSelect().Model((*EventModel)(nil)).
		ColumnExpr("MAX(seq)").
		Where("match_id = ?", matchID).
		Scan(ctx, &maxSeq); err != nil {
		return contracts.MatchEvent{}, fmt.Errorf("eventlog: select max seq: %w", err)
	}
	nextSeq := int64(1)
	if maxSeq.Valid {
		nextSeq = maxSeq.Int64 + 1
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return contracts.MatchEvent{}, fmt.Errorf("eventlog: marshal event data: %w", err)
	}

	var team string
	if teamID != nil {
		team = string(*teamID)
	}

	row := &EventModel{
		MatchID: matchID,
		Seq:     nextSeq,
		ID:      uuid.NewString(),
		TS:      time.Now(),
		TeamID:  team,
		Type:    string(eventType),
		Data:    string(payload),
	}
	if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
		return contracts.MatchEvent{}, fmt.Errorf("eventlog: insert event: %w", err)
	}

	return toMatchEvent(row), nil
}

// ListEventsSince returns every event for matchID with seq > sinceSeq,
// ordered ascending — the replay source for a new subscriber or reconnect.
func (r *Repository) ListEventsSince(ctx context.Context, matchID string, sinceSeq int64) ([]contracts.MatchEvent, error) {
	var rows []*EventModel
	err := r.db.NewSelect().Model(&rows).
		Where("match_id = ?", matchID).
		Where("seq > ?", sinceSeq).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list events since: %w", err)
	}
	events := make([]contracts.MatchEvent, len(rows))
	for i, row := range rows {
		events[i] = toMatchEvent(row)
	}
	return events, nil
}

func toMatchEvent(row *EventModel) contracts.MatchEvent {
	var data interface{}
	_ = json.Unmarshal([]byte(row.Data), &data)
	var teamID *contracts.TeamID
	if row.TeamID != "" {
		t := contracts.TeamID(row.TeamID)
		teamID = &t
	}
	return contracts.MatchEvent{
		ID:      row.ID,
		Seq:     row.Seq,
		TS:      row.TS,
		MatchID: row.MatchID,
		TeamID:  teamID,
		Type:    contracts.EventType(row.Type),
		Data:    data,
	}
}

// SaveJudgingScore records one judge's score submission.
func (r *Repository) SaveJudgingScore(ctx context.Context, score *JudgingScoreModel) error {
	score.SubmittedAt = time.Now()
	_, err := r.db.NewInsert().Model(score).Exec(ctx)
	if err != nil {
		return fmt.Errorf("eventlog: save judging score: %w", err)
	}
	return nil
}

// ListJudgingScores returns all score submissions for a match.
func (r *Repository) ListJudgingScores(ctx context.Context, matchID string) ([]*JudgingScoreModel, error) {
	var rows []*JudgingScoreModel
	err := r.db.NewSelect().Model(&rows).Where("match_id = ?", matchID).Order("submitted_at ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list judging scores: %w", err)
	}
	return rows, nil
}

// SaveBlindMapping persists the deterministic blind-label-to-team mapping
// for a match, computed once at judging-phase entry.
func (r *Repository) SaveBlindMapping(ctx context.Context, matchID string, mapping map[string]contracts.TeamID) error {
	rows := make([]*BlindMappingModel, 0, len(mapping))
	for label, team := range mapping {
		rows = append(rows, &BlindMappingModel{MatchID: matchID, BlindLabel: label, TeamID: string(team)})
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().Model(&rows).Exec(ctx)
	if err != nil {
		return fmt.Errorf("eventlog: save blind mapping: %w", err)
	}
	return nil
}

// GetBlindMapping retrieves the blind-label-to-team mapping for reveal.
func (r *Repository) GetBlindMapping(ctx context.Context, matchID string) (map[string]contracts.TeamID, error) {
	var rows []*BlindMappingModel
	err := r.db.NewSelect().Model(&rows).Where("match_id = ?", matchID).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventlog: get blind mapping: %w", err)
	}
	mapping := make(map[string]contracts.TeamID, len(rows))
	for _, row := range rows {
		mapping[row.BlindLabel] = contracts.TeamID(row.TeamID)
	}
	return mapping, nil
}
