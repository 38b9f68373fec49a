package eventlog

import (
	"time"

	"github.com/uptrace/bun"
)

// MatchModel is the row-level persistence shape for a match.
type MatchModel struct {
	bun.BaseModel `bun:"table:matches"`

	MatchID     string    `bun:"match_id,pk"`
	Seed        int64     `bun:"seed,notnull"`
	Tier        int       `bun:"tier,notnull"`
	Status      string    `bun:"status,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`
	FailureReason string  `bun:"failure_reason"`
}

// EventModel is one immutable row in a match's append-only event log. The
// primary key is (match_id, seq) so sequence uniqueness and gap-free
// ordering are enforced at the database level.
type EventModel struct {
	bun.BaseModel `bun:"table:events"`

	MatchID string    `bun:"match_id,pk"`
	Seq     int64     `bun:"seq,pk"`
	ID      string    `bun:"id,notnull"`
	TS      time.Time `bun:"ts,notnull"`
	TeamID  string    `bun:"team_id"`
	Type    string    `bun:"type,notnull"`
	Data    string    `bun:"data,notnull,type:text"` // JSON-encoded MatchEvent.Data
}

// JudgingScoreModel is one judge's score submission for one blind-labeled world.
type JudgingScoreModel struct {
	bun.BaseModel `bun:"table:judging_scores"`

	ID          int64     `bun:"id,pk,autoincrement"`
	MatchID     string    `bun:"match_id,notnull"`
	JudgeID     string    `bun:"judge_id,notnull"`
	BlindLabel  string    `bun:"blind_label,notnull"` // "WORLD-1" | "WORLD-2"
	Originality int       `bun:"originality,notnull"`
	Coherence   int       `bun:"coherence,notnull"`
	Evocativeness int     `bun:"evocativeness,notnull"`
	PromptQuality int     `bun:"prompt_quality,notnull"`
	ProcessQuality int    `bun:"process_quality,notnull"`
	Notes       string    `bun:"notes"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

// BlindMappingModel maps a match's deterministic blind labels back to the
// real team IDs, kept separate from judging_scores so the mapping can be
// withheld until reveal.
type BlindMappingModel struct {
	bun.BaseModel `bun:"table:blind_mapping"`

	MatchID    string `bun:"match_id,pk"`
	BlindLabel string `bun:"blind_label,pk"`
	TeamID     string `bun:"team_id,notnull"`
}
