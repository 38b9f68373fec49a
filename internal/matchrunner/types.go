package matchrunner

import "github.com/wbarena/arena/internal/contracts"

// matchCreatedData is the payload of a match_created event.
type matchCreatedData struct {
	MatchID string `json:"match_id"`
	Seed    int64  `json:"seed"`
	Tier    int    `json:"tier"`
}

// challengeRevealedData is the payload of a challenge_revealed event.
type challengeRevealedData struct {
	Challenge contracts.Challenge `json:"challenge"`
}

// matchCompletedData is the payload of a match_completed event.
type matchCompletedData struct {
	CanonHashA string `json:"canon_hash_a"`
	CanonHashB string `json:"canon_hash_b"`
}

// matchFailedData is the payload of a match_failed event.
type matchFailedData struct {
	Error string `json:"error"`
}
