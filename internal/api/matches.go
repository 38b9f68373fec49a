package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/eventlog"
)

// createMatchRequest is the POST /matches body.
type createMatchRequest struct {
	Seed *int64 `json:"seed"`
	Tier int    `json:"tier" binding:"required"`
}

func (s *Server) createMatch(c *gin.Context) {
	var req createMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, err)
		return
	}

	summary, err := s.runner.Create(c.Request.Context(), req.Seed, req.Tier)
	if err != nil {
		errJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (s *Server) listMatches(c *gin.Context) {
	rows, err := s.repo.ListMatches(c.Request.Context(), 100, 0)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	summaries := make([]contracts.MatchSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, toSummary(row))
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) getMatch(c *gin.Context) {
	matchID := c.Param("id")
	model, err := s.repo.GetMatch(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, eventlog.ErrNotFound) {
			errJSON(c, http.StatusNotFound, err)
			return
		}
		errJSON(c, http.StatusInternalServerError, err)
		return
	}

	events, err := s.repo.ListEventsSince(c.Request.Context(), matchID, 0)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, buildMatchDetail(model, events))
}

func toSummary(m *eventlog.MatchModel) contracts.MatchSummary {
	return contracts.MatchSummary{
		MatchID:     m.MatchID,
		Seed:        m.Seed,
		Tier:        m.Tier,
		Status:      contracts.MatchStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}

// challengeEventData and matchCompletedEventData mirror internal/matchrunner's
// unexported event payload shapes, decoded here from the generic JSON the
// eventlog read returns.
type challengeEventData struct {
	Challenge contracts.Challenge `json:"challenge"`
}

type matchCompletedEventData struct {
	CanonHashA string `json:"canon_hash_a"`
	CanonHashB string `json:"canon_hash_b"`
}

type matchFailedEventData struct {
	Error string `json:"error"`
}

func buildMatchDetail(m *eventlog.MatchModel, events []contracts.MatchEvent) contracts.MatchDetail {
	detail := contracts.MatchDetail{MatchSummary: toSummary(m)}
	for _, ev := range events {
		switch ev.Type {
		case contracts.EventChallengeRevealed:
			var d challengeEventData
			if decodeEventData(ev.Data, &d) == nil {
				detail.Challenge = &d.Challenge
			}
		case contracts.EventMatchCompleted:
			var d matchCompletedEventData
			if decodeEventData(ev.Data, &d) == nil {
				detail.CanonHashA = d.CanonHashA
				detail.CanonHashB = d.CanonHashB
			}
		case contracts.EventMatchFailed:
			var d matchFailedEventData
			if decodeEventData(ev.Data, &d) == nil {
				detail.Error = d.Error
			}
		}
	}
	return detail
}

func parseAfter(c *gin.Context) int64 {
	v := c.Query("after")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
