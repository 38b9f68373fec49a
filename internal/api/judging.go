package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/judging"
)

// getBlindPackage serves GET /matches/{id}/judging/blind.
func (s *Server) getBlindPackage(c *gin.Context) {
	matchID := c.Param("id")
	pkg, err := s.judging.BlindPackage(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, judging.ErrArtifactsNotReady) {
			errJSON(c, http.StatusNotFound, err)
			return
		}
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// submitScore serves POST /matches/{id}/judging/scores.
func (s *Server) submitScore(c *gin.Context) {
	matchID := c.Param("id")
	var sub contracts.JudgingScoreSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		errJSON(c, http.StatusBadRequest, err)
		return
	}

	record, err := s.judging.SubmitScore(c.Request.Context(), matchID, sub)
	if err != nil {
		switch {
		case errors.Is(err, judging.ErrInvalidScore), errors.Is(err, judging.ErrUnknownBlindID):
			errJSON(c, http.StatusBadRequest, err)
		case errors.Is(err, judging.ErrArtifactsNotReady):
			errJSON(c, http.StatusNotFound, err)
		default:
			errJSON(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusCreated, record)
}

// listScores serves GET /matches/{id}/judging/scores.
func (s *Server) listScores(c *gin.Context) {
	matchID := c.Param("id")
	scores, err := s.judging.ListScores(c.Request.Context(), matchID)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, scores)
}

// reveal serves GET /matches/{id}/judging/reveal.
func (s *Server) reveal(c *gin.Context) {
	matchID := c.Param("id")
	mapping, err := s.judging.Reveal(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, judging.ErrArtifactsNotReady) {
			errJSON(c, http.StatusNotFound, err)
			return
		}
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, mapping)
}
