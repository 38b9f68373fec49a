package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/judging"
)

type artifactsResponse struct {
	TeamA *contracts.WorldArtifact `json:"team_a,omitempty"`
	TeamB *contracts.WorldArtifact `json:"team_b,omitempty"`
}

// getArtifacts serves GET /matches/{id}/artifacts, 404ing until both teams'
// prompt packs have been emitted.
func (s *Server) getArtifacts(c *gin.Context) {
	matchID := c.Param("id")
	artifacts, err := s.judging.Artifacts(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, judging.ErrArtifactsNotReady) {
			errJSON(c, http.StatusNotFound, err)
			return
		}
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	resp := artifactsResponse{}
	if a, ok := artifacts[contracts.TeamA]; ok {
		resp.TeamA = &a
	}
	if b, ok := artifacts[contracts.TeamB]; ok {
		resp.TeamB = &b
	}
	c.JSON(http.StatusOK, resp)
}
