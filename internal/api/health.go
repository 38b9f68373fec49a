package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	DB       string `json:"db"`
}

// health serves GET /health, reporting DB reachability and the configured
// LLM provider alongside liveness.
func (s *Server) health(c *gin.Context) {
	resp := healthResponse{Status: "ok", Provider: s.providerID, DB: "ok"}
	status := http.StatusOK
	if err := s.repo.Ping(c.Request.Context()); err != nil {
		resp.Status = "degraded"
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
