// Package api implements Worldbuild Arena's HTTP/JSON + SSE surface,
// wiring internal/matchrunner, internal/judging, and internal/matchhub
// behind gin routes. Grounded on smilemakc-mbflow's
// pkg/server.Server (gin.Engine held on a typed Server, routes registered in
// setupRoutes, New returning a ready-to-run instance) and on its handler
// style (gin.H error bodies, c.ShouldBindJSON, c.Param).
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wbarena/arena/internal/eventlog"
	"github.com/wbarena/arena/internal/judging"
	"github.com/wbarena/arena/internal/matchhub"
	"github.com/wbarena/arena/internal/matchrunner"
)

// Server holds the HTTP surface's dependencies and gin router.
type Server struct {
	router     *gin.Engine
	repo       *eventlog.Repository
	hub        *matchhub.Hub
	runner     *matchrunner.Runner
	judging    *judging.Store
	providerID string
}

// New builds a Server and registers all routes. providerID names the
// configured LLM provider, reported by /health.
func New(repo *eventlog.Repository, hub *matchhub.Hub, runner *matchrunner.Runner, judgingStore *judging.Store, providerID string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:     gin.New(),
		repo:       repo,
		hub:        hub,
		runner:     runner,
		judging:    judgingStore,
		providerID: providerID,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// Router returns the underlying gin.Engine, for embedding in an *http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.POST("/matches", s.createMatch)
	s.router.GET("/matches", s.listMatches)
	s.router.GET("/matches/:id", s.getMatch)
	s.router.GET("/matches/:id/events", s.streamEvents)
	s.router.GET("/matches/:id/artifacts", s.getArtifacts)
	s.router.GET("/matches/:id/judging/blind", s.getBlindPackage)
	s.router.POST("/matches/:id/judging/scores", s.submitScore)
	s.router.GET("/matches/:id/judging/scores", s.listScores)
	s.router.GET("/matches/:id/judging/reveal", s.reveal)
	s.router.GET("/health", s.health)
}

func errJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
