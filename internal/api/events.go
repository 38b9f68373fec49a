package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wbarena/arena/internal/contracts"
)

// streamEvents serves GET /matches/{id}/events?after=N: an SSE stream that
// replays persisted events with seq > after, then live-tails the match via
// matchhub until the client disconnects or a terminal event is delivered.
//
// Each event is written as a "data: <json>\n\n" line, flushed immediately.
// The subscribe-before-replay ordering (and the lastSeq dedupe against the
// live channel) resolves matchhub's documented contract that a
// Subscription only delivers events appended after it was created —
// subscribing first guarantees no event is lost in the window between the
// historical read and the live tail taking over.
func (s *Server) streamEvents(c *gin.Context) {
	matchID := c.Param("id")
	after := parseAfter(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		errJSON(c, http.StatusInternalServerError, fmt.Errorf("api: streaming unsupported"))
		return
	}

	sub := s.hub.Subscribe(matchID)
	defer s.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastSeq := after
	history, err := s.repo.ListEventsSince(c.Request.Context(), matchID, after)
	if err != nil {
		return
	}
	for _, ev := range history {
		if terminal := writeSSEEvent(c.Writer, flusher, ev); terminal {
			return
		}
		lastSeq = ev.Seq
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Seq <= lastSeq {
				continue
			}
			lastSeq = ev.Seq
			if terminal := writeSSEEvent(c.Writer, flusher, ev); terminal {
				return
			}
		}
	}
}

// writeSSEEvent writes one MatchEvent as an SSE "data:" frame and reports
// whether it was a terminal event the stream should close after.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev contracts.MatchEvent) (terminal bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
	return ev.Type == contracts.EventMatchCompleted || ev.Type == contracts.EventMatchFailed
}
