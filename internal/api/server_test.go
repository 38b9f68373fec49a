package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbarena/arena/internal/api"
	"github.com/wbarena/arena/internal/contracts"
	"github.com/wbarena/arena/internal/convstate"
	"github.com/wbarena/arena/internal/eventlog"
	"github.com/wbarena/arena/internal/judging"
	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/internal/matchhub"
	"github.com/wbarena/arena/internal/matchrunner"
)

// newTestServer wires a Server backed by a real in-memory sqlite repository,
// matchhub, and a mock LLM adapter, mirroring the stack internal/judging's
// tests drive a real match through.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := eventlog.NewDB(eventlog.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eventlog.Close(db) })

	repo := eventlog.NewRepository(db)
	hub := matchhub.New()
	runner := matchrunner.New(repo, hub, llm.NewMockAdapter(), convstate.NewMemoryStore())
	judgingStore := judging.New(repo)

	srv := api.New(repo, hub, runner, judgingStore, "mock")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func createMatch(t *testing.T, ts *httptest.Server) contracts.MatchSummary {
	t.Helper()
	body := strings.NewReader(`{"tier":1}`)
	resp, err := http.Post(ts.URL+"/matches", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var summary contracts.MatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	return summary
}

func waitForCompletion(t *testing.T, ts *httptest.Server, matchID string) contracts.MatchDetail {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/matches/" + matchID)
		require.NoError(t, err)
		var detail contracts.MatchDetail
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
		resp.Body.Close()
		if detail.Status != contracts.MatchRunning {
			require.Equal(t, contracts.MatchCompleted, detail.Status)
			return detail
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for match to complete")
	return contracts.MatchDetail{}
}

func TestCreateAndGetMatch(t *testing.T) {
	ts := newTestServer(t)
	summary := createMatch(t, ts)
	assert.NotEmpty(t, summary.MatchID)
	assert.Equal(t, contracts.MatchRunning, summary.Status)

	detail := waitForCompletion(t, ts, summary.MatchID)
	assert.NotEmpty(t, detail.CanonHashA)
	assert.NotEmpty(t, detail.CanonHashB)
	require.NotNil(t, detail.Challenge)
}

func TestListMatches(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts)

	resp, err := http.Get(ts.URL + "/matches")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []contracts.MatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	assert.Len(t, summaries, 1)
}

func TestGetMatch_NotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/matches/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestArtifactsAndJudgingFlow(t *testing.T) {
	ts := newTestServer(t)
	summary := createMatch(t, ts)
	waitForCompletion(t, ts, summary.MatchID)

	artResp, err := http.Get(ts.URL + "/matches/" + summary.MatchID + "/artifacts")
	require.NoError(t, err)
	defer artResp.Body.Close()
	require.Equal(t, http.StatusOK, artResp.StatusCode)

	var artifacts struct {
		TeamA *contracts.WorldArtifact `json:"team_a"`
		TeamB *contracts.WorldArtifact `json:"team_b"`
	}
	require.NoError(t, json.NewDecoder(artResp.Body).Decode(&artifacts))
	require.NotNil(t, artifacts.TeamA)
	require.NotNil(t, artifacts.TeamB)
	assert.NotEmpty(t, artifacts.TeamA.Canon.WorldName)

	blindResp, err := http.Get(ts.URL + "/matches/" + summary.MatchID + "/judging/blind")
	require.NoError(t, err)
	defer blindResp.Body.Close()
	require.Equal(t, http.StatusOK, blindResp.StatusCode)

	var pkg contracts.BlindJudgingPackage
	require.NoError(t, json.NewDecoder(blindResp.Body).Decode(&pkg))
	require.Len(t, pkg.Worlds, 2)

	scoreBody := fmt.Sprintf(`{"judge":"judge-1","blind_id":%q,"scores":{"originality":5,"coherence":4,"evocativeness":4,"prompt_quality":3,"process_quality":5}}`, pkg.Worlds[0].BlindID)
	scoreResp, err := http.Post(ts.URL+"/matches/"+summary.MatchID+"/judging/scores", "application/json", strings.NewReader(scoreBody))
	require.NoError(t, err)
	defer scoreResp.Body.Close()
	require.Equal(t, http.StatusCreated, scoreResp.StatusCode)

	listResp, err := http.Get(ts.URL + "/matches/" + summary.MatchID + "/judging/scores")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var scores []contracts.JudgingScoreRecord
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&scores))
	require.Len(t, scores, 1)

	revealResp, err := http.Get(ts.URL + "/matches/" + summary.MatchID + "/judging/reveal")
	require.NoError(t, err)
	defer revealResp.Body.Close()
	require.Equal(t, http.StatusOK, revealResp.StatusCode)
	var mapping map[string]contracts.TeamID
	require.NoError(t, json.NewDecoder(revealResp.Body).Decode(&mapping))
	require.Len(t, mapping, 2)
}

func TestArtifacts_NotReadyBeforeCompletion(t *testing.T) {
	ts := newTestServer(t)
	summary := createMatch(t, ts)

	resp, err := http.Get(ts.URL + "/matches/" + summary.MatchID + "/artifacts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamEvents_ReplaysAndTerminates(t *testing.T) {
	ts := newTestServer(t)
	summary := createMatch(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/matches/"+summary.MatchID+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	sawTerminal := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev contracts.MatchEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		if ev.Type == contracts.EventMatchCompleted || ev.Type == contracts.EventMatchFailed {
			sawTerminal = true
			break
		}
	}
	assert.True(t, sawTerminal, "stream must terminate after a match_completed/match_failed event")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mock", body["provider"])
}
