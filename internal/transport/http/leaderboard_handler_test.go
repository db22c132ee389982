package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"promptathon/internal/app"
	"promptathon/internal/domain"
	infraredis "promptathon/internal/infra/redis"
)

func newTestServer(t *testing.T) (*httptest.Server, *infraredis.Writer) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	keyspace := infraredis.NewKeyspace(client, zerolog.Nop())
	caches := app.NewCacheManager(keyspace, time.Minute, 30*time.Second, app.DefaultLevelCapacity)
	service := app.NewLeaderboard(keyspace, caches, zerolog.Nop())
	writer := infraredis.NewWriter(client)

	handler := NewLeaderboardHandler(service, writer, "Promptathon", 100*time.Millisecond, zerolog.Nop())
	mux := http.NewServeMux()
	handler.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, writer
}

func submitJSON(t *testing.T, srv *httptest.Server, req submissionRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(srv.URL+"/api/submissions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post submission: %v", err)
	}
	return resp
}

func TestServeLeaderboardJSON(t *testing.T) {
	srv, writer := newTestServer(t)

	if _, err := writer.SaveSubmission(context.Background(), domain.Submission{
		Username: "alice", Level: "intro", Model: "gpt-4o", Prompt: "12345",
	}, true); err != nil {
		t.Fatalf("seed submission: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var entries []domain.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Username != "alice" || entries[0].Score != 110 || entries[0].DisplayName != "🥇 alice" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestServeLeaderboardEmptyIsJSONArray(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestSubmissionWriteBecomesVisible(t *testing.T) {
	srv, _ := newTestServer(t)

	// Warm the caches on an empty store first.
	if _, err := http.Get(srv.URL + "/api/leaderboard"); err != nil {
		t.Fatalf("warm leaderboard: %v", err)
	}

	resp := submitJSON(t, srv, submissionRequest{
		Username: "carol", Level: "reversal", Model: "claude",
		Prompt: "abc", Cleared: true,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if !strings.HasPrefix(created["key"], "user_submission:carol:reversal:claude:") {
		t.Fatalf("unexpected key: %q", created["key"])
	}

	// The write endpoint invalidates the caches, so the entry shows up
	// without waiting out a TTL.
	listResp, err := http.Get(srv.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer listResp.Body.Close()
	var entries []domain.LeaderboardEntry
	if err := json.NewDecoder(listResp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "carol" || entries[0].Score != 110 {
		t.Fatalf("expected carol at 110, got %+v", entries)
	}
}

func TestSubmissionRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := submitJSON(t, srv, submissionRequest{Username: "", Level: "intro", Model: "gpt-4o"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty username, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/api/submissions")
	if err != nil {
		t.Fatalf("get submissions: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", getResp.StatusCode)
	}
}

func TestServePageShowsPlaceholderWhenEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	page := buf.String()
	if !strings.Contains(page, "No submissions found!") {
		t.Fatalf("expected placeholder on empty page, got:\n%s", page)
	}
	if !strings.Contains(page, "<title>Promptathon</title>") {
		t.Fatalf("expected configured title, got:\n%s", page)
	}
}

func TestServePageStarsBonusPairs(t *testing.T) {
	srv, writer := newTestServer(t)

	ctx := context.Background()
	for _, sub := range []struct {
		user, prompt string
	}{{"alice", "123"}, {"bob", "1234567890"}} {
		if _, err := writer.SaveSubmission(ctx, domain.Submission{
			Username: sub.user, Level: "intro", Model: "gpt-4o", Prompt: sub.prompt,
		}, true); err != nil {
			t.Fatalf("seed submission: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	page := buf.String()
	if !strings.Contains(page, "⭐intro:gpt-4o") {
		t.Fatalf("expected starred bonus pair, got:\n%s", page)
	}
	if !strings.Contains(page, "🥇 alice") || !strings.Contains(page, "🥈 bob") {
		t.Fatalf("expected medal display names, got:\n%s", page)
	}
}

func TestServeCacheStats(t *testing.T) {
	srv, _ := newTestServer(t)

	if _, err := http.Get(srv.URL + "/api/leaderboard"); err != nil {
		t.Fatalf("warm leaderboard: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/cache-stats")
	if err != nil {
		t.Fatalf("get cache stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var stats app.CacheStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if !stats.ClearedPairs.Cached {
		t.Fatalf("expected cleared-pairs cache warm after a build, got %+v", stats)
	}
}

func TestWebsocketPushesLeaderboard(t *testing.T) {
	srv, writer := newTestServer(t)

	if _, err := writer.SaveSubmission(context.Background(), domain.Submission{
		Username: "alice", Level: "intro", Model: "gpt-4o", Prompt: "12345",
	}, true); err != nil {
		t.Fatalf("seed submission: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg struct {
		Type    string                   `json:"type"`
		Payload []domain.LeaderboardEntry `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %q", msg.Type)
	}
	if len(msg.Payload) != 1 || msg.Payload[0].Username != "alice" {
		t.Fatalf("unexpected payload: %+v", msg.Payload)
	}

	// A second frame arrives on the refresh tick.
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read second ws message: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %q", msg.Type)
	}
}
