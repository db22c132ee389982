package http

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"promptathon/internal/app"
	"promptathon/internal/domain"
)

// SubmissionWriter persists submission records written through the API.
type SubmissionWriter interface {
	SaveSubmission(ctx context.Context, sub domain.Submission, cleared bool) (string, error)
}

// LeaderboardHandler serves the leaderboard page, the JSON API, the live
// websocket feed, and the submission write endpoint.
type LeaderboardHandler struct {
	service  *app.Leaderboard
	writer   SubmissionWriter
	title    string
	refresh  time.Duration
	upgrader websocket.Upgrader
	tmpl     *template.Template
	log      zerolog.Logger
}

func NewLeaderboardHandler(service *app.Leaderboard, writer SubmissionWriter, title string, refresh time.Duration, log zerolog.Logger) *LeaderboardHandler {
	if refresh <= 0 {
		refresh = time.Minute
	}
	return &LeaderboardHandler{
		service: service,
		writer:  writer,
		title:   title,
		refresh: refresh,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tmpl: template.Must(template.New("leaderboard").Parse(leaderboardPage)),
		log:  log,
	}
}

// Register wires every route into the mux.
func (h *LeaderboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", h.ServePage)
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/api/leaderboard", h.ServeLeaderboard)
	mux.HandleFunc("/api/cache-stats", h.ServeCacheStats)
	mux.HandleFunc("/api/submissions", h.ServeSubmission)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
}

type pageRow struct {
	Rank        int
	DisplayName string
	Score       int
	Cleared     []string
}

type pageData struct {
	Title   string
	Rows    []pageRow
	Refresh int
}

// ServePage renders the leaderboard as an HTML table. Bonus pairs carry a
// star marker in the cleared column.
func (h *LeaderboardHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	entries := h.service.Build(r.Context())
	data := pageData{
		Title:   h.title,
		Rows:    make([]pageRow, 0, len(entries)),
		Refresh: int(h.refresh / time.Second),
	}
	for _, entry := range entries {
		data.Rows = append(data.Rows, pageRow{
			Rank:        entry.Rank,
			DisplayName: entry.DisplayName,
			Score:       entry.Score,
			Cleared:     clearedColumn(entry),
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, data); err != nil {
		h.log.Error().Err(err).Msg("rendering leaderboard page")
	}
}

func clearedColumn(entry domain.LeaderboardEntry) []string {
	bonus := make(map[string]struct{}, len(entry.Bonus))
	for _, pair := range entry.Bonus {
		bonus[pair.String()] = struct{}{}
	}
	lines := make([]string, 0, len(entry.Cleared))
	for _, pair := range entry.Cleared {
		line := pair.String()
		if _, ok := bonus[pair.String()]; ok {
			line = "⭐" + line
		}
		lines = append(lines, line)
	}
	return lines
}

// ServeLeaderboard returns the leaderboard as JSON.
func (h *LeaderboardHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries := h.service.Build(r.Context())
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ServeCacheStats exposes cache sizes, keys, and expiry settings for
// operational debugging.
func (h *LeaderboardHandler) ServeCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Caches().Stats())
}

type submissionRequest struct {
	Username           string `json:"username"`
	Level              string `json:"level"`
	Model              string `json:"model"`
	Prompt             string `json:"prompt"`
	Response           string `json:"response"`
	ExpectedCompletion string `json:"expectedCompletion"`
	Cleared            bool   `json:"cleared"`
}

// ServeSubmission persists a graded submission and invalidates the caches the
// write makes stale, so the next build reflects it without waiting out a TTL.
func (h *LeaderboardHandler) ServeSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid submission payload", http.StatusBadRequest)
		return
	}

	key, err := h.writer.SaveSubmission(r.Context(), domain.Submission{
		Username:           req.Username,
		Level:              req.Level,
		Model:              req.Model,
		Prompt:             req.Prompt,
		Response:           req.Response,
		ExpectedCompletion: req.ExpectedCompletion,
	}, req.Cleared)
	if err != nil {
		if err == domain.ErrEmptySubmission {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("saving submission")
		http.Error(w, "failed to save submission", http.StatusInternalServerError)
		return
	}

	caches := h.service.Caches()
	caches.InvalidateSubmissions()
	if req.Cleared {
		caches.InvalidateClearedPairs()
	}

	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ServeWS upgrades the connection and pushes a fresh leaderboard immediately
// and then on every refresh tick until the client goes away.
func (h *LeaderboardHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		return conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: h.service.Build(ctx)})
	}
	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const leaderboardPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>{{.Title}}</title>
<style>
    body { font-family: sans-serif; margin: 2em; }
    .table { width: 100%; margin: 0 auto; border-collapse: collapse; }
    .table th, .table td { padding: 8px 12px; text-align: left; }
    .table th { background-color: #f2f2f2; }
    .table td { border-bottom: 1px solid #ddd; white-space: pre-line; }
</style>
</head>
<body>
<h4>{{.Title}}</h4>
<p>Scores are calculated based on the levels cleared and the length of the prompts submitted.</p>
{{if .Rows}}
<table class="table">
<tr><th>Rank</th><th>User</th><th>Score</th><th>Cleared</th></tr>
{{range .Rows}}<tr><td>{{.Rank}}</td><td>{{.DisplayName}}</td><td>{{.Score}}</td><td>{{range .Cleared}}{{.}}
{{end}}</td></tr>
{{end}}
</table>
{{else}}
<p>No submissions found!</p>
{{end}}
</body>
</html>
`
