package handler

import (
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/service"
	"codingescape/internal/transport/rest/middleware"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// LeaderboardHandler serves the leaderboard and accepts reported runs
type LeaderboardHandler struct {
	leaderboardSvc *service.LeaderboardService
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboardSvc *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardSvc: leaderboardSvc}
}

// Get handles GET /v1/leaderboard?difficulty=&top=
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	top, _ := strconv.Atoi(r.URL.Query().Get("top"))

	resp, err := h.leaderboardSvc.Top(r.Context(), r.URL.Query().Get("difficulty"), top)
	if errors.Is(err, escape.ErrUnknownDifficulty) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Finish handles POST /v1/sessions, a completed run reported by the client
func (h *LeaderboardHandler) Finish(w http.ResponseWriter, r *http.Request) {
	var req model.FinishSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.leaderboardSvc.RecordReport(r.Context(), middleware.GetUserID(r.Context()), &req)
	if errors.Is(err, service.ErrInvalidSession) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

var leaderboardPage = template.Must(template.New("leaderboard").Funcs(template.FuncMap{
	"iso": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Coding Escape - {{.Difficulty}} leaderboard</title>
  <style>
    body { font-family: system-ui, sans-serif; padding: 2rem; background: #020617; color: #e5e7eb; }
    table { border-collapse: collapse; width: 100%; max-width: 640px; margin-top: 1rem; }
    th, td { border: 1px solid #374151; padding: 0.5rem 0.75rem; text-align: left; }
    th { background: #111827; }
    tr.you td { background: #1e3a8a; }
    .error { color: #fecaca; }
  </style>
</head>
<body>
  <h1>Coding Escape - {{.Difficulty}} leaderboard</h1>
  <p>Hello, {{.Name}}.</p>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  {{if .Rows}}
  <table>
    <thead><tr><th>#</th><th>Player</th><th>Time (s)</th><th>Finished at</th></tr></thead>
    <tbody>
    {{range .Rows}}
      <tr{{if eq .Player $.Name}} class="you"{{end}}>
        <td>{{.Rank}}</td><td>{{.Player}}</td><td>{{.TimeTaken}}</td><td>{{iso .FinishedAt}}</td>
      </tr>
    {{end}}
    </tbody>
  </table>
  {{else}}
  <p>No runs recorded yet for <strong>{{.Difficulty}}</strong>. Be the first to escape!</p>
  {{end}}
</body>
</html>
`))

type leaderboardPageData struct {
	Difficulty string
	Name       string
	Error      string
	Rows       []model.LeaderboardRow
}

// Page handles GET /v1/leaderboard.html?difficulty=&name=
func (h *LeaderboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	data := leaderboardPageData{
		Difficulty: strings.ToLower(r.URL.Query().Get("difficulty")),
		Name:       r.URL.Query().Get("name"),
	}
	if data.Difficulty == "" {
		data.Difficulty = string(escape.Easy)
	}
	if data.Name == "" {
		data.Name = "Guest"
	}

	status := http.StatusOK
	resp, err := h.leaderboardSvc.Top(r.Context(), data.Difficulty, service.DefaultLeaderboardSize)
	switch {
	case errors.Is(err, escape.ErrUnknownDifficulty):
		status = http.StatusBadRequest
		data.Error = "Unknown difficulty."
	case err != nil:
		log.Printf("Leaderboard page failed: %v", err)
		status = http.StatusInternalServerError
		data.Error = "Could not load the leaderboard."
	default:
		data.Rows = resp.Leaderboard
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := leaderboardPage.Execute(w, data); err != nil {
		log.Printf("Leaderboard page render failed: %v", err)
	}
}
