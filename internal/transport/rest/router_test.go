package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/repository"
	"codingescape/internal/service"
	"codingescape/internal/transport/rest/middleware"
	"codingescape/internal/transport/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRooms = `
rooms:
  - id: door
    kind: format
    title: Door
    hint: say open
    starter: "// door"
    success: {message: opened}
    failure: {message: still shut}
    variants:
      easy: {prompt: p, rule: {contains: open}}
      medium: {prompt: p, rule: {contains: open}}
      hard: {prompt: p, rule: {contains: open}}
  - id: exit
    kind: final
    title: Exit
    hint: say escaped
    starter: "// exit"
    success: {message: free}
    failure: {message: trapped}
    variants:
      easy: {prompt: p, rule: {contains: escaped}}
      medium: {prompt: p, rule: {contains: escaped}}
      hard: {prompt: p, rule: {contains: escaped}}
`

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewSQLiteUserRepo(db)
	saves := repository.NewSQLiteSaveRepo(db)
	sessions := repository.NewSQLiteGameSessionRepo(db)

	book, err := escape.LoadRulebook(strings.NewReader(testRooms))
	require.NoError(t, err)

	saveSvc := service.NewSaveService(saves)
	leaderboardSvc := service.NewLeaderboardService(sessions, users, nil)
	gameSvc := service.NewGameService(book, saveSvc, leaderboardSvc, nil, time.Hour)
	t.Cleanup(func() { gameSvc.Shutdown(context.Background()) })

	return &testServer{t: t, router: NewRouter(&Container{
		AuthService:        service.NewAuthService(users, "test-secret", time.Hour),
		UserService:        service.NewUserService(users, saves, sessions, nil),
		SaveService:        saveSvc,
		LeaderboardService: leaderboardSvc,
		GameService:        gameSvc,
		WSHub:              ws.NewHub(),
		CORSOrigins:        []string{"http://localhost:3000"},
	})}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(email, name string) string {
	s.t.Helper()
	rec := s.do("POST", "/v1/auth/register", "", model.RegisterRequest{Email: email, Password: "pw", DisplayName: name})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp model.AuthResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndSwagger(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do("GET", "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "/v1", doc["basePath"])
	assert.Contains(t, doc["paths"], "/game/start")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/v1/users/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("POST", "/v1/auth/register", "", model.RegisterRequest{Email: "Ada@Example.com", Password: "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	rec = s.do("POST", "/v1/auth/register", "", model.RegisterRequest{Email: "ada@example.com", Password: "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do("POST", "/v1/auth/login", "", model.LoginRequest{Email: "ada@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the cookie alone authenticates
	req := httptest.NewRequest("GET", "/v1/users/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	s.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	user := decode[model.User](t, me)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "ada", user.DisplayName)
	assert.NotContains(t, me.Body.String(), "passwordHash")

	rec = s.do("GET", "/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do("GET", "/v1/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("POST", "/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestSaveEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ada@example.com", "Ada")

	rec := s.do("GET", "/v1/save/latest", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = s.do("POST", "/v1/save", token, map[string]interface{}{"difficulty": "easy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/v1/save", token, map[string]interface{}{
		"difficulty": "easy", "timeLeft": 600, "currentRoom": 1,
		"solvedRooms": map[string]bool{"door": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode[model.SaveResponse](t, rec)
	require.NotEmpty(t, saved.ID)

	rec = s.do("GET", "/v1/save", token, nil)
	latest := decode[model.SaveState](t, rec)
	assert.Equal(t, saved.ID, latest.ID)
	assert.Equal(t, 600, latest.TimeLeft)

	rec = s.do("GET", "/v1/save/history", token, nil)
	assert.Len(t, decode[[]model.SaveState](t, rec), 1)

	rec = s.do("DELETE", "/v1/save", token, nil)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())
}

func TestGameEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ada@example.com", "Ada")

	rec := s.do("GET", "/v1/game", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("POST", "/v1/game/start", token, model.StartGameRequest{Difficulty: "insane"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/v1/game/start", token, model.StartGameRequest{Difficulty: "easy"})
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[model.GameView](t, rec)
	assert.Equal(t, 1200, view.TimeLeft)

	rec = s.do("POST", "/v1/game/connect", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "// door", decode[model.GameView](t, rec).Rooms[0].Code)

	rec = s.do("POST", "/v1/game/advance", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do("PUT", "/v1/game/rooms/x/code", token, model.CodeRequest{Code: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do("PUT", "/v1/game/rooms/1/code", token, model.CodeRequest{Code: "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do("POST", "/v1/game/hint", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "say open", decode[model.HintResponse](t, rec).Hint)

	rec = s.do("POST", "/v1/game/rooms/0/submit", token, model.CodeRequest{Code: "open sesame"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.SubmitResponse](t, rec).Result.OK)

	rec = s.do("POST", "/v1/game/advance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("POST", "/v1/game/save", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[model.GameView](t, rec).SaveID)

	rec = s.do("POST", "/v1/game/rooms/1/submit", token, model.CodeRequest{Code: "escaped"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.SubmitResponse](t, rec)
	assert.Equal(t, escape.StatusEscaped, resp.View.Status)

	rec = s.do("GET", "/v1/leaderboard?difficulty=easy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[model.LeaderboardResponse](t, rec)
	require.Len(t, board.Leaderboard, 1)
	assert.Equal(t, "Ada", board.Leaderboard[0].Player)
	assert.NotContains(t, rec.Body.String(), "userId")

	rec = s.do("DELETE", "/v1/game", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do("POST", "/v1/game/resume", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.GameView](t, rec).CurrentRoom)
}

func TestRoomsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/v1/rooms?difficulty=hard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decode[model.RoomsResponse](t, rec)
	assert.Equal(t, "hard", rooms.Difficulty)
	assert.Equal(t, 0, rooms.Budget.Hints)
	assert.Len(t, rooms.Rooms, 2)

	rec = s.do("GET", "/v1/rooms?difficulty=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsAndLeaderboardPage(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("ada@example.com", "Ada")
	bob := s.register("bob@example.com", "Bob <b>")

	rec := s.do("POST", "/v1/sessions", ada, map[string]interface{}{"difficulty": "medium", "timeTaken": 5000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do("POST", "/v1/sessions", "", map[string]interface{}{"difficulty": "medium", "timeTaken": 50})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("POST", "/v1/sessions", ada, map[string]interface{}{"difficulty": "medium", "timeTaken": 300})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do("POST", "/v1/sessions", bob, map[string]interface{}{"difficulty": "medium", "timeTaken": 200})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do("GET", "/v1/leaderboard?difficulty=medium&top=1", "", nil)
	board := decode[model.LeaderboardResponse](t, rec)
	require.Len(t, board.Leaderboard, 1)
	assert.Equal(t, "Bob <b>", board.Leaderboard[0].Player)

	rec = s.do("GET", "/v1/leaderboard.html?difficulty=medium&name=Ada", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Bob &lt;b&gt;")
	assert.NotContains(t, body, "Bob <b>")
	assert.Contains(t, body, `class="you"`)

	rec = s.do("GET", "/v1/leaderboard.html?difficulty=hard", "", nil)
	assert.Contains(t, rec.Body.String(), "Be the first to escape!")

	rec = s.do("GET", "/v1/leaderboard.html?difficulty=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ada@example.com", "Ada")

	rec := s.do("POST", "/v1/game/start", token, model.StartGameRequest{Difficulty: "easy"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do("DELETE", "/v1/users/me", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do("GET", "/v1/game", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do("GET", "/v1/users/me", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
