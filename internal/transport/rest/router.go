package rest

import (
	_ "codingescape/docs"
	"codingescape/internal/service"
	"codingescape/internal/transport/rest/handler"
	"codingescape/internal/transport/rest/middleware"
	"codingescape/internal/transport/ws"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/swaggo/swag"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService        *service.AuthService
	UserService        *service.UserService
	SaveService        *service.SaveService
	LeaderboardService *service.LeaderboardService
	GameService        *service.GameService
	WSHub              *ws.Hub
	CORSOrigins        []string
	CookieSecure       bool
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService, c.CookieSecure)
	userHandler := handler.NewUserHandler(c.UserService, c.GameService)
	saveHandler := handler.NewSaveHandler(c.SaveService)
	leaderboardHandler := handler.NewLeaderboardHandler(c.LeaderboardService)
	gameHandler := handler.NewGameHandler(c.GameService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.GameService, c.CORSOrigins)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORSOrigins))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")
	v1.HandleFunc("/leaderboard", leaderboardHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/leaderboard.html", leaderboardHandler.Page).Methods("GET")
	v1.HandleFunc("/rooms", gameHandler.Rooms).Methods("GET", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/game", wsHandler.GameWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	}).Methods("GET")

	// Player routes (require login)
	userRoutes := v1.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)

	userRoutes.HandleFunc("/users/me", userHandler.Me).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/users/me", userHandler.Update).Methods("PUT", "OPTIONS")
	userRoutes.HandleFunc("/users/me", userHandler.Delete).Methods("DELETE", "OPTIONS")

	userRoutes.HandleFunc("/save", saveHandler.Latest).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/save", saveHandler.Save).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/save", saveHandler.DeleteAll).Methods("DELETE", "OPTIONS")
	userRoutes.HandleFunc("/save/latest", saveHandler.Latest).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/save/history", saveHandler.History).Methods("GET", "OPTIONS")

	userRoutes.HandleFunc("/sessions", leaderboardHandler.Finish).Methods("POST", "OPTIONS")

	userRoutes.HandleFunc("/game", gameHandler.Get).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/game", gameHandler.Abandon).Methods("DELETE", "OPTIONS")
	userRoutes.HandleFunc("/game/start", gameHandler.Start).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/game/resume", gameHandler.Resume).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/game/connect", gameHandler.Connect).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/game/rooms/{index}/code", gameHandler.SetCode).Methods("PUT", "OPTIONS")
	userRoutes.HandleFunc("/game/rooms/{index}/submit", gameHandler.Submit).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/game/advance", gameHandler.Advance).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/game/hint", gameHandler.Hint).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/game/save", gameHandler.Save).Methods("POST", "OPTIONS")

	return r
}

const (
	allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowedHeaders = "Content-Type, Authorization"
)

func corsMiddleware(origins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowOrigin(origins, r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if origin != "*" {
					// cookies only travel to an explicit origin
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowOrigin(origins []string, origin string) string {
	if len(origins) == 0 {
		return "*"
	}
	for _, o := range origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
