package main

import (
	"codingescape/internal/app"
	"codingescape/internal/config"
	"codingescape/internal/escape"
	"codingescape/internal/service"
	"codingescape/internal/transport/rest"
	"codingescape/internal/transport/ws"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// @title Coding Escape API
// @version 1.0
// @description Puzzle progression engine for the Coding Escape room
// @host localhost:8080
// @BasePath /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	log.Println("started")
	ctx := context.Background()
	cfg := config.Load()

	book := escape.DefaultRulebook()
	if cfg.RulesPath != "" {
		var err error
		if book, err = escape.LoadRulebookFile(cfg.RulesPath); err != nil {
			log.Fatal("Failed to load rulebook:", err)
		}
		log.Printf("Rulebook loaded from %s", cfg.RulesPath)
	}
	log.Printf("Rulebook: %d rooms", book.Len())

	backends, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open backends:", err)
	}
	defer backends.Close(context.Background())
	store := backends.Store

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize services
	authSvc := service.NewAuthService(store.Users, cfg.JWTSecret, cfg.TokenTTL)
	userSvc := service.NewUserService(store.Users, store.Saves, store.Sessions, backends.Leaderboard)
	saveSvc := service.NewSaveService(store.Saves)
	leaderboardSvc := service.NewLeaderboardService(store.Sessions, store.Users, backends.Leaderboard)
	gameSvc := service.NewGameService(book, saveSvc, leaderboardSvc, backends.Runs, cfg.TickInterval)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	gameSvc.SetBroadcaster(wsHub)

	router := rest.NewRouter(&rest.Container{
		AuthService:        authSvc,
		UserService:        userSvc,
		SaveService:        saveSvc,
		LeaderboardService: leaderboardSvc,
		GameService:        gameSvc,
		WSHub:              wsHub,
		CORSOrigins:        cfg.CORSOrigins,
		CookieSecure:       cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (store=%s)", cfg.Port, cfg.StoreDriver)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/register|login|logout")
		log.Println("  GET/PUT/DELETE /v1/users/me")
		log.Println("  GET/POST/DELETE /v1/save, GET /v1/save/latest|history")
		log.Println("  POST /v1/sessions")
		log.Println("  GET  /v1/leaderboard, /v1/leaderboard.html")
		log.Println("  GET  /v1/rooms")
		log.Println("  GET/DELETE /v1/game, POST /v1/game/{start,resume,connect,advance,hint,save}")
		log.Println("  PUT  /v1/game/rooms/{index}/code, POST /v1/game/rooms/{index}/submit")
		log.Println("  WS   /v1/ws/game")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	gameSvc.Shutdown(shutdownCtx)

	log.Println("Server exited")
}
