package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/services/tetris"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	if cfg.JWTSecret == "" && !cfg.BypassAuth {
		log.Println("warning: JWT_SECRET is not set; authenticated endpoints will return 500")
	}
	if cfg.BypassAuth {
		log.Println("warning: BYPASS_AUTH is enabled, every request gets a generated user ID")
	}

	sessionManager := tetris.NewSessionManager(cfg.Game)
	gameHandler := handlers.NewGameHandler(sessionManager, cfg.StartLevel, cfg.JWTSecret, cfg.BypassAuth)
	statusHandler := handlers.NewStatusHandler(sessionManager)

	// 公開: /api/public, /api/status, /api/sessions/{id}/ws（接続後の認証メッセージで認証）
	// 認証必須: /api/sessions 以下の REST エンドポイント
	r := handlers.NewRouter(gameHandler, statusHandler, middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.BypassAuth))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.CORSHandler(cfg.CORSOrigins)(r),
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	sessionManager.Shutdown()
}
