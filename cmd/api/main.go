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

	"github.com/joho/godotenv"

	"github.com/mitolab/soudan/backend/internal/config"
	"github.com/mitolab/soudan/backend/internal/handler"
	"github.com/mitolab/soudan/backend/internal/service/ai"
	"github.com/mitolab/soudan/backend/internal/service/chat"
	"github.com/mitolab/soudan/backend/internal/service/counsel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	chatService := chat.NewService()

	// The AI service degrades instead of failing: without credentials every
	// turn still gets a guidance reply telling the user what to configure.
	aiService := ai.Unconfigured()
	if cfg.AI.Enabled() {
		svc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing with guidance replies only - GEMINI_API_KEY / ARK_* 環境変数を確認してください")
		} else {
			aiService = svc
			log.Printf("AI service initialized (models=%v, streaming=%v)", cfg.AI.Models, svc.StreamingEnabled())
		}
	} else {
		log.Println("AIの認証情報が未設定のため、案内メッセージのみで起動します")
	}

	counselService := counsel.NewService(chatService, aiService)

	router := handler.NewRouter(chatService, counselService)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("soudan backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
