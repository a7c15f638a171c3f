package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"piggy-appointment-api/internal/config"
	"piggy-appointment-api/internal/handler"
	"piggy-appointment-api/internal/middleware"
	"piggy-appointment-api/internal/push"
	"piggy-appointment-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	log.Println("connected to postgres")

	// run migrations
	if migration, err := os.ReadFile(cfg.MigrationsPath); err != nil {
		log.Printf("migration file not found, skipping: %v", err)
	} else if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
		log.Printf("migration warning: %v", err)
	} else {
		log.Println("migration applied")
	}

	st := store.New(pool)

	// push is optional; the service degrades to no notifications
	var ps *push.Service
	if cfg.FirebaseCredentialsPath != "" {
		ps, err = push.New(context.Background(), cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Printf("push disabled: %v", err)
			ps = nil
		}
	}

	h := handler.New(st, ps, cfg.JWTSecret, cfg.Location())
	rl := middleware.NewRateLimiter(cfg.AuthRateRPS, cfg.AuthRateBurst)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h.Router(rl),
	}
	go func() {
		log.Printf("http on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Println("shutting down")
	_ = srv.Shutdown(context.Background())
}
