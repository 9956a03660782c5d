package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/peerdrill/interview-app/internal/config"
	"github.com/peerdrill/interview-app/internal/handoff"
	"github.com/peerdrill/interview-app/internal/matching"
	"github.com/peerdrill/interview-app/internal/messaging"
	"github.com/peerdrill/interview-app/internal/metrics"
	"github.com/peerdrill/interview-app/internal/presence"
	"github.com/peerdrill/interview-app/internal/session"
)

// sessionEndedNotice is the teardown payload published by the signaling layer
// when an interview room closes.
type sessionEndedNotice struct {
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
}

func main() {
	cfg, err := config.LoadMatcher()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	log.Printf("PeerDrill matcher starting")
	log.Printf("  http_addr:  %s", cfg.HTTPAddr)
	log.Printf("  nats_url:   %s", cfg.NATSURL)
	log.Printf("  redis_addr: %s", cfg.RedisAddr)
	log.Printf("  accept_timeout: %s  heartbeat_timeout: %s  sweep_interval: %s",
		cfg.AcceptTimeout, cfg.HeartbeatTimeout, cfg.SweepInterval)

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "peerdrill-matcher"
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Redis holds the room registry handed to the signaling layer.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	pingCancel()
	rooms := presence.NewRooms(redisClient)

	// Postgres holds the durable interview sessions.
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to open Postgres: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping Postgres: %v", err)
	}
	if err := session.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	sessionStore := session.NewStore(db)

	handoffSvc := handoff.NewService(sessionStore, rooms, cfg.RoomTokenSecret)

	pool := matching.NewPool()
	notifier := matching.NewNATSNotifier(natsClient)
	coord := matching.NewCoordinator(pool, notifier, handoffSvc, matching.CoordinatorConfig{
		AcceptTimeout:    cfg.AcceptTimeout,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
	})

	svc := matching.NewService(coord, natsClient, matching.SweepConfig{Interval: cfg.SweepInterval})
	if err := svc.Start(); err != nil {
		log.Fatalf("failed to start matching service: %v", err)
	}

	// Room teardown: mark the session completed and drop the room entry.
	err = natsClient.SubscribeSessionEnded(func(data []byte) {
		var notice sessionEndedNotice
		if err := json.Unmarshal(data, &notice); err != nil {
			log.Printf("[matcher] invalid session.ended notice: %v", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sessionStore.UpdateStatus(ctx, notice.SessionID, session.StatusCompleted); err != nil {
			log.Printf("[matcher] mark session %s completed: %v", notice.SessionID, err)
		}
		if notice.RoomID != "" {
			if err := rooms.Delete(ctx, notice.RoomID); err != nil {
				log.Printf("[matcher] delete room %s: %v", notice.RoomID, err)
			}
		}
		log.Printf("[matcher] session %s ended", notice.SessionID)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to session.ended: %v", err)
	}

	// HTTP surface: health, stats, Prometheus metrics.
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{
			"queue_size":      coord.QueueSize(),
			"pending_matches": coord.PendingCount(),
		})
	})

	r.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		log.Printf("[matcher] http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	svc.Stop()
	natsClient.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("postgres close error: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	log.Printf("[matcher] stopped")
}
