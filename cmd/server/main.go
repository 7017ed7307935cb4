package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tandemhq/tandem/backend/internal/api"
	"github.com/tandemhq/tandem/backend/internal/auth"
	"github.com/tandemhq/tandem/backend/internal/board"
	"github.com/tandemhq/tandem/backend/internal/config"
	"github.com/tandemhq/tandem/backend/internal/db"
	"github.com/tandemhq/tandem/backend/internal/presence"
	"github.com/tandemhq/tandem/backend/internal/ratelimit"
	"github.com/tandemhq/tandem/backend/internal/snapshot"
	"github.com/tandemhq/tandem/backend/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Getenv("TANDEM_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	store := board.NewStore()
	registry := presence.NewRegistry()

	var gate auth.Gate = auth.AllowAll{}
	if !cfg.Auth.AllowAnonymous {
		gate = db.NewMemberGate(database)
	}

	hub := ws.NewHub(store, registry, gate, nil)
	go hub.Run()

	snapshotter := snapshot.New(store, database, snapshot.Config{Interval: cfg.Snapshot.Interval})
	if cfg.Snapshot.Enabled {
		if err := snapshotter.RestoreAll(); err != nil {
			log.Printf("Failed to restore boards: %v", err)
		}
		snapshotter.Start()
	}

	limiters := ratelimit.NewPerKey(cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.Burst)

	apiHandler := api.New(hub, store, database)

	// WebSocket endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, limiters, w, r)
	})

	http.HandleFunc("/health", apiHandler.HealthHandler)
	http.HandleFunc("/api/stats", apiHandler.StatsHandler)
	http.HandleFunc("/api/boards", apiHandler.BoardsRouter)
	http.HandleFunc("/api/boards/", apiHandler.BoardsRouter)
	http.HandleFunc("/api/workspaces", apiHandler.WorkspaceListHandler)
	http.HandleFunc("/api/workspaces/", apiHandler.WorkspacesRouter)

	// Apply CORS middleware
	handler := corsMiddleware(http.DefaultServeMux)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		if cfg.Snapshot.Enabled {
			snapshotter.Stop()
		}
		database.Close()
		os.Exit(0)
	}()

	log.Printf("Tandem whiteboard server starting on :%s", cfg.Port)
	log.Printf("Database: %s", cfg.DBPath)
	log.Println("Endpoints:")
	log.Println("  - WebSocket:  /ws?token={authToken}")
	log.Println("  - Health:     GET /health")
	log.Println("  - Stats:      GET /api/stats")
	log.Println("  - Boards:     GET /api/boards")
	log.Println("  - Board:      GET/DELETE /api/boards/{workspaceId}")
	log.Println("  - Workspaces: GET /api/workspaces")
	log.Println("  - Members:    GET/POST/DELETE /api/workspaces/{id}/members")

	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
