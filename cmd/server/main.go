package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vcruvinelr/share-notes/internal/api"
	"github.com/vcruvinelr/share-notes/internal/auth"
	"github.com/vcruvinelr/share-notes/internal/config"
	"github.com/vcruvinelr/share-notes/internal/db"
	"github.com/vcruvinelr/share-notes/internal/repository"
	"github.com/vcruvinelr/share-notes/internal/services/collaboration"
	"github.com/vcruvinelr/share-notes/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("🚀 Starting SyncPad collaboration server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing first so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("syncpad", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Relational store: users, note metadata, permissions
	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Document store: note content + operation log
	mongoDB, err := db.NewMongo(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Close(ctx); err != nil {
			log.Printf("⚠️  Failed to disconnect MongoDB: %v", err)
		}
	}()

	// Redis is optional; it only carries cross-process invalidations.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		log.Println("✓ Redis client initialized")
	}

	// Repositories
	userRepo := repository.NewUserRepository(database.DB)
	noteRepo := repository.NewNoteRepository(database.DB)
	contentRepo := repository.NewContentRepository(mongoDB.Database)

	// Content cache mirrors live note text over the document store
	cache := collaboration.NewContentCache(func(ctx context.Context, noteID string) (string, error) {
		note, err := noteRepo.GetByID(ctx, noteID)
		if err != nil {
			return "", err
		}
		return contentRepo.GetContent(ctx, note.ContentID)
	})

	// Session registry; an emptied session drops its cached mirror
	registry := collaboration.NewRegistry(cache.Invalidate)

	applier := collaboration.NewApplier(noteRepo, contentRepo, cache, registry)
	resolver := auth.NewTokenResolver(userRepo, cfg.JWTSecret)
	gateway := collaboration.NewGateway(resolver, noteRepo, registry, cache, applier, cfg.SendBufferSize)

	invalidator := collaboration.NewInvalidator(rdb, cache)
	invalidator.Start(context.Background())
	defer invalidator.Stop()

	// REST surface + routes
	handler := api.NewHandler(noteRepo, userRepo, contentRepo, resolver, invalidator, registry, gateway.HandleNoteConnection)
	router := api.SetupRoutes(handler)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived WebSocket sessions.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   GET    /api/me                      - Resolve caller identity")
		log.Printf("   POST   /api/notes                   - Create note")
		log.Printf("   GET    /api/notes                   - List notes")
		log.Printf("   GET    /api/notes/:id               - Get note")
		log.Printf("   PUT    /api/notes/:id               - Update note (invalidates live mirrors)")
		log.Printf("   DELETE /api/notes/:id               - Delete note")
		log.Printf("   POST   /api/notes/:id/share         - Mint share link")
		log.Printf("   POST   /api/notes/:id/permissions   - Grant explicit permission")
		log.Printf("   GET    /api/notes/:id/operations    - Edit history")
		log.Printf("   GET    /api/notes/:id/participants  - Live presence")
		log.Printf("   WS     /ws/notes/:id                - Real-time collaboration")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Detach every live session so connections close cleanly
	registry.Shutdown()

	log.Println("✓ Server shutdown complete")
}
