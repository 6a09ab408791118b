// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/memberhub/registration-service/internal/clock"
	"github.com/memberhub/registration-service/internal/config"
	"github.com/memberhub/registration-service/internal/database"
	"github.com/memberhub/registration-service/internal/handler"
	"github.com/memberhub/registration-service/internal/notify"
	"github.com/memberhub/registration-service/internal/repository"
	"github.com/memberhub/registration-service/internal/service"
	"github.com/memberhub/registration-service/migrations"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// ── 1. Connect to PostgreSQL and apply migrations ─────────────────────
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	log.Println("connected to postgres")

	if err := migrations.Apply(pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	clk := clock.NewSystem()
	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	notifier := notify.NewLogNotifier(nil)

	eventSvc := service.NewEventService(eventRepo, clk)
	regSvc := service.NewRegistrationService(eventRepo, regRepo, notifier, clk)
	h := handler.New(eventSvc, regSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS
	r.Use(handler.Identity)        // caller identity from X-User-ID

	h.Routes(r)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
