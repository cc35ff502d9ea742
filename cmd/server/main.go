package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/metacat-io/metacat/internal/auth"
	"github.com/metacat-io/metacat/internal/config"
	"github.com/metacat-io/metacat/internal/db"
	"github.com/metacat-io/metacat/internal/export"
	"github.com/metacat-io/metacat/internal/httpapi"
	"github.com/metacat-io/metacat/internal/middleware"
	"github.com/metacat-io/metacat/internal/repository"
	"github.com/metacat-io/metacat/internal/search"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	entityRepo := repository.NewEntityRepository(conn.Pool)
	versionRepo := repository.NewEntityVersionRepository(conn.Pool)

	checker, err := auth.NewChecker(auth.NewRoleCapabilityResolver(), 256)
	if err != nil {
		log.Fatalf("Failed to create capability checker: %v", err)
	}

	searchClient := search.NewClient(cfg.Search.URL, search.WithTimeout(cfg.Search.Timeout))

	exportService := export.NewService(entityRepo, export.WithExportDirectory(cfg.Export.Dir))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(
			middleware.LoggingMiddleware(
				middleware.PrincipalMiddleware(
					middleware.DataLoaderMiddleware(entityRepo)(h))))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/search", wrap(httpapi.NewSearchHandler(searchClient, checker)))
	mux.Handle("/api/v1/entities", wrap(httpapi.NewEntityHandler(entityRepo, versionRepo, checker)))
	mux.Handle("/api/v1/entities/", wrap(httpapi.NewEntityHandler(entityRepo, versionRepo, checker)))
	mux.Handle("/api/v1/exports", wrap(export.NewHTTPHandler(exportService, checker)))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting catalog API on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
