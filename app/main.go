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

	"github.com/trprince/rss-slicer/app/api"
	"github.com/trprince/rss-slicer/app/cfg"
	"github.com/trprince/rss-slicer/app/config"
	"github.com/trprince/rss-slicer/app/database"
	"github.com/trprince/rss-slicer/app/feed"
	"github.com/trprince/rss-slicer/app/tasks"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was requested, exit gracefully
		return
	}

	log.Println("Starting RSS Slicer server...")

	// Database connection
	log.Printf("Opening database at %s...", appCfg.DBPath)
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Printf("Database ready (schema version %d, dirty: %v)", version, dirty)

	// Load source, slice, and link configurations
	configCache := config.NewCache(appCfg.SourcesDir, appCfg.SlicesDir, appCfg.LinksFile)
	if err := configCache.Run(); err != nil {
		log.Fatal("Failed to load configurations:", err)
	}
	log.Printf("Loaded %d source and %d slice configurations",
		configCache.SourceCount(), configCache.SliceCount())

	// Initialize repositories
	feedRepo := database.NewFeedRepository(db)
	itemRepo := database.NewItemRepository(db)
	outputRepo := database.NewOutputRepository(db)

	// Initialize core components
	httpClient := &http.Client{}
	parser := feed.NewParser()
	adapter := feed.NewAdapter()
	extractor := feed.NewContentExtractor()

	// Initialize and start scheduler
	log.Printf("Starting background scheduler with %d workers...", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(configCache, feedRepo, itemRepo, outputRepo,
		httpClient, parser, adapter, extractor)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP server
	apiHandler := api.NewHandler(configCache, feedRepo, itemRepo, outputRepo, scheduler)
	server := api.NewServer(apiHandler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		log.Printf("Endpoints available:")
		log.Printf("  Slice:         http://localhost:%s/slices/<name>", appCfg.Port)
		log.Printf("  Health check:  http://localhost:%s/health", appCfg.Port)
		log.Printf("  Statistics:    http://localhost:%s/stats", appCfg.Port)

		if appCfg.APIAccessKey != "" {
			log.Printf("  List slices:   http://localhost:%s/api/slices (requires API key)", appCfg.Port)
			log.Printf("  Slice details: http://localhost:%s/api/slices/<name>/details (requires API key)", appCfg.Port)
			log.Printf("  Reslice:       http://localhost:%s/api/reslice (POST, requires API key)", appCfg.Port)
		} else {
			log.Printf("  API endpoints: DISABLED (API_ACCESS_KEY not set)")
		}

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("RSS Slicer server started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	log.Println("RSS Slicer server shutdown complete")
}
