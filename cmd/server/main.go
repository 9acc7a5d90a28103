package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/internal/ai/gemini"
	"github.com/skomatsu/stella/internal/api"
	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/negotiation"
	"github.com/skomatsu/stella/internal/notify"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/storage/sqlite"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/internal/workflow"
	"github.com/skomatsu/stella/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Stella reception server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Daily database file under the configured base path
	today := time.Now().Format("2006-01-02")
	dbPath := filepath.Join(cfg.Storage.SQLiteBasePath, fmt.Sprintf("stella-%s.db", today))
	if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
		log.Error("Failed to create database directory",
			logger.String("path", cfg.Storage.SQLiteBasePath),
			logger.Error(err))
		os.Exit(1)
	}
	log.Info("Using daily database", logger.String("path", dbPath))

	sessionStorage, err := sqlite.NewSessionStorage(dbPath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer sessionStorage.Close()

	// Reception mode store seeded from config
	modes := config.NewModeStore(cfg.Reception)

	// Kiosk WebSocket hub
	hub := transport.NewHub(time.Duration(cfg.Reception.IdleResetSecs)*time.Second, log)
	go hub.Run()

	// Push channel to the remote responders
	var notifier notify.Notifier
	if cfg.Notifier.Enabled {
		notifier = notify.NewLineNotifier(
			cfg.Notifier.APIBaseURL,
			cfg.Notifier.AccessToken,
			time.Duration(cfg.Notifier.TimeoutSecs)*time.Second,
			log,
		)
	} else {
		log.Info("Push notifications disabled, pushes will only be logged")
		notifier = notify.NewNop(log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Language model collaborator, degraded word-list fallback without a key
	var classifier ai.IntentClassifier
	var extractor ai.Extractor
	if cfg.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
			Timeout:     time.Duration(cfg.Gemini.TimeoutSecs) * time.Second,
		}, log)
		if err != nil {
			log.Error("Failed to create Gemini client", logger.Error(err))
			os.Exit(1)
		}
		classifier = geminiClient
		extractor = geminiClient
	} else {
		log.Warn("No Gemini API key configured, using degraded classification")
		degraded := ai.NewDegraded(log)
		classifier = degraded
		extractor = degraded
	}

	// Session lifecycle with per-session transcript logs
	sessions := session.NewManager(sessionStorage, cfg.Storage.SessionLogDir, dialogue.ButtonTitles, log)

	// Availability negotiation against the remote parties
	negotiationStore := negotiation.NewStore(time.Duration(cfg.Negotiation.WindowSecs)*time.Second, log)
	negotiator := negotiation.NewNegotiator(
		negotiationStore,
		notifier,
		time.Duration(cfg.Negotiation.WindowSecs)*time.Second,
		cfg.Negotiation.Labels,
		log,
	)

	// Workflow controller and inbound message handler
	controller := workflow.NewController(workflow.Deps{
		Sessions:   sessions,
		Negotiator: negotiator,
		Notifier:   notifier,
		Classifier: classifier,
		Extractor:  extractor,
		Modes:      modes,
		Out:        hub,
		Parties: workflow.PartyDirectory{
			Primary:   cfg.Negotiation.Primary,
			Secondary: cfg.Negotiation.Secondary,
		},
		TurnTimeout: time.Duration(cfg.Reception.TurnTimeoutSecs) * time.Second,
		Logger:      log,
	})
	msgHandler := workflow.NewHandler(controller, sessions, modes, hub, log)
	hub.SetMessageHandler(msgHandler)
	hub.SetIdleFunc(msgHandler.HandleIdle)

	// HTTP surface: webhook, session inspection, /ws, static front-end
	allParties := append(append([]string{}, cfg.Negotiation.Primary...), cfg.Negotiation.Secondary...)
	apiHandler := api.NewHandler(sessions, sessionStorage, modes, hub, cfg, log)
	webhookHandler := api.NewWebhookHandler(negotiationStore, notifier, modes, allParties, cfg.Negotiation.Labels, log)
	router := api.NewRouter(apiHandler, webhookHandler, hub, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", addr), logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Close out any in-progress visitor session so its transcript and
	// database record are flushed
	controller.EndSession()

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
