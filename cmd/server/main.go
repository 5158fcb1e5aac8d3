package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	srsmap "github.com/aayushanand1411/srsmap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// .env is optional; real environment wins.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg := srsmap.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("SRSMAP_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SRSMAP_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("SRSMAP_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("SRSMAP_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("SRSMAP_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("SRSMAP_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("SRSMAP_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("SRSMAP_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("SRSMAP_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("SRSMAP_VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}

	apiKey := os.Getenv("SRSMAP_API_KEY")
	corsOrigins := os.Getenv("SRSMAP_CORS_ORIGINS")

	engine, err := srsmap.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(corsMiddleware(corsOrigins))
	r.Use(authMiddleware(apiKey))
	r.Use(logMiddleware)

	r.Get("/health", h.handleHealth)
	r.Get("/stats", h.handleStats)

	r.Post("/documents", h.handleMapDocument)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.handleListRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetRun)
			r.Delete("/", h.handleDeleteRun)
			r.Post("/verify", h.handleVerify)
			r.Get("/report", h.handleReport)
			r.Get("/export.json", h.handleExportJSON)
			r.Get("/export.csv", h.handleExportCSV)
			r.Get("/export.xlsx", h.handleExportXLSX)
		})
	})

	r.Route("/questions", func(r chi.Router) {
		r.Get("/", h.handleListQuestions)
		r.Post("/", h.handleAddQuestion)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetQuestion)
			r.Put("/", h.handleUpdateQuestion)
			r.Delete("/", h.handleDeleteQuestion)
		})
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // mapping and verification can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
