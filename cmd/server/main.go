package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contractextract/internal/analyzer"
	"contractextract/internal/api"
	"contractextract/internal/config"
	"contractextract/internal/llm"
	"contractextract/internal/rulepack"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	packs, err := rulepack.LoadDir(cfg.PackDir)
	if err != nil {
		log.Error("failed to load rule packs", "dir", cfg.PackDir, "error", err)
		os.Exit(1)
	}
	log.Info("rule packs loaded", "dir", cfg.PackDir, "count", len(packs))

	var client llm.Client
	var closeClient func()
	if cfg.AnthropicAPIKey != "" {
		c := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTimeout)
		client = c
		closeClient = c.Close
	} else {
		log.Warn("ANTHROPIC_API_KEY not set; LLM classification fallback and field extraction disabled")
	}

	a := analyzer.New(cfg, packs, client, log)
	srv := api.NewServer(a, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if closeClient != nil {
			closeClient()
		}
	}()

	log.Info("starting contractextract", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
