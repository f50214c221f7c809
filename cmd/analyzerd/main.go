package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/receipt-analyzer/internal/common"
	"github.com/joseph-ayodele/receipt-analyzer/internal/embed"
	"github.com/joseph-ayodele/receipt-analyzer/internal/export"
	"github.com/joseph-ayodele/receipt-analyzer/internal/history"
	"github.com/joseph-ayodele/receipt-analyzer/internal/index"
	"github.com/joseph-ayodele/receipt-analyzer/internal/llm"
	"github.com/joseph-ayodele/receipt-analyzer/internal/ocr"
	"github.com/joseph-ayodele/receipt-analyzer/internal/pipeline"
	"github.com/joseph-ayodele/receipt-analyzer/internal/server"
	"github.com/joseph-ayodele/receipt-analyzer/internal/validate"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	backend, err := index.NewBackend(ctx, cfg.Index, cfg.Embed.Dimension, logger)
	if err != nil {
		logger.Error("open index backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("close index backend", "error", err)
		}
	}()

	var embedder embed.Provider
	if cfg.Embed.APIKey == "" {
		logger.Warn("no embedding API key configured; using deterministic offline embedder")
		embedder = embed.NewMockProvider(cfg.Embed.Dimension)
	} else {
		embedder = embed.NewOpenAIProvider(cfg.Embed, logger)
	}

	idx := index.New(backend, embedder, cfg.Index, logger)
	historian := history.NewAggregator(idx, cfg.Index.VendorTopK, index.VendorExact, logger)
	exporter := export.NewService(historian, logger)

	completer := llm.NewClient(cfg.LLM, logger)
	processor := pipeline.NewProcessor(
		ocr.NewClient(cfg.OCR, logger),
		llm.NewExtractor(completer, cfg.LLM.Temperature, logger),
		validate.NewValidator(logger),
		idx,
		historian,
		pipeline.NewLLMPlanner(completer, logger),
		cfg.Pipeline.StageTimeout,
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(processor, idx, historian, exporter, logger).Router(),
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
}
