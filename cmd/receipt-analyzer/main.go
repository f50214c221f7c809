package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/receipt-analyzer/internal/common"
	"github.com/joseph-ayodele/receipt-analyzer/internal/embed"
	"github.com/joseph-ayodele/receipt-analyzer/internal/export"
	"github.com/joseph-ayodele/receipt-analyzer/internal/history"
	"github.com/joseph-ayodele/receipt-analyzer/internal/index"
	"github.com/joseph-ayodele/receipt-analyzer/internal/llm"
	"github.com/joseph-ayodele/receipt-analyzer/internal/ocr"
	"github.com/joseph-ayodele/receipt-analyzer/internal/pipeline"
	"github.com/joseph-ayodele/receipt-analyzer/internal/validate"
)

const usage = `usage: receipt-analyzer <command> [args]

commands:
  process <image>            run the direct pipeline on a receipt image
  analyze <image>            run the plan-driven pipeline on a receipt image
  similar <query> [limit]    find receipts similar to a free-text query
  history <vendor>           summarize a vendor's receipt history
  export <vendor> <out.xlsx> export a vendor's history as a workbook
`

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger, command string, args []string) error {
	backend, err := index.NewBackend(ctx, cfg.Index, cfg.Embed.Dimension, logger)
	if err != nil {
		return fmt.Errorf("open index backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("close index backend", "error", err)
		}
	}()

	embedder := newEmbedder(cfg, logger)
	idx := index.New(backend, embedder, cfg.Index, logger)
	historian := history.NewAggregator(idx, cfg.Index.VendorTopK, index.VendorExact, logger)

	completer := llm.NewClient(cfg.LLM, logger)
	extractor := llm.NewExtractor(completer, cfg.LLM.Temperature, logger)
	validator := validate.NewValidator(logger)
	planner := pipeline.NewLLMPlanner(completer, logger)
	processor := pipeline.NewProcessor(
		ocr.NewClient(cfg.OCR, logger),
		extractor, validator, idx, historian, planner,
		cfg.Pipeline.StageTimeout, logger,
	)

	switch command {
	case "process":
		if len(args) < 1 {
			return fmt.Errorf("process: image path required")
		}
		return printJSON(processor.Process(ctx, args[0]))

	case "analyze":
		if len(args) < 1 {
			return fmt.Errorf("analyze: image path required")
		}
		return printJSON(processor.Analyze(ctx, args[0]))

	case "similar":
		if len(args) < 1 {
			return fmt.Errorf("similar: query required")
		}
		limit := 0
		if len(args) > 1 {
			limit, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("similar: invalid limit %q", args[1])
			}
		}
		return printJSON(idx.QuerySimilar(ctx, args[0], limit))

	case "history":
		if len(args) < 1 {
			return fmt.Errorf("history: vendor required")
		}
		return printJSON(historian.History(ctx, args[0]))

	case "export":
		if len(args) < 2 {
			return fmt.Errorf("export: vendor and output path required")
		}
		svc := export.NewService(historian, logger)
		data, err := svc.ExportVendorHistoryXLSX(ctx, args[0])
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		logger.Info("workbook written", "path", args[1], "bytes", len(data))
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func newEmbedder(cfg *common.Config, logger *slog.Logger) embed.Provider {
	if cfg.Embed.APIKey == "" {
		logger.Warn("no embedding API key configured; using deterministic offline embedder")
		return embed.NewMockProvider(cfg.Embed.Dimension)
	}
	return embed.NewOpenAIProvider(cfg.Embed, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
