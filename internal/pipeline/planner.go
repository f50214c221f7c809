package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-analyzer/internal/llm"
)

const plannerSystemPrompt = `You are a receipt-analysis planner. Given a receipt image to analyze, decide which operations to run and in what order.

Available operations:
- "extract": run OCR and structured-data extraction on the image (required before any other operation is useful)
- "validate": check the extracted receipt's arithmetic
- "find_similar": find similar past receipts; optional args: {"query": string, "limit": number}
- "vendor_history": summarize past receipts from the same vendor; optional args: {"vendor": string}

Return ONLY a JSON object: {"steps": [{"op": "...", "args": {...}}, ...]}. Omit "args" when defaults suffice.`

// LLMPlanner asks the text-generation provider for a plan. Anything it
// cannot parse falls back to the full default plan; planning failure must
// not fail the analysis.
type LLMPlanner struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewLLMPlanner(completer llm.Completer, logger *slog.Logger) *LLMPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{completer: completer, logger: logger}
}

func (p *LLMPlanner) BuildPlan(ctx context.Context, imagePath string) (Plan, error) {
	user := fmt.Sprintf("Plan the analysis of the receipt image at path: %s", imagePath)
	response, err := p.completer.Complete(ctx, plannerSystemPrompt, user, 0.1)
	if err != nil {
		return Plan{}, fmt.Errorf("planner completion: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(llm.ExtractJSONBlock(response)), &plan); err != nil {
		p.logger.Warn("planner.decode_failed", "error", err)
		return DefaultPlan(), nil
	}
	if len(plan.Steps) == 0 {
		return DefaultPlan(), nil
	}
	p.logger.Info("planner.ok", "steps", len(plan.Steps))
	return plan, nil
}

// StaticPlanner always returns the same plan. It backs offline runs and
// tests.
type StaticPlanner struct {
	plan Plan
}

func NewStaticPlanner(plan Plan) *StaticPlanner {
	return &StaticPlanner{plan: plan}
}

func (p *StaticPlanner) BuildPlan(ctx context.Context, imagePath string) (Plan, error) {
	_ = ctx
	_ = imagePath
	return p.plan, nil
}
