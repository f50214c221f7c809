package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// Operation names a step the planner may schedule.
const (
	OpExtract       = "extract"
	OpValidate      = "validate"
	OpFindSimilar   = "find_similar"
	OpVendorHistory = "vendor_history"
)

// Step is one planned operation with its arguments.
type Step struct {
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`
}

// Plan is an ordered sequence of steps selected by an external planner.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Planner decides the call sequence for the Analyze path. It is an external
// collaborator; the orchestrator only executes what it returns.
type Planner interface {
	BuildPlan(ctx context.Context, imagePath string) (Plan, error)
}

// DefaultPlan covers the full operation set in the canonical order. It is
// the fallback when the planner produces nothing usable.
func DefaultPlan() Plan {
	return Plan{Steps: []Step{
		{Op: OpExtract},
		{Op: OpValidate},
		{Op: OpFindSimilar},
		{Op: OpVendorHistory},
	}}
}

// Analyze runs the plan-driven path: the planner picks a subset and order of
// the fixed operation set, the dispatcher executes each step and merges its
// named output into the shared Result. Unknown operations are logged and
// skipped; operations the plan never scheduled leave their Result fields
// zero-valued.
func (p *Processor) Analyze(ctx context.Context, imagePath string) Result {
	p.logger.Info("pipeline.analyze.start", "image_path", imagePath)

	plan, err := p.planner.BuildPlan(ctx, imagePath)
	if err != nil {
		p.logger.Warn("pipeline.analyze.plan_failed", "error", err)
		plan = DefaultPlan()
	}
	if len(plan.Steps) == 0 {
		plan = DefaultPlan()
	}

	var result Result
	for _, step := range plan.Steps {
		if err := p.dispatch(ctx, imagePath, step, &result); err != nil {
			p.logger.Error("pipeline.analyze.step_failed", "op", step.Op, "error", err)
			return Result{Success: false, Error: fmt.Sprintf("%s: %v", step.Op, err)}
		}
	}

	result.Success = true
	p.logger.Info("pipeline.analyze.ok", "image_path", imagePath, "steps", len(plan.Steps))
	return result
}

func (p *Processor) dispatch(ctx context.Context, imagePath string, step Step, result *Result) error {
	switch step.Op {
	case OpExtract:
		data, receiptID, _, validation, err := p.extractAndIngest(ctx, imagePath)
		if err != nil {
			return err
		}
		result.ReceiptData = data
		result.ReceiptID = receiptID
		// validation comes for free with extraction; an explicit validate
		// step recomputes it over the current data
		if result.Validation == nil {
			result.Validation = validation
		}
		return nil

	case OpValidate:
		if result.ReceiptData == nil {
			p.logger.Warn("pipeline.analyze.validate_without_extract")
			return nil
		}
		v := p.validator.Validate(result.ReceiptData)
		result.Validation = &v
		return nil

	case OpFindSimilar:
		query := stringArg(step.Args, "query")
		if query == "" {
			query = "Vendor: " + p.vendorOf(result)
		}
		limit := intArg(step.Args, "limit", 3)
		stageCtx, cancel := p.stage(ctx)
		defer cancel()
		result.SimilarReceipts = p.indexer.QuerySimilar(stageCtx, query, limit)
		return nil

	case OpVendorHistory:
		vendor := stringArg(step.Args, "vendor")
		if vendor == "" {
			vendor = p.vendorOf(result)
		}
		stageCtx, cancel := p.stage(ctx)
		defer cancel()
		summary := p.historian.History(stageCtx, vendor)
		result.VendorHistory = &summary
		return nil

	default:
		p.logger.Warn("pipeline.analyze.unknown_op", "op", step.Op)
		return nil
	}
}

func (p *Processor) vendorOf(result *Result) string {
	if result.ReceiptData != nil {
		if v, ok := result.ReceiptData["vendor"].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intArg(args map[string]any, key string, fallback int) int {
	if args == nil {
		return fallback
	}
	switch t := args[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	default:
		return fallback
	}
}
