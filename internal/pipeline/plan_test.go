package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPlanner struct{}

func (failingPlanner) BuildPlan(context.Context, string) (Plan, error) {
	return Plan{}, errors.New("planner unavailable")
}

func TestAnalyzeSubsetPlan(t *testing.T) {
	ix := &fakeIndexer{id: "rid-1"}
	h := &fakeHistorian{}
	planner := NewStaticPlanner(Plan{Steps: []Step{
		{Op: OpExtract},
		{Op: OpFindSimilar},
	}})
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, ix, h, planner)

	result := p.Analyze(context.Background(), "/img/r.jpg")

	require.True(t, result.Success)
	assert.Equal(t, "rid-1", result.ReceiptID)
	assert.NotNil(t, result.Validation)
	assert.Equal(t, "Vendor: Corner Deli", ix.lastQuery)
	// steps the plan never scheduled stay zero-valued
	assert.Nil(t, result.VendorHistory)
	assert.Empty(t, h.lastVendor)
}

func TestAnalyzeFullPlanMatchesProcessShape(t *testing.T) {
	ix := &fakeIndexer{id: "rid-1"}
	h := &fakeHistorian{}
	planner := NewStaticPlanner(DefaultPlan())
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, ix, h, planner)

	analyzed := p.Analyze(context.Background(), "/img/r.jpg")
	processed := p.Process(context.Background(), "/img/r.jpg")

	require.True(t, analyzed.Success)
	require.True(t, processed.Success)
	assert.Equal(t, processed.ReceiptID, analyzed.ReceiptID)
	assert.Equal(t, processed.Validation.IsValid, analyzed.Validation.IsValid)
	assert.NotNil(t, analyzed.VendorHistory)
	assert.NotNil(t, processed.VendorHistory)
}

func TestAnalyzePlannerFailureFallsBackToDefaultPlan(t *testing.T) {
	ix := &fakeIndexer{id: "rid-1"}
	h := &fakeHistorian{}
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, ix, h, failingPlanner{})

	result := p.Analyze(context.Background(), "/img/r.jpg")

	require.True(t, result.Success)
	assert.Equal(t, "rid-1", result.ReceiptID)
	assert.NotNil(t, result.Validation)
	assert.NotNil(t, result.VendorHistory)
}

func TestAnalyzeEmptyPlanFallsBackToDefaultPlan(t *testing.T) {
	ix := &fakeIndexer{id: "rid-1"}
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, ix, &fakeHistorian{},
		NewStaticPlanner(Plan{}))

	result := p.Analyze(context.Background(), "/img/r.jpg")

	assert.True(t, result.Success)
	assert.Equal(t, "rid-1", result.ReceiptID)
}

func TestAnalyzeUnknownOpSkipped(t *testing.T) {
	ix := &fakeIndexer{id: "rid-1"}
	planner := NewStaticPlanner(Plan{Steps: []Step{
		{Op: OpExtract},
		{Op: "summon_accountant"},
	}})
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, ix, &fakeHistorian{}, planner)

	result := p.Analyze(context.Background(), "/img/r.jpg")

	assert.True(t, result.Success)
	assert.Equal(t, "rid-1", result.ReceiptID)
}

func TestAnalyzeValidateWithoutExtractSkipped(t *testing.T) {
	planner := NewStaticPlanner(Plan{Steps: []Step{{Op: OpValidate}}})
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, &fakeIndexer{}, &fakeHistorian{}, planner)

	result := p.Analyze(context.Background(), "/img/r.jpg")

	assert.True(t, result.Success)
	assert.Nil(t, result.Validation)
	assert.Nil(t, result.ReceiptData)
}

func TestAnalyzeStepFailure(t *testing.T) {
	planner := NewStaticPlanner(Plan{Steps: []Step{{Op: OpExtract}}})
	p := newTestProcessor(&fakeOCR{err: errors.New("boom")}, &fakeExtractor{data: extractionFixture()}, &fakeIndexer{}, &fakeHistorian{}, planner)

	result := p.Analyze(context.Background(), "/img/r.jpg")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "extract:")
}

func TestAnalyzeFindSimilarArgs(t *testing.T) {
	ix := &fakeIndexer{id: "rid-1"}
	planner := NewStaticPlanner(Plan{Steps: []Step{
		{Op: OpFindSimilar, Args: map[string]any{"query": "coffee shops", "limit": 7.0}},
	}})
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, ix, &fakeHistorian{}, planner)

	result := p.Analyze(context.Background(), "/img/r.jpg")

	assert.True(t, result.Success)
	assert.Equal(t, "coffee shops", ix.lastQuery)
	assert.Equal(t, 7, ix.lastLimit)
}

func TestAnalyzeVendorHistoryArg(t *testing.T) {
	h := &fakeHistorian{}
	planner := NewStaticPlanner(Plan{Steps: []Step{
		{Op: OpVendorHistory, Args: map[string]any{"vendor": "Blue Bottle"}},
	}})
	p := newTestProcessor(&fakeOCR{text: "txt"}, &fakeExtractor{data: extractionFixture()}, &fakeIndexer{}, h, planner)

	result := p.Analyze(context.Background(), "/img/r.jpg")

	assert.True(t, result.Success)
	assert.Equal(t, "Blue Bottle", h.lastVendor)
	require.NotNil(t, result.VendorHistory)
}

func TestLLMPlannerParsesResponse(t *testing.T) {
	completer := &plannerCompleter{response: `{"steps": [{"op": "extract"}, {"op": "find_similar", "args": {"limit": 2}}]}`}
	planner := NewLLMPlanner(completer, nil)

	plan, err := planner.BuildPlan(context.Background(), "/img/r.jpg")

	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, OpExtract, plan.Steps[0].Op)
	assert.Equal(t, OpFindSimilar, plan.Steps[1].Op)
}

func TestLLMPlannerGarbageFallsBack(t *testing.T) {
	planner := NewLLMPlanner(&plannerCompleter{response: "I cannot plan this."}, nil)

	plan, err := planner.BuildPlan(context.Background(), "/img/r.jpg")

	require.NoError(t, err)
	assert.Equal(t, DefaultPlan(), plan)
}

type plannerCompleter struct {
	response string
}

func (c *plannerCompleter) Complete(context.Context, string, string, float32) (string, error) {
	return c.response, nil
}
