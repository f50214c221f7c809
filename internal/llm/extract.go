package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/receipt-analyzer/constants"
)

const extractSystemPrompt = `You are an expert receipt analyzer. Extract structured data from receipt text.
Extract the following information:
- Vendor name
- Date (in YYYY-MM-DD format)
- List of items with name, price, and quantity if available
- Subtotal (if present)
- Tax amount (if present)
- Total amount

Return the data as a JSON object with these keys: vendor, date, items, subtotal, tax, total.
For items, use an array of objects with keys: name, price, quantity.
If information is missing or unclear, use null for that field.`

const classifySystemPromptTemplate = `You are an expert expense classifier. Classify each item into one of these categories:
%s

Return a JSON array with categories in the same order as the input items.`

const validateSystemPrompt = `You are an expert receipt validator. Check the receipt data for consistency and errors.
Specifically:
1. Verify that the total matches the sum of items (accounting for tax and subtotal if present)
2. Look for any unreasonable values (e.g., extremely high prices, negative values)
3. Suggest corrections for any issues found

Return a JSON object with these keys:
- valid: boolean indicating if the receipt is valid
- corrections: array of strings describing corrections
- corrected_data: the corrected receipt data (same format as input)`

// Extractor turns raw OCR text into the pre-entity receipt map and
// classifies line items into expense categories.
type Extractor struct {
	completer   Completer
	temperature float32
	logger      *slog.Logger
}

func NewExtractor(completer Completer, temperature float32, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: completer, temperature: temperature, logger: logger}
}

// ExtractReceipt asks the model for structured receipt data and returns the
// normalized map form. Parsing failure never fails the pipeline: the
// minimal default record is substituted instead.
func (e *Extractor) ExtractReceipt(ctx context.Context, ocrText string) map[string]any {
	response, err := e.completer.Complete(ctx, extractSystemPrompt,
		"Extract data from this receipt text:\n\n"+ocrText, e.temperature)
	if err != nil {
		e.logger.Error("llm.extract.failed", "error", err)
		return DefaultExtraction(ocrText)
	}

	candidate := ExtractJSONBlock(response)
	var m map[string]any
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		e.logger.Warn("llm.extract.decode_failed", "error", err, "response_len", len(response))
		return DefaultExtraction(ocrText)
	}

	schema := BuildReceiptJSONSchema()
	doc, _ := json.Marshal(m)
	if err := ValidateJSONAgainstSchema(schema, doc); err != nil {
		// Lenient pass: drop null/unknown offenders and re-validate.
		dropped := SanitizeExtraction(m)
		m = NormalizeExtraction(m, ocrText)
		doc, _ = json.Marshal(m)
		if vErr := ValidateJSONAgainstSchema(schema, doc); vErr != nil {
			e.logger.Warn("llm.extract.schema_validation_failed", "error", vErr, "dropped", dropped)
			return DefaultExtraction(ocrText)
		}
		e.logger.Warn("llm.extract.lenient_sanitize_applied", "dropped", dropped)
		return m
	}

	return NormalizeExtraction(m, ocrText)
}

// ValidateReceipt asks the model to check the extraction for consistency and
// substitutes its corrected data when it offers any, recording the verdict
// under the "validation" key. Failure returns the input unchanged; like
// classification it is an enrichment, not a gate. The arithmetic check stays
// with the calculation validator.
func (e *Extractor) ValidateReceipt(ctx context.Context, data map[string]any) map[string]any {
	payload, _ := json.Marshal(data)
	response, err := e.completer.Complete(ctx, validateSystemPrompt,
		"Validate this receipt data:\n\n"+string(payload), e.temperature)
	if err != nil {
		e.logger.Warn("llm.validate.failed", "error", err)
		return data
	}

	var verdict struct {
		Valid         *bool          `json:"valid"`
		Corrections   []string       `json:"corrections"`
		CorrectedData map[string]any `json:"corrected_data"`
	}
	if err := json.Unmarshal([]byte(ExtractJSONBlock(response)), &verdict); err != nil {
		e.logger.Warn("llm.validate.decode_failed", "error", err)
		return data
	}

	out := data
	if verdict.CorrectedData != nil {
		out = verdict.CorrectedData
	}
	valid := true
	if verdict.Valid != nil {
		valid = *verdict.Valid
	}
	corrections := verdict.Corrections
	if corrections == nil {
		corrections = []string{}
	}
	out["validation"] = map[string]any{"valid": valid, "corrections": corrections}
	e.logger.Info("llm.validate.ok", "valid", valid, "corrections", len(corrections))
	return out
}

// ClassifyExpenses assigns an expense category to each item, keeping input
// order. Classification failure returns the data unchanged; it is an
// enrichment, not a gate.
func (e *Extractor) ClassifyExpenses(ctx context.Context, data map[string]any) map[string]any {
	items, ok := data["items"].([]any)
	if !ok || len(items) == 0 {
		e.logger.Debug("llm.classify.no_items")
		return data
	}

	names := make([]string, 0, len(items))
	for _, raw := range items {
		if item, ok := raw.(map[string]any); ok {
			if name, ok := item["name"].(string); ok {
				names = append(names, name)
				continue
			}
		}
		names = append(names, "")
	}
	payload, _ := json.Marshal(names)

	system := fmt.Sprintf(classifySystemPromptTemplate,
		"- "+strings.Join(constants.AsStringSlice(), "\n- "))
	response, err := e.completer.Complete(ctx, system,
		"Classify these receipt items:\n\n"+string(payload), e.temperature)
	if err != nil {
		e.logger.Warn("llm.classify.failed", "error", err)
		return data
	}

	var categories []string
	if err := json.Unmarshal([]byte(ExtractJSONBlock(response)), &categories); err != nil {
		e.logger.Warn("llm.classify.decode_failed", "error", err)
		return data
	}

	for i, category := range categories {
		if i >= len(items) {
			break
		}
		item, ok := items[i].(map[string]any)
		if !ok {
			continue
		}
		canon, _ := constants.Canonicalize(category)
		item["category"] = string(canon)
	}
	e.logger.Info("llm.classify.ok", "items", len(items), "categories", len(categories))
	return data
}
