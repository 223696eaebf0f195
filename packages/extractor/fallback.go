package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"harvester/packages/domain"
	"harvester/packages/jsonfix"
)

const extractionSystemPrompt = "You extract review data from raw page text. " +
	"Respond with a single JSON object with the keys: title, content, rating " +
	"(number or null), category, subcategory, product, pros (array of strings), " +
	"cons (array of strings). Use empty strings or empty arrays for anything " +
	"you cannot find. Respond with JSON only."

// maxFallbackInput bounds the page text sent to the model.
const maxFallbackInput = 12000

type aiExtraction struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Rating      *float64 `json:"rating"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Product     string   `json:"product"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
}

// Completer is the slice of the LLM client the fallback needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Fallback backfills draft fields from an AI pass over the page's visible
// text. It only ever fills fields the structural parse left empty.
type Fallback struct {
	client Completer
}

func NewFallback(client Completer) *Fallback {
	return &Fallback{client: client}
}

func (f *Fallback) Enabled() bool {
	return f != nil && f.client != nil
}

func (f *Fallback) Backfill(ctx context.Context, draft *domain.ReviewDraft, pageText string) error {
	if !f.Enabled() {
		return fmt.Errorf("ai extraction not configured")
	}

	runes := []rune(pageText)
	if len(runes) > maxFallbackInput {
		pageText = string(runes[:maxFallbackInput])
	}

	raw, err := f.client.Complete(ctx, extractionSystemPrompt, pageText)
	if err != nil {
		return fmt.Errorf("ai extraction call: %w", err)
	}

	var extracted aiExtraction
	if err := jsonfix.Default.Unmarshal(raw, &extracted); err != nil {
		return fmt.Errorf("ai extraction parse: %w", err)
	}

	merged := 0
	if draft.Title == "" && extracted.Title != "" {
		draft.Title = extracted.Title
		merged++
	}
	if draft.Content == "" && extracted.Content != "" {
		draft.Content = extracted.Content
		merged++
	}
	if draft.Rating == nil && extracted.Rating != nil {
		draft.Rating = extracted.Rating
		merged++
	}
	if draft.CategoryName == "" && extracted.Category != "" {
		draft.CategoryName = extracted.Category
		merged++
	}
	if draft.SubcategoryName == "" && extracted.Subcategory != "" {
		draft.SubcategoryName = extracted.Subcategory
		merged++
	}
	if draft.ProductName == "" && extracted.Product != "" {
		draft.ProductName = extracted.Product
		merged++
	}
	if len(draft.Pros) == 0 && len(extracted.Pros) > 0 {
		draft.Pros = extracted.Pros
		merged++
	}
	if len(draft.Cons) == 0 && len(extracted.Cons) > 0 {
		draft.Cons = extracted.Cons
		merged++
	}

	slog.Debug("AI extraction backfill finished", "url", draft.SourceURL, "fields_merged", merged)
	return nil
}
