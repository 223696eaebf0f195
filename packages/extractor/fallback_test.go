package extractor

import (
	"context"
	"strings"
	"testing"

	"harvester/packages/domain"
)

type stubCompleter struct {
	response string
	calls    int
	lastUser string
}

func (s *stubCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.calls++
	s.lastUser = user
	return s.response, nil
}

func TestBackfillOnlyFillsEmptyFields(t *testing.T) {
	stub := &stubCompleter{response: `{
		"title": "AI title",
		"content": "AI content body",
		"rating": 3.0,
		"category": "Electronics",
		"product": "AI Product"
	}`}
	f := NewFallback(stub)

	rating := 4.5
	draft := domain.ReviewDraft{
		Title:   "Structural title",
		Rating:  &rating,
		Content: "",
	}
	if err := f.Backfill(context.Background(), &draft, "page text"); err != nil {
		t.Fatalf("Backfill: %v", err)
	}

	if draft.Title != "Structural title" {
		t.Errorf("title overwritten: %q", draft.Title)
	}
	if *draft.Rating != 4.5 {
		t.Errorf("rating overwritten: %v", *draft.Rating)
	}
	if draft.Content != "AI content body" {
		t.Errorf("empty content not backfilled: %q", draft.Content)
	}
	if draft.CategoryName != "Electronics" {
		t.Errorf("empty category not backfilled: %q", draft.CategoryName)
	}
	if draft.ProductName != "AI Product" {
		t.Errorf("empty product not backfilled: %q", draft.ProductName)
	}
}

func TestBackfillSurvivesFencedResponse(t *testing.T) {
	stub := &stubCompleter{response: "```json\n{\"title\": \"Fenced\"}\n```"}
	f := NewFallback(stub)

	draft := domain.ReviewDraft{}
	if err := f.Backfill(context.Background(), &draft, "page text"); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if draft.Title != "Fenced" {
		t.Errorf("title = %q", draft.Title)
	}
}

func TestBackfillClampsInput(t *testing.T) {
	stub := &stubCompleter{response: `{}`}
	f := NewFallback(stub)

	long := strings.Repeat("ж", maxFallbackInput+500)
	draft := domain.ReviewDraft{}
	if err := f.Backfill(context.Background(), &draft, long); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if got := len([]rune(stub.lastUser)); got != maxFallbackInput {
		t.Errorf("prompt length = %d runes, want %d", got, maxFallbackInput)
	}
}

func TestBackfillUnparseableResponse(t *testing.T) {
	stub := &stubCompleter{response: "I could not find a review on that page."}
	f := NewFallback(stub)

	draft := domain.ReviewDraft{Title: "kept"}
	if err := f.Backfill(context.Background(), &draft, "page text"); err == nil {
		t.Fatal("expected parse error")
	}
	if draft.Title != "kept" {
		t.Errorf("draft mutated on failure: %q", draft.Title)
	}
}

func TestBackfillDisabledWithoutClient(t *testing.T) {
	var f *Fallback
	if f.Enabled() {
		t.Fatal("nil fallback reports enabled")
	}
	f = NewFallback(nil)
	if f.Enabled() {
		t.Fatal("fallback without client reports enabled")
	}
}
