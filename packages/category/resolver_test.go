package category

import (
	"context"
	"errors"
	"testing"

	"harvester/packages/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func knownCategories() []domain.Category {
	return []domain.Category{
		{ID: 1, Name: "Electronics", SourceURL: "https://source.example/cat/electronics"},
		{ID: 2, Name: "Smartphones", SourceURL: "https://source.example/cat/smartphones", ParentID: int64Ptr(1)},
		{ID: 3, Name: "Cosmetics", SourceURL: "https://source.example/cat/cosmetics"},
	}
}

type fakeMatcher struct {
	calls  int
	result string
	ok     bool
	err    error
}

func (m *fakeMatcher) Match(_ context.Context, _ string, _ []string) (string, bool, error) {
	m.calls++
	return m.result, m.ok, m.err
}

func TestResolve_URLMatch(t *testing.T) {
	matcher := &fakeMatcher{}
	r := NewResolver(knownCategories(), matcher, nil)

	match, err := r.Resolve(context.Background(), domain.ReviewDraft{
		CategoryName:    "Unrecognized label",
		CategoryURL:     "https://source.example/cat/electronics",
		SubcategoryName: "Unrecognized too",
		SubcategoryURL:  "https://source.example/cat/smartphones",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if match.CategoryID != 1 {
		t.Errorf("Expected category 1, got %d", match.CategoryID)
	}
	if match.SubcategoryID == nil || *match.SubcategoryID != 2 {
		t.Errorf("Expected subcategory 2, got %v", match.SubcategoryID)
	}
	if matcher.calls != 0 {
		t.Errorf("URL match must not invoke the semantic matcher, got %d calls", matcher.calls)
	}
}

func TestResolve_NameMatchSkipsSemantic(t *testing.T) {
	matcher := &fakeMatcher{}
	r := NewResolver(knownCategories(), matcher, nil)

	match, err := r.Resolve(context.Background(), domain.ReviewDraft{
		CategoryName: "  ELECTRONICS  ",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if match.CategoryID != 1 {
		t.Errorf("Expected category 1 from case-insensitive name match, got %d", match.CategoryID)
	}
	if matcher.calls != 0 {
		t.Errorf("Verbatim name match must not invoke the semantic matcher, got %d calls", matcher.calls)
	}
}

func TestResolve_NoMatchWithoutMatcher(t *testing.T) {
	r := NewResolver(knownCategories(), nil, nil)

	_, err := r.Resolve(context.Background(), domain.ReviewDraft{
		CategoryName: "Quantum gravity accessories",
	})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Expected ErrNoMatch, got %v", err)
	}
}

func TestResolve_SemanticMatchCachedPerLabel(t *testing.T) {
	matcher := &fakeMatcher{result: "Cosmetics", ok: true}
	r := NewResolver(knownCategories(), matcher, nil)

	for i := 0; i < 3; i++ {
		match, err := r.Resolve(context.Background(), domain.ReviewDraft{
			CategoryName: "Beauty & care",
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if match.CategoryID != 3 {
			t.Errorf("Expected category 3, got %d", match.CategoryID)
		}
	}
	if matcher.calls != 1 {
		t.Errorf("Expected exactly one semantic call for a repeated label, got %d", matcher.calls)
	}
}

func TestResolve_SemanticNoMatchIsCached(t *testing.T) {
	matcher := &fakeMatcher{ok: false}
	r := NewResolver(knownCategories(), matcher, nil)

	for i := 0; i < 2; i++ {
		if _, err := r.Resolve(context.Background(), domain.ReviewDraft{CategoryName: "Gibberish"}); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("Expected ErrNoMatch, got %v", err)
		}
	}
	if matcher.calls != 1 {
		t.Errorf("Explicit no-match must be cached, got %d calls", matcher.calls)
	}
}

func TestResolve_ChildPromotedToSubcategory(t *testing.T) {
	r := NewResolver(knownCategories(), nil, nil)

	// The source labeled a child node as the category.
	match, err := r.Resolve(context.Background(), domain.ReviewDraft{
		CategoryName: "Smartphones",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if match.CategoryID != 1 {
		t.Errorf("Expected parent 1 promoted to category, got %d", match.CategoryID)
	}
	if match.SubcategoryID == nil || *match.SubcategoryID != 2 {
		t.Errorf("Expected child 2 demoted to subcategory, got %v", match.SubcategoryID)
	}
}

func TestResolve_SwappedPairCorrected(t *testing.T) {
	r := NewResolver(knownCategories(), nil, nil)

	match, err := r.Resolve(context.Background(), domain.ReviewDraft{
		CategoryName:    "Smartphones",
		SubcategoryName: "Electronics",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if match.CategoryID != 1 {
		t.Errorf("Expected top-level 1 as category, got %d", match.CategoryID)
	}
	if match.SubcategoryID == nil || *match.SubcategoryID != 2 {
		t.Errorf("Expected child 2 as subcategory, got %v", match.SubcategoryID)
	}
}

func TestResolve_SubcategoryOnly(t *testing.T) {
	r := NewResolver(knownCategories(), nil, nil)

	match, err := r.Resolve(context.Background(), domain.ReviewDraft{
		SubcategoryName: "Smartphones",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if match.CategoryID != 1 || match.SubcategoryID == nil || *match.SubcategoryID != 2 {
		t.Errorf("Expected (1, 2), got (%d, %v)", match.CategoryID, match.SubcategoryID)
	}
}

func TestResolve_MatcherErrorNotCached(t *testing.T) {
	matcher := &fakeMatcher{err: errors.New("rate limited")}
	r := NewResolver(knownCategories(), matcher, nil)

	for i := 0; i < 2; i++ {
		if _, err := r.Resolve(context.Background(), domain.ReviewDraft{CategoryName: "Gibberish"}); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("Expected ErrNoMatch, got %v", err)
		}
	}
	if matcher.calls != 2 {
		t.Errorf("Transient matcher failures must not be cached, got %d calls", matcher.calls)
	}
}
