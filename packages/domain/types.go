// Package domain
package domain

import "time"

type SourceStatus string

const (
	StatusNew        SourceStatus = "new"
	StatusProcessing SourceStatus = "processing"
	StatusProcessed  SourceStatus = "processed"
	StatusFailed     SourceStatus = "failed"
)

// SourceItem is one discovered review URL tracked through the crawl lifecycle.
type SourceItem struct {
	ID          int64
	SourceURL   string
	SourceSlug  string
	Status      SourceStatus
	Retries     int
	LastError   string
	ContentHash string
	LastSeenAt  time.Time
}

// ReviewDraft is the transient per-attempt parse result. It is not persisted
// until it clears the quality gate and the category resolver.
type ReviewDraft struct {
	SourceURL string
	Title     string
	Content   string
	Rating    *float64
	Likes     int
	Dislikes  int
	Published *time.Time
	Language  string

	CategoryName    string
	CategoryURL     string
	SubcategoryName string
	SubcategoryURL  string

	ProductName string
	ProductURL  string

	ImageURLs []string
	Pros      []string
	Cons      []string
}

type Category struct {
	ID        int64
	SourceURL string
	Name      string
	ParentID  *int64
}

// CategoryMatch is the resolver output: either a category id (with optional
// subcategory), or no match at all.
type CategoryMatch struct {
	CategoryID    int64
	SubcategoryID *int64
}

// FAQEntry is one generated question/answer pair for a translation.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TranslationPayload is one language's rendition of a review, persisted once
// per (entity, language) pair.
type TranslationPayload struct {
	Language  string            `json:"language"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	MetaTitle string            `json:"meta_title"`
	MetaDesc  string            `json:"meta_description"`
	Slug      string            `json:"slug"`
	Summary   string            `json:"summary"`
	FAQ       []FAQEntry        `json:"faq"`
	Specs     map[string]string `json:"specs"`
	Pros      []string          `json:"pros"`
	Cons      []string          `json:"cons"`
	// Fallback marks payloads substituted after persistent translation
	// failure; content is the untranslated source.
	Fallback bool `json:"-"`
}

// StoredReview carries the ids assigned while persisting one review.
type StoredReview struct {
	ReviewID  int64
	ProductID int64
}
