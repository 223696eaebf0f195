// Package quality implements the pre-enrichment content floor. Rejections
// are policy, not errors: structurally short teaser pages and image-less
// reviews never become published items.
package quality

import (
	"fmt"

	"harvester/packages/domain"
)

type Gate struct {
	minContentLength int
	fallbackImageURL string
}

func NewGate(minContentLength int, fallbackImageURL string) *Gate {
	return &Gate{
		minContentLength: minContentLength,
		fallbackImageURL: fallbackImageURL,
	}
}

// Accept is pure: it inspects the draft plus the product image availability
// flag and returns a rejection reason, or "" for acceptance.
func (g *Gate) Accept(draft domain.ReviewDraft, hasProductImage bool) (bool, string) {
	if length := len([]rune(draft.Content)); length < g.minContentLength {
		return false, fmt.Sprintf("content too short: %d < %d characters", length, g.minContentLength)
	}

	if len(draft.ImageURLs) == 0 && !hasProductImage && g.fallbackImageURL == "" {
		return false, "no review image, no product image, no fallback image configured"
	}

	return true, ""
}
