package quality

import (
	"strings"
	"testing"

	"harvester/packages/domain"
)

func draftWithContent(length int) domain.ReviewDraft {
	return domain.ReviewDraft{
		Content:   strings.Repeat("a", length),
		ImageURLs: []string{"https://cdn.example/img/1.jpg"},
	}
}

func TestAccept_ContentBelowMinimum(t *testing.T) {
	gate := NewGate(500, "")

	ok, reason := gate.Accept(draftWithContent(450), false)
	if ok {
		t.Error("450-character content must be rejected against a 500 minimum")
	}
	if reason == "" {
		t.Error("Rejection must carry a reason")
	}
}

func TestAccept_ContentAtMinimum(t *testing.T) {
	gate := NewGate(500, "")

	if ok, reason := gate.Accept(draftWithContent(500), false); !ok {
		t.Errorf("500-character content should pass, got rejection: %s", reason)
	}
}

func TestAccept_MultibyteContentCountsRunes(t *testing.T) {
	gate := NewGate(10, "")
	draft := domain.ReviewDraft{
		Content:   strings.Repeat("ы", 10),
		ImageURLs: []string{"https://cdn.example/img/1.jpg"},
	}
	if ok, reason := gate.Accept(draft, false); !ok {
		t.Errorf("Rune length should satisfy the minimum, got rejection: %s", reason)
	}
}

func TestAccept_NoImagesAnywhere(t *testing.T) {
	gate := NewGate(100, "")
	draft := draftWithContent(200)
	draft.ImageURLs = nil

	if ok, _ := gate.Accept(draft, false); ok {
		t.Error("Draft without any image source must be rejected")
	}
}

func TestAccept_ProductImageSuffices(t *testing.T) {
	gate := NewGate(100, "")
	draft := draftWithContent(200)
	draft.ImageURLs = nil

	if ok, reason := gate.Accept(draft, true); !ok {
		t.Errorf("Product image should satisfy the media floor, got rejection: %s", reason)
	}
}

func TestAccept_FallbackImageSuffices(t *testing.T) {
	gate := NewGate(100, "https://cdn.example/fallback.jpg")
	draft := draftWithContent(200)
	draft.ImageURLs = nil

	if ok, reason := gate.Accept(draft, false); !ok {
		t.Errorf("Configured fallback image should satisfy the media floor, got rejection: %s", reason)
	}
}
