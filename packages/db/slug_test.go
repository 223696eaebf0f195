package db

import (
	"strings"
	"testing"
)

func TestSuffixSlug_Deterministic(t *testing.T) {
	a := SuffixSlug("best-phone-review", 42, "de", 1)
	b := SuffixSlug("best-phone-review", 42, "de", 1)
	if a != b {
		t.Errorf("Same inputs produced different slugs: %q vs %q", a, b)
	}
}

func TestSuffixSlug_VariesByInput(t *testing.T) {
	base := SuffixSlug("best-phone-review", 42, "de", 1)

	cases := map[string]string{
		"entity":   SuffixSlug("best-phone-review", 43, "de", 1),
		"language": SuffixSlug("best-phone-review", 42, "fr", 1),
		"attempt":  SuffixSlug("best-phone-review", 42, "de", 2),
		"slug":     SuffixSlug("other-review", 42, "de", 1),
	}
	for name, got := range cases {
		if got == base {
			t.Errorf("Changing %s did not change the suffixed slug %q", name, got)
		}
	}
}

func TestSuffixSlug_KeepsBasePrefix(t *testing.T) {
	got := SuffixSlug("best-phone-review", 42, "de", 3)
	if !strings.HasPrefix(got, "best-phone-review-") {
		t.Errorf("Expected suffixed slug to keep base prefix, got %q", got)
	}
	suffix := strings.TrimPrefix(got, "best-phone-review-")
	if len(suffix) != 6 {
		t.Errorf("Expected 6-char suffix, got %q", suffix)
	}
}

func TestTruncateReason(t *testing.T) {
	short := "category mismatch"
	if got := TruncateReason(short); got != short {
		t.Errorf("Short reason should pass through, got %q", got)
	}

	long := strings.Repeat("x", maxErrorLength+100)
	got := TruncateReason(long)
	if len([]rune(got)) != maxErrorLength {
		t.Errorf("Expected reason truncated to %d runes, got %d", maxErrorLength, len([]rune(got)))
	}
}
