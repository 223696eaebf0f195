package worker

import (
	"testing"

	"harvester/packages/domain"
)

func items(urls ...string) []domain.SourceItem {
	out := make([]domain.SourceItem, len(urls))
	for i, u := range urls {
		out[i] = domain.SourceItem{ID: int64(i + 1), SourceURL: u}
	}
	return out
}

func TestDiversityShuffleInterleavesSections(t *testing.T) {
	in := items(
		"https://src.example/phones/a",
		"https://src.example/phones/b",
		"https://src.example/phones/c",
		"https://src.example/laptops/a",
		"https://src.example/laptops/b",
	)

	out := diversityShuffle(in)
	if len(out) != len(in) {
		t.Fatalf("length changed: %d -> %d", len(in), len(out))
	}
	if sectionKey(out[0].SourceURL) == sectionKey(out[1].SourceURL) {
		t.Errorf("first two items share section %q", sectionKey(out[0].SourceURL))
	}

	// All originals survive the shuffle.
	seen := make(map[string]bool)
	for _, item := range out {
		seen[item.SourceURL] = true
	}
	for _, item := range in {
		if !seen[item.SourceURL] {
			t.Errorf("item lost in shuffle: %s", item.SourceURL)
		}
	}
}

func TestDiversityShufflePreservesOrderWithinSection(t *testing.T) {
	in := items(
		"https://src.example/phones/a",
		"https://src.example/phones/b",
		"https://src.example/laptops/a",
		"https://src.example/phones/c",
	)

	out := diversityShuffle(in)
	var phones []string
	for _, item := range out {
		if sectionKey(item.SourceURL) == "phones" {
			phones = append(phones, item.SourceURL)
		}
	}
	want := []string{
		"https://src.example/phones/a",
		"https://src.example/phones/b",
		"https://src.example/phones/c",
	}
	for i := range want {
		if phones[i] != want[i] {
			t.Errorf("phones[%d] = %s, want %s", i, phones[i], want[i])
		}
	}
}

func TestDiversityShuffleSingleSectionUntouched(t *testing.T) {
	in := items(
		"https://src.example/phones/a",
		"https://src.example/phones/b",
		"https://src.example/phones/c",
	)
	out := diversityShuffle(in)
	for i := range in {
		if out[i].SourceURL != in[i].SourceURL {
			t.Fatalf("single-section batch reordered at %d", i)
		}
	}
}

func TestContentHashIsStable(t *testing.T) {
	a := ContentHash("the review body")
	b := ContentHash("the review body")
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("unexpected hash length %d", len(a))
	}
	if ContentHash("the review body.") == a {
		t.Fatal("distinct content produced identical hashes")
	}
}
