package translate

import (
	"strings"
	"testing"
)

func TestSplitChunks_ShortContentIsSingleChunk(t *testing.T) {
	chunks := SplitChunks("short review text", 100)
	if len(chunks) != 1 || chunks[0] != "short review text" {
		t.Errorf("Unexpected chunks: %v", chunks)
	}
}

func TestSplitChunks_PrefersParagraphBreaks(t *testing.T) {
	para1 := strings.Repeat("a", 40)
	para2 := strings.Repeat("b", 40)
	content := para1 + "\n\n" + para2

	chunks := SplitChunks(content, 60)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != para1 {
		t.Errorf("Expected split at paragraph break, got %q", chunks[0])
	}
	if chunks[1] != para2 {
		t.Errorf("Unexpected second chunk %q", chunks[1])
	}
}

func TestSplitChunks_NeverSplitsInsideTag(t *testing.T) {
	content := strings.Repeat("word ", 10) + `<img src="https://cdn.example/a-very-long-image-path.jpg"> ` + strings.Repeat("tail ", 10)

	for _, max := range []int{20, 40, 60, 80} {
		for _, chunk := range SplitChunks(content, max) {
			if strings.Count(chunk, "<") != strings.Count(chunk, ">") {
				t.Errorf("max=%d: chunk split mid-tag: %q", max, chunk)
			}
		}
	}
}

func TestSplitChunks_ReassemblesToSameWords(t *testing.T) {
	content := strings.Repeat("alpha beta gamma delta ", 50)
	chunks := SplitChunks(content, 64)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	joined := strings.Fields(strings.Join(chunks, " "))
	original := strings.Fields(content)
	if len(joined) != len(original) {
		t.Fatalf("Word count changed: %d vs %d", len(joined), len(original))
	}
	for i := range joined {
		if joined[i] != original[i] {
			t.Fatalf("Word %d changed: %q vs %q", i, joined[i], original[i])
		}
	}
}

func TestSplitChunks_RespectsLimitWhenBoundaryExists(t *testing.T) {
	content := strings.Repeat("word ", 100)
	for _, chunk := range SplitChunks(content, 30) {
		if len([]rune(chunk)) > 30 {
			t.Errorf("Chunk exceeds limit despite available boundaries: %q", chunk)
		}
	}
}
