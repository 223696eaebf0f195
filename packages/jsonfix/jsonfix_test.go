package jsonfix

import "testing"

type sample struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestUnmarshal_Strict(t *testing.T) {
	var got sample
	err := Default.Unmarshal(`{"title": "Phone", "tags": ["tech"]}`, &got)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Title != "Phone" || len(got.Tags) != 1 {
		t.Errorf("Unexpected result: %+v", got)
	}
}

func TestUnmarshal_FencedBlock(t *testing.T) {
	raw := "Here is the data you asked for:\n```json\n{\"title\": \"Phone\", \"tags\": []}\n```\nLet me know if you need anything else."
	var got sample
	if err := Default.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Title != "Phone" {
		t.Errorf("Expected title extracted from fenced block, got %+v", got)
	}
}

func TestUnmarshal_SurroundingProse(t *testing.T) {
	raw := `Sure! {"title": "Laptop", "tags": ["tech", "review"]} Hope that helps.`
	var got sample
	if err := Default.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Title != "Laptop" || len(got.Tags) != 2 {
		t.Errorf("Unexpected result: %+v", got)
	}
}

func TestUnmarshal_TrailingComma(t *testing.T) {
	raw := `{"title": "Tablet", "tags": ["tech",],}`
	var got sample
	if err := Default.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Title != "Tablet" {
		t.Errorf("Unexpected result: %+v", got)
	}
}

func TestUnmarshal_Hopeless(t *testing.T) {
	var got sample
	if err := Default.Unmarshal("I could not produce any structured data, sorry.", &got); err == nil {
		t.Error("Expected an error for non-JSON input")
	}
}

func TestUnmarshal_StrategyOrder(t *testing.T) {
	// Strict must win before extraction: a bare valid object should never go
	// through the coercion path (which could alter string contents).
	var calls []string
	chain := Chain{
		{Name: "first", Parse: func(raw string, dst any) error {
			calls = append(calls, "first")
			return parseStrict(raw, dst)
		}},
		{Name: "second", Parse: func(raw string, dst any) error {
			calls = append(calls, "second")
			return parseStrict(raw, dst)
		}},
	}
	var got sample
	if err := chain.Unmarshal(`{"title": "x"}`, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("Expected only the first strategy to run, got %v", calls)
	}
}
