package draft

import (
	"testing"
)

func TestRepairStrictEnvelope(t *testing.T) {
	result := Repair(`{"items": [{"title":"Cells","prompt":"What is a cell?","answer":"The basic unit of life."}]}`)
	if result.Level != LevelStrict {
		t.Fatalf("expected strict parse, got %s", result.Level)
	}
	if len(result.Items) != 1 || result.Items[0].Title != "Cells" {
		t.Fatalf("unexpected items %+v", result.Items)
	}
}

func TestRepairStrictBareArray(t *testing.T) {
	result := Repair(`[{"title":"A"},{"title":"B"}]`)
	if result.Level != LevelStrict {
		t.Fatalf("expected strict parse, got %s", result.Level)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
}

func TestRepairFencedBlock(t *testing.T) {
	result := Repair("```json\n{\"items\": [{\"title\":\"A\"}]}\n```")
	if result.Level != LevelFenced {
		t.Fatalf("expected fenced parse, got %s", result.Level)
	}
	if len(result.Items) != 1 || result.Items[0].Title != "A" {
		t.Fatalf("unexpected items %+v", result.Items)
	}
}

func TestRepairFenceWithProse(t *testing.T) {
	raw := "Here are your questions!\n```json\n[{\"title\":\"Osmosis\"}]\n```\nLet me know if you need more."
	result := Repair(raw)
	if result.Level != LevelFenced {
		t.Fatalf("expected fenced parse, got %s", result.Level)
	}
	if len(result.Items) != 1 || result.Items[0].Title != "Osmosis" {
		t.Fatalf("unexpected items %+v", result.Items)
	}
}

func TestRepairTrailingComma(t *testing.T) {
	result := Repair(`{"items": [{"title":"A",},]}`)
	if result.Level != LevelRepaired {
		t.Fatalf("expected lenient repair, got %s", result.Level)
	}
	if len(result.Items) != 1 || result.Items[0].Title != "A" {
		t.Fatalf("unexpected items %+v", result.Items)
	}
	if result.Note == "" {
		t.Fatal("expected degradation note")
	}
}

func TestRepairUnbalancedBrackets(t *testing.T) {
	result := Repair(`{"items": [{"title":"A"}`)
	if result.Level != LevelRepaired {
		t.Fatalf("expected lenient repair, got %s", result.Level)
	}
	if len(result.Items) != 1 || result.Items[0].Title != "A" {
		t.Fatalf("unexpected items %+v", result.Items)
	}
}

func TestRepairControlCharacters(t *testing.T) {
	result := Repair("{\"items\": [{\"title\":\"A\x07\x01\"}]}")
	if result.Level > LevelRepaired {
		t.Fatalf("expected repair to strip control characters, got %s", result.Level)
	}
	if len(result.Items) != 1 || result.Items[0].Title != "A" {
		t.Fatalf("unexpected items %+v", result.Items)
	}
}

func TestRepairFieldExtraction(t *testing.T) {
	raw := `The model emitted: "title": "Mitosis" and "prompt": "Name the phases" then "answer": "PMAT" with broken {{{ structure`
	result := Repair(raw)
	if result.Level != LevelFields {
		t.Fatalf("expected field extraction, got %s", result.Level)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.Title != "Mitosis" || item.Prompt != "Name the phases" || item.Answer != "PMAT" {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestRepairUnparsableFallsThrough(t *testing.T) {
	result := Repair("I cannot comply")
	if result.Level != LevelUnparsed {
		t.Fatalf("expected unparsed fallback, got %s", result.Level)
	}
	if len(result.Items) != 1 || !result.Items[0].Unparsed {
		t.Fatalf("expected a single opaque item, got %+v", result.Items)
	}
	if result.Note == "" {
		t.Fatal("expected degradation note")
	}
	wellFormed := 0
	for _, item := range result.Items {
		if item.WellFormed() {
			wellFormed++
		}
	}
	if wellFormed != 0 {
		t.Fatalf("opaque item counted as well formed")
	}
}

func TestRepairEmptyOutput(t *testing.T) {
	result := Repair("   ")
	if result.Level != LevelUnparsed {
		t.Fatalf("expected unparsed fallback, got %s", result.Level)
	}
	if len(result.Items) != 0 {
		t.Fatalf("expected no items for empty output, got %d", len(result.Items))
	}
}
