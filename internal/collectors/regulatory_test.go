package collectors

import (
	"context"
	"testing"
)

func TestRegulatory_KnownState(t *testing.T) {
	r := NewRegulatory()

	res, err := r.Collect(context.Background(), Request{Address: "800 Peachtree St, Atlanta, GA"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Score != 80 {
		t.Errorf("expected streamlined GA to score 80, got %v", res.Score)
	}
	if res.Confidence != "medium" {
		t.Errorf("expected medium confidence, got %s", res.Confidence)
	}
	if res.Metrics["state_table_entry"] != true {
		t.Error("expected table entry flag set")
	}
}

func TestRegulatory_UnknownStateUsesDefault(t *testing.T) {
	r := NewRegulatory()

	// WY has no table entry; the moderate default applies.
	res, err := r.Collect(context.Background(), Request{Address: "400 Grand Ave, Laramie, WY"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Score != 60 {
		t.Errorf("expected default moderate score 60, got %v", res.Score)
	}
	if res.Confidence != "low" {
		t.Errorf("expected low confidence without table entry, got %s", res.Confidence)
	}
}

func TestRegulatory_NoState(t *testing.T) {
	r := NewRegulatory()
	if _, err := r.Collect(context.Background(), Request{Address: "no state here"}); err == nil {
		t.Fatal("expected error for address without a state")
	}
}
