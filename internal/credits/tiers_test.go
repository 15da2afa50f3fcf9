package credits

import "testing"

func TestChargeFor(t *testing.T) {
	tests := []struct {
		model  string
		tokens int
		want   float64
	}{
		{"gpt-4o-mini", 1000, 1},
		{"gpt-4o-mini", 500, 0.5},
		{"gpt-4", 1000, 15},
		{"gpt-4o", 2000, 10},
		{"claude-3-opus-20240229", 1000, 15},
		{"unknown-model", 1000, 1}, // baseline
		{"gpt-4o-mini", 0, 0},
	}

	for _, tt := range tests {
		if got := ChargeFor(tt.model, tt.tokens); got != tt.want {
			t.Errorf("ChargeFor(%q, %d) = %v, want %v", tt.model, tt.tokens, got, tt.want)
		}
	}
}

func TestAllotment(t *testing.T) {
	if Allotment(TierFree) != 500 {
		t.Error("free allotment changed")
	}
	if Allotment(TierPro) != 10000 {
		t.Error("pro allotment changed")
	}
	if Allotment("nonsense") != 500 {
		t.Error("unknown tier should fall back to free")
	}
}

// A charge equal to the remaining balance must fit; anything past it, even
// by a hair, must not.
func TestWouldExceedBoundary(t *testing.T) {
	used, total := 490.0, 500.0 // remaining = 10

	if WouldExceed(used, total, 10) {
		t.Error("exact remaining balance rejected")
	}
	if !WouldExceed(used, total, 10.0001) {
		t.Error("charge past remaining balance accepted")
	}
	if WouldExceed(used, total, 0) {
		t.Error("zero charge rejected")
	}
}
