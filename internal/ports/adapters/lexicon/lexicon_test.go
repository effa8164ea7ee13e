package lexicon

import (
	"context"
	"testing"
)

func TestClassify_Table(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantLabel string
		wantAbove float64
		wantBelow float64
	}{
		{"empty", "", "NEUTRAL", 0.49, 0.51},
		{"neutral", "We walked to the station.", "NEUTRAL", 0.49, 0.51},
		{"strong positive", "This is amazing! I love it!", "POSITIVE", 0.9, 1},
		{"mild positive", "That was great.", "POSITIVE", 0.5, 0.9},
		{"negated", "This is not great.", "NEGATIVE", 0.5, 1},
		{"negative", "The worst, most boring talk.", "NEGATIVE", 0.9, 1},
		{"never negated", "That was never great.", "NEGATIVE", 0.5, 0.9},
		{"negated negative", "No problem at all.", "POSITIVE", 0.5, 0.9},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Label != tt.wantLabel {
				t.Fatalf("label = %q, want %q", got.Label, tt.wantLabel)
			}
			if got.Score <= tt.wantAbove || got.Score >= tt.wantBelow {
				t.Fatalf("score %v not in (%v, %v)", got.Score, tt.wantAbove, tt.wantBelow)
			}
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	pos, neg := Score("wow wow wow wow wow wow wow wow wow wow wow wow!!!!")
	if pos != 10 {
		t.Fatalf("expected positive evidence clamped to 10, got %v", pos)
	}
	if neg != 0 {
		t.Fatalf("expected no negative evidence, got %v", neg)
	}
}
