package scoring

import (
	"math"
	"testing"
)

func TestElo(t *testing.T) {
	tests := []struct {
		name         string
		ra, rb       float64
		sa, sb       int
		wantA, wantB float64
	}{
		{"equal ratings A wins", 1200, 1200, 30, 10, 1216, 1184},
		{"equal ratings B wins", 1200, 1200, 0, 10, 1184, 1216},
		{"equal ratings draw", 1200, 1200, 10, 10, 1200, 1200},
		{"favourite wins", 1400, 1200, 20, 10, 1408, 1192},
		{"underdog wins", 1200, 1400, 20, 10, 1224, 1376},
		{"favourite draws", 1400, 1200, 5, 5, 1392, 1208},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Elo(tt.ra, tt.rb, tt.sa, tt.sb, DefaultK)
			if got.NewRatingA != tt.wantA || got.NewRatingB != tt.wantB {
				t.Errorf("Elo() = (%v, %v), want (%v, %v)", got.NewRatingA, got.NewRatingB, tt.wantA, tt.wantB)
			}
			if math.Abs(got.ExpectedA+got.ExpectedB-1) > 1e-12 {
				t.Errorf("expected scores sum to %f", got.ExpectedA+got.ExpectedB)
			}
		})
	}
}

func TestEloDefaultsK(t *testing.T) {
	if got := Elo(1200, 1200, 1, 0, 0); got.NewRatingA != 1216 {
		t.Errorf("K=0 should fall back to 32, got %v", got.NewRatingA)
	}
}
