package score

import (
	"math"
	"testing"

	"coopgames/internal/model"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		game    model.Game
		price   model.Price
		weights model.ScoringWeights
		want    float64
	}{
		{
			name:    "rating and price terms",
			game:    model.Game{Rating: 0.9, ReviewCount: 500},
			price:   model.Price{Initial: 1999, Final: 999},
			weights: model.ScoringWeights{Rating: 0.7, Price: 0.3, Sale: 0, Reviews: 0, HighPrice: 20},
			want:    0.9*0.9*0.7 - (9.99/20.0)*0.3,
		},
		{
			name:    "sale term uses discount fraction",
			game:    model.Game{Rating: 0},
			price:   model.Price{Initial: 2000, Final: 1000},
			weights: model.ScoringWeights{Sale: 1, HighPrice: 20},
			want:    0.5,
		},
		{
			name:    "no initial price means no sale contribution",
			game:    model.Game{Rating: 0},
			price:   model.Price{Initial: 0, Final: 0},
			weights: model.ScoringWeights{Sale: 1, HighPrice: 20},
			want:    0,
		},
		{
			name:    "review term is log scaled against the ceiling",
			game:    model.Game{ReviewCount: 99999},
			weights: model.ScoringWeights{Reviews: 1, HighPrice: 20},
			want:    1,
		},
		{
			name:    "zero reviews contribute nothing",
			game:    model.Game{ReviewCount: 0},
			weights: model.ScoringWeights{Reviews: 1, HighPrice: 20},
			want:    0,
		},
		{
			name:    "free game with perfect rating",
			game:    model.Game{Rating: 1},
			weights: model.ScoringWeights{Rating: 1, Price: 1, HighPrice: 20},
			want:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(&tt.game, tt.price, tt.weights)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Compute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeKnownScenario(t *testing.T) {
	game := model.Game{Rating: 0.9, ReviewCount: 500}
	price := model.Price{Initial: 1999, Final: 999}
	weights := model.ScoringWeights{Rating: 0.7, Price: 0.3, Sale: 0, Reviews: 0, HighPrice: 20}

	got := Compute(&game, price, weights)
	want := 0.4171
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestRatingWeightMonotonicity(t *testing.T) {
	higher := model.Game{Rating: 0.9, ReviewCount: 100}
	lower := model.Game{Rating: 0.6, ReviewCount: 100}
	price := model.Price{Initial: 1999, Final: 1999}

	// Increasing the rating weight must never shrink the gap between a
	// higher-rated and a lower-rated game, all else equal.
	prevGap := math.Inf(-1)
	for _, rw := range []float64{0.1, 0.5, 1.0, 2.0, 5.0} {
		w := model.ScoringWeights{Rating: rw, Price: 0.3, Sale: 0.1, Reviews: 0.1, HighPrice: 20}
		gap := Compute(&higher, price, w) - Compute(&lower, price, w)
		if gap < prevGap {
			t.Fatalf("gap shrank from %v to %v at rating weight %v", prevGap, gap, rw)
		}
		if gap <= 0 {
			t.Fatalf("higher-rated game not ahead at rating weight %v", rw)
		}
		prevGap = gap
	}
}
