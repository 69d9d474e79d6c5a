// Package score computes the weighted composite score used to rank games.
package score

import (
	"math"

	"coopgames/internal/model"
)

// reviewCeiling is the review count treated as maximal popularity; the
// review term is log-scaled against it so raw popularity contributes
// diminishing returns.
const reviewCeiling = 100000

// Compute returns the country-scoped composite score for a game. The rating
// is squared so consistently high-rated titles pull ahead of mediocre ones
// disproportionately. price is the price in the requested country; pass the
// zero Price when none is known.
func Compute(g *model.Game, price model.Price, w model.ScoringWeights) float64 {
	rating := g.Rating * g.Rating * w.Rating
	cost := -(float64(price.Final) / 100.0 / w.HighPrice) * w.Price
	sale := price.SaleFraction() * w.Sale
	reviews := math.Log(float64(g.ReviewCount)+1) / math.Log(reviewCeiling) * w.Reviews
	return rating + cost + sale + reviews
}
