package scoring

import "math"

// DefaultK is the Elo K-factor.
const DefaultK = 32.0

type EloResult struct {
	ExpectedA  float64
	ExpectedB  float64
	NewRatingA float64
	NewRatingB float64
}

// ExpectedScore is the probability that a player rated r beats one rated
// opp.
func ExpectedScore(r, opp float64) float64 {
	return 1 / (1 + math.Pow(10, (opp-r)/400))
}

// Elo computes both players' new ratings after a session. Higher score wins;
// equal scores are a draw.
func Elo(ratingA, ratingB float64, scoreA, scoreB int, k float64) EloResult {
	if k <= 0 {
		k = DefaultK
	}
	actualA, actualB := 0.5, 0.5
	switch {
	case scoreA > scoreB:
		actualA, actualB = 1, 0
	case scoreB > scoreA:
		actualA, actualB = 0, 1
	}
	res := EloResult{
		ExpectedA: ExpectedScore(ratingA, ratingB),
		ExpectedB: ExpectedScore(ratingB, ratingA),
	}
	res.NewRatingA = RoundHalfUp(ratingA + k*(actualA-res.ExpectedA))
	res.NewRatingB = RoundHalfUp(ratingB + k*(actualB-res.ExpectedB))
	return res
}
