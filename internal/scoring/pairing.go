package scoring

import (
	"sort"
	"time"
)

type Member struct {
	UserID string
	Rating float64
}

type Pair struct {
	A, B Member
}

// Key returns the unordered pair as (low, high) ids.
func (p Pair) Key() (string, string) {
	if p.A.UserID < p.B.UserID {
		return p.A.UserID, p.B.UserID
	}
	return p.B.UserID, p.A.UserID
}

// PairByRating sorts members by rating, highest first, and pairs neighbours.
// Ties are broken by user id so the result is deterministic. With an odd
// count the lowest-ranked member sits out.
func PairByRating(members []Member) []Pair {
	sorted := append([]Member(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rating != sorted[j].Rating {
			return sorted[i].Rating > sorted[j].Rating
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	pairs := make([]Pair, 0, len(sorted)/2)
	for i := 0; i+1 < len(sorted); i += 2 {
		pairs = append(pairs, Pair{A: sorted[i], B: sorted[i+1]})
	}
	return pairs
}

// WeekStart truncates t to Monday 00:00 UTC.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -offset)
}

// WeekIndex counts whole weeks since the Unix epoch's first Monday.
func WeekIndex(t time.Time) int64 {
	epoch := time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)
	return int64(WeekStart(t).Sub(epoch) / (7 * 24 * time.Hour))
}
