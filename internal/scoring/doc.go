// Package scoring holds the pure decision rules of the platform: quiz
// grading, peer-vote tallies, submission resolution, rating bumps, Elo and
// weekly pairing. Nothing here touches storage; callers apply the results
// inside their own transactions.
package scoring
