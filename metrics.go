package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerlearn_votes_total",
			Help: "Votes accepted, by value",
		},
		[]string{"vote"},
	)

	voteRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerlearn_vote_rejections_total",
			Help: "Votes refused, by rule",
		},
		[]string{"rule"},
	)

	submissionsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerlearn_submissions_decided_total",
			Help: "Submissions that reached a terminal status",
		},
		[]string{"status"},
	)

	ratingChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerlearn_rating_changes_total",
			Help: "Rating ledger events, by cause",
		},
		[]string{"cause"},
	)

	sessionsPaired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peerlearn_sessions_paired_total",
			Help: "Learning sessions created by weekly pairing",
		},
	)

	sessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peerlearn_sessions_completed_total",
			Help: "Learning sessions completed with an Elo update",
		},
	)
)
