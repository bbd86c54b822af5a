package main

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"vmxio.com/peer-learn/internal/scoring"
)

type LeaderboardRow struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	DisplayName *string `json:"displayName,omitempty"`
	Rating      float64 `json:"rating"`
	// WeeklyPoints is only filled for the weekly scope.
	WeeklyPoints int `json:"weeklyPoints,omitempty"`
}

func rank(rows []LeaderboardRow, less func(a, b LeaderboardRow) bool) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	for i := range rows {
		rows[i].Rank = i + 1
	}
}

func (e *Engine) groupRows(ctx context.Context, groupID string) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := e.db.WithContext(ctx).Table("group_members").
		Select("users.id AS user_id, users.display_name AS display_name, users.rating AS rating").
		Joins("JOIN users ON users.id = group_members.user_id").
		Where("group_members.group_id = ?", groupID).
		Scan(&rows).Error
	return rows, err
}

// OverallLeaderboard ranks group members by rating. Results are cached until
// a member's rating changes.
func (e *Engine) OverallLeaderboard(ctx context.Context, groupID, userID string) ([]LeaderboardRow, error) {
	if _, err := membership(e.db.WithContext(ctx), groupID, userID); err != nil {
		return nil, err
	}
	// version is read before the query so an invalidation racing the
	// computation makes this write unreachable
	version, cacheable := e.board.Version(ctx, groupID)
	if cacheable {
		if rows, ok := e.board.Get(ctx, groupID, version); ok {
			return rows, nil
		}
	}
	rows, err := e.groupRows(ctx, groupID)
	if err != nil {
		return nil, err
	}
	rank(rows, func(a, b LeaderboardRow) bool {
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.UserID < b.UserID
	})
	if cacheable {
		e.board.Set(ctx, groupID, version, rows)
	}
	return rows, nil
}

// WeeklyLeaderboard ranks group members by the session points they scored
// this week.
func (e *Engine) WeeklyLeaderboard(ctx context.Context, groupID, userID string) ([]LeaderboardRow, error) {
	sessions, err := e.CurrentSessions(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	rows, err := e.groupRows(ctx, groupID)
	if err != nil {
		return nil, err
	}
	points := map[string]int{}
	for _, s := range sessions {
		points[s.PlayerAID] += s.PlayerAScore
		points[s.PlayerBID] += s.PlayerBScore
	}
	for i := range rows {
		rows[i].WeeklyPoints = points[rows[i].UserID]
	}
	rank(rows, func(a, b LeaderboardRow) bool {
		if a.WeeklyPoints != b.WeeklyPoints {
			return a.WeeklyPoints > b.WeeklyPoints
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.UserID < b.UserID
	})
	return rows, nil
}

// GET /api/v1/groups/:id/leaderboard?scope=overall|weekly
func Leaderboard(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			rows []LeaderboardRow
			err  error
		)
		switch scope := c.DefaultQuery("scope", "overall"); scope {
		case "overall":
			rows, err = e.OverallLeaderboard(c.Request.Context(), c.Param("id"), currentUser(c))
		case "weekly":
			rows, err = e.WeeklyLeaderboard(c.Request.Context(), c.Param("id"), currentUser(c))
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "InvalidInput", Message: "scope must be overall or weekly"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": rows})
	}
}

type StatsResponse struct {
	Rating            float64  `json:"rating"`
	Submissions       int64    `json:"submissions"`
	Pending           int64    `json:"pending"`
	Approved          int64    `json:"approved"`
	Rejected          int64    `json:"rejected"`
	AutoScored        int64    `json:"autoScored"`
	ApprovalRate      *float64 `json:"approvalRate,omitempty"` // percent of peer-decided
	TotalScore        int64    `json:"totalScore"`
	VotesCast         int64    `json:"votesCast"`
	SessionsCompleted int64    `json:"sessionsCompleted"`
	SessionsWon       int64    `json:"sessionsWon"`
}

// GET /api/v1/me/stats
func Stats(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		db := e.db.WithContext(c.Request.Context())
		var resp StatsResponse

		var u User
		if err := db.First(&u, "id = ?", uid).Error; err != nil {
			respondError(c, notFound(err, "user"))
			return
		}
		resp.Rating = u.Rating

		type statusCount struct {
			Status scoring.SubmissionStatus
			N      int64
			Score  int64
		}
		var counts []statusCount
		if err := db.Model(&TaskSubmission{}).
			Select("status, COUNT(*) AS n, COALESCE(SUM(score), 0) AS score").
			Where("user_id = ?", uid).Group("status").
			Scan(&counts).Error; err != nil {
			respondError(c, err)
			return
		}
		for _, sc := range counts {
			resp.Submissions += sc.N
			resp.TotalScore += sc.Score
			switch sc.Status {
			case scoring.StatusPending:
				resp.Pending = sc.N
			case scoring.StatusApproved:
				resp.Approved = sc.N
			case scoring.StatusRejected:
				resp.Rejected = sc.N
			case scoring.StatusAutoScored:
				resp.AutoScored = sc.N
			}
		}
		if decided := resp.Approved + resp.Rejected; decided > 0 {
			rate := float64(resp.Approved) * 100.0 / float64(decided)
			resp.ApprovalRate = &rate
		}

		if err := db.Model(&TaskVote{}).Where("voter_id = ?", uid).Count(&resp.VotesCast).Error; err != nil {
			respondError(c, err)
			return
		}

		var sessions []LearningSession
		if err := db.Where("completed = ? AND (player_a_id = ? OR player_b_id = ?)", true, uid, uid).
			Find(&sessions).Error; err != nil {
			respondError(c, err)
			return
		}
		resp.SessionsCompleted = int64(len(sessions))
		for _, s := range sessions {
			if (s.PlayerAID == uid && s.PlayerAScore > s.PlayerBScore) ||
				(s.PlayerBID == uid && s.PlayerBScore > s.PlayerAScore) {
				resp.SessionsWon++
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}
