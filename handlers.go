package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "InvalidInput", Message: "bad request"})
}

// --- Groups ---

type CreateGroupReq struct {
	Name string `json:"name"`
}

// POST /api/v1/groups
func CreateGroup(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateGroupReq
		if err := c.BindJSON(&req); err != nil {
			badRequest(c)
			return
		}
		g, err := e.CreateGroup(c.Request.Context(), req.Name, currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, g)
	}
}

// POST /api/v1/groups/:id/join
func JoinGroup(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := e.JoinGroup(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

// --- Tasks ---

// POST /api/v1/groups/:id/tasks
func CreateTask(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in CreateTaskInput
		if err := c.BindJSON(&in); err != nil {
			badRequest(c)
			return
		}
		in.GroupID = c.Param("id")
		in.CreatorID = currentUser(c)
		t, err := e.CreateTask(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// GET /api/v1/groups/:id/tasks
func ListTasks(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ts, err := e.ListTasks(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": ts})
	}
}

// GET /api/v1/tasks/:id
func GetTask(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := e.GetTask(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// --- Submissions & votes ---

// POST /api/v1/submissions
func SubmitTask(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in SubmitInput
		if err := c.BindJSON(&in); err != nil || in.TaskID == "" {
			badRequest(c)
			return
		}
		in.UserID = currentUser(c)
		sub, err := e.SubmitTask(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sub)
	}
}

// GET /api/v1/submissions/:id
func GetSubmission(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := e.GetSubmission(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sub)
	}
}

// GET /api/v1/groups/:id/submissions/pending
func PendingSubmissions(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := e.PendingForVoting(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"submissions": subs})
	}
}

// POST /api/v1/votes
func CastVote(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in VoteInput
		if err := c.BindJSON(&in); err != nil || in.SubmissionID == "" {
			badRequest(c)
			return
		}
		in.VoterID = currentUser(c)
		res, err := e.CastVote(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// --- Sessions ---

// POST /api/v1/groups/:id/sessions
func PairSessions(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := e.TriggerPairing(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": n})
	}
}

// GET /api/v1/groups/:id/sessions/current
func CurrentSessions(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ss, err := e.CurrentSessions(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": ss})
	}
}

// POST /api/v1/sessions/:id/responses
func RecordResponse(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ResponseInput
		if err := c.BindJSON(&in); err != nil {
			badRequest(c)
			return
		}
		in.SessionID = c.Param("id")
		in.UserID = currentUser(c)
		resp, err := e.RecordResponse(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// POST /api/v1/sessions/:id/complete
func CompleteSession(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := e.CompleteSession(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// Routes mounts the API on r. Shared by main and the handler tests.
func Routes(r *gin.Engine, e *Engine, auth AuthConfig) {
	api := r.Group("/api/v1")
	api.Use(EnsureUser(e, auth))
	{
		api.POST("/groups", CreateGroup(e))
		api.POST("/groups/:id/join", JoinGroup(e))
		api.POST("/groups/:id/tasks", CreateTask(e))
		api.GET("/groups/:id/tasks", ListTasks(e))
		api.GET("/groups/:id/submissions/pending", PendingSubmissions(e))
		api.POST("/groups/:id/sessions", PairSessions(e))
		api.GET("/groups/:id/sessions/current", CurrentSessions(e))
		api.GET("/groups/:id/leaderboard", Leaderboard(e))

		api.GET("/tasks/:id", GetTask(e))

		api.POST("/submissions", SubmitTask(e))
		api.GET("/submissions/:id", GetSubmission(e))
		api.POST("/votes", CastVote(e))

		api.POST("/sessions/:id/responses", RecordResponse(e))
		api.POST("/sessions/:id/complete", CompleteSession(e))

		api.GET("/me", GetMe(e))
		api.PUT("/me", UpdateMe(e))
		api.GET("/me/ratings", MyRatings(e))
		api.GET("/me/stats", Stats(e))
	}
}
