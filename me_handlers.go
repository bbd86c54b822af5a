package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type MeResponse struct {
	ID          string  `json:"id"`
	PublicID    string  `json:"publicId"`
	DisplayName *string `json:"displayName,omitempty"`
	Rating      float64 `json:"rating"`
}

type MeUpdateReq struct {
	DisplayName *string `json:"displayName"`
}

func meResponse(u *User) MeResponse {
	return MeResponse{ID: u.ID, PublicID: u.PublicID, DisplayName: u.DisplayName, Rating: u.Rating}
}

// GET /api/v1/me
func GetMe(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var u User
		if err := e.db.WithContext(c.Request.Context()).First(&u, "id = ?", currentUser(c)).Error; err != nil {
			respondError(c, notFound(err, "user"))
			return
		}
		c.JSON(http.StatusOK, meResponse(&u))
	}
}

// PUT /api/v1/me
func UpdateMe(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MeUpdateReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "InvalidInput", Message: "bad request"})
			return
		}
		db := e.db.WithContext(c.Request.Context())
		var u User
		if err := db.First(&u, "id = ?", currentUser(c)).Error; err != nil {
			respondError(c, notFound(err, "user"))
			return
		}

		if req.DisplayName != nil {
			name := strings.TrimSpace(*req.DisplayName)
			if len(name) < 2 || len(name) > 40 {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "InvalidInput", Message: "displayName must be 2..40 chars"})
				return
			}
			u.DisplayName = &name
		}

		// only the name column; rating moves through the ledger
		if err := db.Model(&u).Update("display_name", u.DisplayName).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, meResponse(&u))
	}
}

// GET /api/v1/me/ratings
func MyRatings(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		evs, err := e.RatingHistory(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": evs})
	}
}
