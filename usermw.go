package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userHeader = "X-User-Id"

// AuthConfig selects how callers identify themselves.
type AuthConfig struct {
	JWTSecret string
	// AllowHeader trusts a plain X-User-Id header; development only.
	AllowHeader bool
}

var errNoIdentity = errors.New("no identity")

func subjectFromBearer(header, secret string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || secret == "" {
		return "", errNoIdentity
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errNoIdentity
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errNoIdentity
	}
	return sub, nil
}

// EnsureUser resolves the caller's identity and creates the user row with
// the initial rating on first sight.
func EnsureUser(e *Engine, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		pubID, err := subjectFromBearer(c.GetHeader("Authorization"), cfg.JWTSecret)
		if err != nil && cfg.AllowHeader {
			pubID = strings.TrimSpace(c.GetHeader(userHeader))
		}
		if pubID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Message: "missing or invalid credentials"})
			return
		}

		u, err := e.EnsureUser(c.Request.Context(), pubID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal", Message: "user create failed"})
			return
		}

		c.Set("userPublicID", pubID)
		c.Set("userID", u.ID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString("userID")
}
