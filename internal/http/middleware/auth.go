// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides RequireAuth, the authentication gate for the API. Every
// project, chat, and vendor route runs behind it: the middleware validates
// the bearer token and resolves the request principal {user id, email} that
// services use for ownership and share checks.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitewise/go-project-backend/internal/auth"
)

const (
	// CtxUserID is the Gin context key holding the authenticated user id.
	CtxUserID = "userID"
	// CtxUserEmail is the Gin context key holding the authenticated email.
	CtxUserEmail = "userEmail"
)

// RequireAuth returns a middleware that rejects requests without a valid
// HS256 bearer token. On success the principal is stored under CtxUserID and
// CtxUserEmail, where handlers and the rate limiter pick it up.
//
// Rejections use the standard error envelope:
//
//	HTTP/1.1 401 Unauthorized
//	{ "request_id": "...", "code": "unauthorized", "message": "..." }
func RequireAuth(secret []byte, audience string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		claims, err := auth.ParseToken(token, secret, audience)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(CtxUserID, claims.UserID())
		c.Set(CtxUserEmail, claims.Email)
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value. The
// scheme comparison is case-insensitive per RFC 7235.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
