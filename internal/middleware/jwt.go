package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pragati/exam-engine/internal/response"
	"github.com/pragati/exam-engine/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// RequireStudentJWT validates a student JWT from the Authorization header.
func RequireStudentJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		authorize(c, authService, tokenStr)
	}
}

// RequireStudentWSAuth validates a student JWT from the query param ?token=...
// Browsers cannot set headers on WebSocket upgrade requests.
func RequireStudentWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			tokenStr = bearerToken(c.GetHeader("Authorization"))
		}
		if tokenStr == "" {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		authorize(c, authService, tokenStr)
	}
}

func authorize(c *gin.Context, authService *service.AuthService, tokenStr string) {
	claims, err := authService.ValidateToken(tokenStr)
	if err != nil {
		code := response.ErrTokenInvalid
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = response.ErrTokenExpired
		}
		response.Abort(c, http.StatusUnauthorized, code)
		return
	}

	if claims.TokenType != service.TokenTypeStudent {
		response.Abort(c, http.StatusForbidden, response.ErrStudentAccessOnly)
		return
	}

	c.Set(ContextKeyClaims, claims)
	c.Next()
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// StudentID returns the authenticated student's id, or 0.
func StudentID(c *gin.Context) int {
	if claims := GetClaims(c); claims != nil {
		return claims.UserID
	}
	return 0
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
