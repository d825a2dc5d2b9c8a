package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/user-directory/internal/infra/security"
)

// InvalidTokenMessage is the single answer to any token that fails to parse.
const InvalidTokenMessage = "invalid access token"

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(token string) (*security.AccessTokenClaims, error)
}

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="user-directory"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msg, TraceID: GetTraceID(c)})
}

// RequireAuth validates the Authorization header and stores the caller's claims.
func RequireAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			abortUnauthorized(c, "invalid authorization format: expected 'Bearer <token>'")
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			abortUnauthorized(c, "missing access token")
			return
		}

		// Expired, forged and foreign tokens are indistinguishable to the caller.
		claims, err := tokens.Parse(token)
		if err != nil {
			_ = c.Error(err)
			abortUnauthorized(c, InvalidTokenMessage)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}

// GetClaims returns the parsed token claims set by RequireAuth.
func GetClaims(c *gin.Context) (*security.AccessTokenClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.AccessTokenClaims)
	return claims, ok
}
