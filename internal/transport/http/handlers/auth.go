package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/user-directory/internal/usecase"
)

// AuthHandler exposes password login.
type AuthHandler struct {
	auth *usecase.AuthService
	now  func() time.Time
}

func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth, now: time.Now}
}

// RegisterRoutes binds authentication routes under r.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Missing fields fail the same way as wrong ones.
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, usecase.ErrInvalidCredentials.Error()))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	expiresIn := int(result.Token.ExpiresAt.Sub(h.now()).Seconds())
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.Token.Token,
		TokenType:   "Bearer",
		ExpiresAt:   result.Token.ExpiresAt,
		ExpiresIn:   max(expiresIn, 0),
		User:        newUserResponse(result.User),
	})
}
