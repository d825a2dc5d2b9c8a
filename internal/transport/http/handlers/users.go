package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/user-directory/internal/transport/http/middleware"
	"github.com/arklim/user-directory/internal/usecase"
)

// UserHandler serves the user directory.
type UserHandler struct {
	auth  *usecase.AuthService
	users *usecase.UserService
}

func NewUserHandler(auth *usecase.AuthService, users *usecase.UserService) *UserHandler {
	return &UserHandler{auth: auth, users: users}
}

// RegisterRoutes binds /users. Registration is anonymous; everything else
// passes through requireAuth.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	r.POST("", h.create)

	authed := r.Group("", requireAuth)
	authed.GET("", h.list)
	authed.GET("/:id", h.get)
	authed.PATCH("/:id", h.update)
	authed.DELETE("/:id", h.delete)
}

func (h *UserHandler) create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.Header("Location", c.Request.URL.Path+"/"+user.ID)
	c.JSON(http.StatusCreated, newUserResponse(*user))
}

func (h *UserHandler) list(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	c.JSON(http.StatusOK, UserListResponse{Users: out, Total: len(out)})
}

func (h *UserHandler) get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *UserHandler) update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	actorID, _ := middleware.GetAuthenticatedUserID(c)
	user, err := h.users.Update(c.Request.Context(), actorID, c.Param("id"), usecase.UpdateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *UserHandler) delete(c *gin.Context) {
	actorID, _ := middleware.GetAuthenticatedUserID(c)
	if err := h.users.Delete(c.Request.Context(), actorID, c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
