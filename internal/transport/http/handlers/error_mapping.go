package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/infra/logger"
	"github.com/arklim/user-directory/internal/infra/security"
	"github.com/arklim/user-directory/internal/repository"
	"github.com/arklim/user-directory/internal/transport/http/middleware"
	"github.com/arklim/user-directory/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// domainErrors is checked in order; the first match wins.
var domainErrors = []ErrorCase{
	{Err: usecase.ErrEmailAlreadyExists, Status: http.StatusConflict, Message: "email already registered"},
	{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
	{Err: security.ErrExpiredToken, Status: http.StatusUnauthorized, Message: middleware.InvalidTokenMessage},
	{Err: security.ErrInvalidToken, Status: http.StatusUnauthorized, Message: middleware.InvalidTokenMessage},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "you may only modify your own account"},
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
}

// RespondWithError writes the mapped status for err. Unknown errors become a
// 500 with a generic message and are logged with the request id.
func RespondWithError(c *gin.Context, err error) {
	var inputErr *usecase.InputError
	if errors.As(err, &inputErr) {
		resp := NewErrorResponse(c, "invalid input")
		resp.Fields = inputErr.Fields
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	if errors.Is(err, usecase.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid input"))
		return
	}

	for _, cs := range domainErrors {
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	logger.WithContext(c.Request.Context()).Error("request failed",
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "internal server error"))
}

// badJSON answers a body that could not be decoded.
func badJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed request body"))
}
