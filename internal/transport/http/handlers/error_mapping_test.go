package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/user-directory/internal/infra/security"
	"github.com/arklim/user-directory/internal/repository"
	"github.com/arklim/user-directory/internal/usecase"
)

func respond(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondWithError(c, err)

	var body ErrorResponse
	if decodeErr := json.Unmarshal(rr.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode body: %v", decodeErr)
	}
	return rr.Code, body
}

func TestRespondWithErrorStatuses(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"duplicate":  {fmt.Errorf("register: %w", usecase.ErrEmailAlreadyExists), http.StatusConflict},
		"weak":       {usecase.ErrPasswordPolicyViolation, http.StatusBadRequest},
		"input":      {&usecase.InputError{Fields: []usecase.FieldError{{Field: "email", Message: "is required"}}}, http.StatusBadRequest},
		"login":      {usecase.ErrInvalidCredentials, http.StatusUnauthorized},
		"forbidden":  {usecase.ErrForbidden, http.StatusForbidden},
		"missing":    {fmt.Errorf("get: %w", repository.ErrNotFound), http.StatusNotFound},
		"store down": {errors.New("connection reset"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		status, body := respond(t, tc.err)
		if status != tc.status {
			t.Fatalf("%s: expected %d, got %d", name, tc.status, status)
		}
		if name == "store down" && body.Error != "internal server error" {
			t.Fatalf("store failure leaked detail: %q", body.Error)
		}
		if name == "input" && len(body.Fields) != 1 {
			t.Fatalf("expected field details, got %+v", body)
		}
	}
}

func TestRespondWithErrorHidesTokenFailureReason(t *testing.T) {
	expiredStatus, expired := respond(t, security.ErrExpiredToken)
	invalidStatus, invalid := respond(t, fmt.Errorf("%w: signature is invalid", security.ErrInvalidToken))

	if expiredStatus != http.StatusUnauthorized || invalidStatus != http.StatusUnauthorized {
		t.Fatalf("expected 401s, got %d and %d", expiredStatus, invalidStatus)
	}
	if expired.Error != invalid.Error {
		t.Fatalf("token failures must read the same, got %q and %q", expired.Error, invalid.Error)
	}
}
