package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/apierror"
	"github.com/iliyamo/authz-core/internal/middleware"
	"github.com/iliyamo/authz-core/internal/service"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     *service.AuthService
	Log      *logrus.Logger
	validate *validator.Validate
}

func NewAuthHandler(auth *service.AuthService, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Log: log, validate: validator.New()}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type loginResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login: verify credentials and return an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := decode(c, h.validate, &req); err != nil {
		return invalid(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, at, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, loginResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access: tokenPart{Token: at.Token, Expires: at.Exp},
	})
}

// Logout: revoke the token that authenticated this request.
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apierror.Write(c, http.StatusUnauthorized, apierror.Unauthenticated, "authentication required")
	}
	if err := h.Auth.Logout(c.Request().Context(), id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: the identity carried by the bearer token.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apierror.Write(c, http.StatusUnauthorized, apierror.Unauthenticated, "authentication required")
	}
	return c.JSON(http.StatusOK, id)
}
