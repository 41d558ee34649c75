package handler

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/apierror"
	"github.com/iliyamo/authz-core/internal/middleware"
	"github.com/iliyamo/authz-core/internal/model"
	"github.com/iliyamo/authz-core/internal/service"
)

// RBACHandler exposes user role assignments and role management.
type RBACHandler struct {
	Perms    *service.PermissionService
	Log      *logrus.Logger
	validate *validator.Validate
}

func NewRBACHandler(perms *service.PermissionService, log *logrus.Logger) *RBACHandler {
	return &RBACHandler{Perms: perms, Log: log, validate: validator.New()}
}

type assignRoleReq struct {
	Role string `json:"role" validate:"required,max=64"`
}

type createRoleReq struct {
	Name        string                  `json:"name" validate:"required,max=64"`
	Description string                  `json:"description" validate:"max=255"`
	Permissions []service.PermissionRef `json:"permissions" validate:"dive"`
}

type userResp struct {
	ID     uint64   `json:"id"`
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	Active bool     `json:"is_active"`
	Roles  []string `json:"roles"`
}

type checkResp struct {
	UserID   uint64 `json:"user_id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func badID(c echo.Context) error {
	return apierror.Write(c, http.StatusBadRequest, apierror.ValidationFailed, "invalid user id")
}

func actorID(c echo.Context) uint64 {
	id, _ := middleware.IdentityFrom(c)
	return id.SubjectID
}

// GetUser: GET /v1/users/:id
func (h *RBACHandler) GetUser(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	u, roles, err := h.Perms.Profile(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return c.JSON(http.StatusOK, userResp{ID: u.ID, Email: u.Email, Role: u.Role, Active: u.IsActive, Roles: names})
}

// CheckPermission: GET /v1/users/:id/permissions/check?resource=&action=
func (h *RBACHandler) CheckPermission(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	resource, action := c.QueryParam("resource"), c.QueryParam("action")
	if err := service.ValidRef(resource, action); err != nil {
		return fail(c, h.Log, err)
	}
	allowed := h.Perms.HasPermission(c.Request().Context(), id, resource, action)
	return c.JSON(http.StatusOK, checkResp{UserID: id, Resource: resource, Action: action, Allowed: allowed})
}

// AssignRole: POST /v1/users/:id/roles
func (h *RBACHandler) AssignRole(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	var req assignRoleReq
	if err := decode(c, h.validate, &req); err != nil {
		return invalid(c, err)
	}
	if err := h.Perms.AssignRole(c.Request().Context(), actorID(c), id, req.Role); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveRole: DELETE /v1/users/:id/roles/:role
func (h *RBACHandler) RemoveRole(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	if err := h.Perms.RemoveRole(c.Request().Context(), actorID(c), id, c.Param("role")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListRoles: GET /v1/roles
func (h *RBACHandler) ListRoles(c echo.Context) error {
	roles, err := h.Perms.ListRoles(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": roles})
}

// CreateRole: POST /v1/roles
func (h *RBACHandler) CreateRole(c echo.Context) error {
	var req createRoleReq
	if err := decode(c, h.validate, &req); err != nil {
		return invalid(c, err)
	}
	role, err := h.Perms.CreateRole(c.Request().Context(), actorID(c), service.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, role)
}

// DeleteRole: DELETE /v1/roles/:name
func (h *RBACHandler) DeleteRole(c echo.Context) error {
	if err := h.Perms.DeleteRole(c.Request().Context(), actorID(c), c.Param("name")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GrantPermission: POST /v1/roles/:name/permissions
func (h *RBACHandler) GrantPermission(c echo.Context) error {
	var req service.PermissionRef
	if err := decode(c, h.validate, &req); err != nil {
		return invalid(c, err)
	}
	if err := h.Perms.GrantPermission(c.Request().Context(), actorID(c), c.Param("name"), req.Resource, req.Action); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokePermission: DELETE /v1/roles/:name/permissions/:resource/:action
func (h *RBACHandler) RevokePermission(c echo.Context) error {
	err := h.Perms.RevokePermission(c.Request().Context(), actorID(c), c.Param("name"), c.Param("resource"), c.Param("action"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
