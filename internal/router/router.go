// Package router wires handlers and authorization gates onto Echo routes.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authz-core/internal/handler"
	"github.com/iliyamo/authz-core/internal/middleware"
)

// Deps carries everything the routes need.
type Deps struct {
	Auth         *handler.AuthHandler
	RBAC         *handler.RBACHandler
	Health       echo.HandlerFunc
	Authenticate echo.MiddlewareFunc
	Permissions  middleware.PermissionChecker
	LoginLimiter echo.MiddlewareFunc
	Metrics      http.Handler
}

// Elevated roles allowed to act on other users' records.
var (
	userAdminRoles = []string{"admin"}
	roleViewRoles  = []string{"admin", "manager"}
)

// Register maps every route.  Each protected route names its gate next
// to the handler so the policy is visible in one place.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	pub := e.Group("/v1/auth")
	if d.LoginLimiter != nil {
		pub.POST("/login", d.Auth.Login, d.LoginLimiter)
	} else {
		pub.POST("/login", d.Auth.Login)
	}

	v1 := e.Group("/v1", d.Authenticate)
	v1.POST("/auth/logout", d.Auth.Logout)
	v1.GET("/me", d.Auth.Me)

	perm := func(resource, action string) echo.MiddlewareFunc {
		return middleware.RequirePermission(d.Permissions, resource, action)
	}
	self := middleware.RequireSelfOrRole("id", userAdminRoles...)

	users := v1.Group("/users")
	users.GET("/:id", d.RBAC.GetUser, self)
	users.GET("/:id/permissions/check", d.RBAC.CheckPermission, self)
	users.POST("/:id/roles", d.RBAC.AssignRole, perm("roles", "assign"))
	users.DELETE("/:id/roles/:role", d.RBAC.RemoveRole, perm("roles", "assign"))

	roles := v1.Group("/roles")
	roles.GET("", d.RBAC.ListRoles, middleware.RequireRoles(roleViewRoles...))
	roles.POST("", d.RBAC.CreateRole, perm("roles", "create"))
	roles.DELETE("/:name", d.RBAC.DeleteRole, perm("roles", "delete"))
	roles.POST("/:name/permissions", d.RBAC.GrantPermission, perm("roles", "grant"))
	roles.DELETE("/:name/permissions/:resource/:action", d.RBAC.RevokePermission, perm("roles", "grant"))
}
