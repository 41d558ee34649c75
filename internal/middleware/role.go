package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authz-core/internal/apierror"
)

// PermissionChecker produces verdicts; see service.PermissionService.
type PermissionChecker interface {
	HasPermission(ctx context.Context, subjectID uint64, resource, action string) bool
}

func unauthenticated(c echo.Context) error {
	return apierror.Write(c, http.StatusUnauthorized, apierror.Unauthenticated, "authentication required")
}

// RequirePermission admits subjects whose roles grant (resource, action).
// The checker fails closed, so an unreachable store denies.
func RequirePermission(pc PermissionChecker, resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return unauthenticated(c)
			}
			if !pc.HasPermission(c.Request().Context(), id.SubjectID, resource, action) {
				return apierror.Write(c, http.StatusForbidden, apierror.InsufficientPermissions,
					fmt.Sprintf("missing permission %s:%s", resource, action))
			}
			return next(c)
		}
	}
}

// roleSet is a constant-time membership test over allowed role names.
type roleSet map[string]bool

func newRoleSet(roles []string) roleSet {
	s := make(roleSet, len(roles))
	for _, r := range roles {
		s[r] = true
	}
	return s
}

func (s roleSet) String() string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, r)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// RequireRoles admits subjects whose token role claim is one of roles.  The
// claim is the highest ranked role assigned at login (see
// service.ClaimRole); assignments made since then are picked up on the next
// login.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	allowed := newRoleSet(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return unauthenticated(c)
			}
			if !allowed[id.Role] {
				return apierror.Write(c, http.StatusForbidden, apierror.InsufficientPermissions,
					"requires one of roles: "+allowed.String())
			}
			return next(c)
		}
	}
}

// RequireSelfOrRole admits a subject whose ID equals the path parameter
// param, or whose role is one of roles.  Self-access never needs a role.
func RequireSelfOrRole(param string, roles ...string) echo.MiddlewareFunc {
	allowed := newRoleSet(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return unauthenticated(c)
			}
			if target, err := strconv.ParseUint(c.Param(param), 10, 64); err == nil && target == id.SubjectID {
				return next(c)
			}
			if allowed[id.Role] {
				return next(c)
			}
			return apierror.Write(c, http.StatusForbidden, apierror.InsufficientPermissions,
				"access limited to the resource owner or roles: "+allowed.String())
		}
	}
}
