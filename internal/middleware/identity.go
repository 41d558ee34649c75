package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authz-core/internal/token"
)

const identityKey = "identity"

// SetIdentity stores the verified identity on the request context.
func SetIdentity(c echo.Context, id token.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the identity stored by Authenticate, if any.
func IdentityFrom(c echo.Context) (token.Identity, bool) {
	id, ok := c.Get(identityKey).(token.Identity)
	return id, ok && id.SubjectID != 0
}

// userID returns the authenticated subject ID as a string, or "anon".
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.SubjectID, 10)
	}
	return "anon"
}
