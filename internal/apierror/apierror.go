// Package apierror renders the error body shared by middleware and
// handlers: {"error": {"code": "...", "message": "..."}}.
package apierror

import "github.com/labstack/echo/v4"

// Stable machine-readable codes.
const (
	Unauthenticated         = "UNAUTHENTICATED"
	TokenExpired            = "TOKEN_EXPIRED"
	TokenInvalid            = "TOKEN_INVALID"
	TokenRevoked            = "TOKEN_REVOKED"
	TokenVerificationFailed = "TOKEN_VERIFICATION_FAILED"
	InsufficientPermissions = "INSUFFICIENT_PERMISSIONS"

	DuplicateAssignment = "DUPLICATE_ASSIGNMENT"
	AssignmentNotFound  = "ASSIGNMENT_NOT_FOUND"
	DuplicateName       = "DUPLICATE_NAME"
	DuplicateGrant      = "DUPLICATE_GRANT"
	GrantNotFound       = "GRANT_NOT_FOUND"
	SystemRole          = "SYSTEM_ROLE"

	NotFound         = "NOT_FOUND"
	ValidationFailed = "VALIDATION_FAILED"
	Internal         = "INTERNAL"
	TooManyRequests  = "TOO_MANY_REQUESTS"
)

// Detail is the inner error object.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Body is the JSON envelope of every error response.
type Body struct {
	Error Detail `json:"error"`
}

// Write sends an error response and ends the request.
func Write(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Body{Error: Detail{Code: code, Message: message}})
}
