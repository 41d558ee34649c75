package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/apierror"
	"github.com/iliyamo/authz-core/internal/service"
)

// conflicts maps mutation errors to their 400 codes.
var conflicts = []struct {
	err  error
	code string
}{
	{service.ErrDuplicateAssignment, apierror.DuplicateAssignment},
	{service.ErrAssignmentNotFound, apierror.AssignmentNotFound},
	{service.ErrDuplicateName, apierror.DuplicateName},
	{service.ErrDuplicateGrant, apierror.DuplicateGrant},
	{service.ErrGrantNotFound, apierror.GrantNotFound},
	{service.ErrSystemRole, apierror.SystemRole},
}

// fail renders a service error.  Anything unrecognised is logged and
// reported as INTERNAL without its text.
func fail(c echo.Context, log *logrus.Logger, err error) error {
	for _, m := range conflicts {
		if errors.Is(err, m.err) {
			return apierror.Write(c, http.StatusBadRequest, m.code, m.err.Error())
		}
	}
	switch {
	case errors.Is(err, service.ErrRoleNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPermissionNotFound):
		return apierror.Write(c, http.StatusNotFound, apierror.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return apierror.Write(c, http.StatusBadRequest, apierror.ValidationFailed, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return apierror.Write(c, http.StatusUnauthorized, apierror.Unauthenticated, "invalid email or password")
	}
	log.WithFields(logrus.Fields{
		"path":       c.Path(),
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		"error":      err,
	}).Error("request failed")
	return apierror.Write(c, http.StatusInternalServerError, apierror.Internal, "internal error")
}

// decode binds the request body into dst and validates its tags.  The
// returned error text is safe to show to the client.
func decode(c echo.Context, v *validator.Validate, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid body")
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.New("invalid body")
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
		}
		return errors.New("invalid fields: " + strings.Join(fields, ", "))
	}
	return nil
}

func invalid(c echo.Context, err error) error {
	return apierror.Write(c, http.StatusBadRequest, apierror.ValidationFailed, err.Error())
}
