package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/apierror"
	"github.com/iliyamo/authz-core/internal/token"
)

// RevocationChecker answers whether a token ID has been revoked, applying
// its own failure policy.  See revocation.Checker.
type RevocationChecker interface {
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// Authenticate verifies the bearer credential, rejects revoked tokens and
// stores the identity for downstream gates and handlers.  Each failure has
// its own error code so clients can tell "log in again" from "refresh".
func Authenticate(v *token.Verifier, revoked RevocationChecker, log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := v.VerifyHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			switch {
			case err == nil:
			case errors.Is(err, token.ErrNoCredential):
				return apierror.Write(c, http.StatusUnauthorized, apierror.Unauthenticated,
					"missing or malformed bearer token")
			case errors.Is(err, token.ErrCredentialExpired):
				return apierror.Write(c, http.StatusUnauthorized, apierror.TokenExpired,
					"token expired, please re-authenticate")
			case errors.Is(err, token.ErrCredentialInvalid):
				return apierror.Write(c, http.StatusUnauthorized, apierror.TokenInvalid,
					"token is invalid")
			default:
				log.WithError(err).Debug("token verification failed")
				return apierror.Write(c, http.StatusUnauthorized, apierror.TokenVerificationFailed,
					"token verification failed")
			}

			isRevoked, err := revoked.Revoked(c.Request().Context(), id.TokenID)
			if err != nil {
				return apierror.Write(c, http.StatusUnauthorized, apierror.Unauthenticated,
					"unable to confirm token status, try again later")
			}
			if isRevoked {
				return apierror.Write(c, http.StatusUnauthorized, apierror.TokenRevoked,
					"token has been revoked, please log in again")
			}

			SetIdentity(c, id)
			return next(c)
		}
	}
}
