package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// The four verification outcomes are distinct so callers can surface a
// specific error code for each.
var (
	ErrNoCredential       = errors.New("token: missing or malformed bearer credential")
	ErrCredentialExpired  = errors.New("token: credential expired")
	ErrCredentialInvalid  = errors.New("token: credential invalid")
	ErrVerificationFailed = errors.New("token: verification failed")
)

// Verifier checks signature and expiry of HS256 access tokens against a
// shared secret.  It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns a Verifier for the given secret.  An empty secret is
// rejected so a misconfigured process can never accept unsigned tokens.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("token: verifier secret is empty")
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// VerifyHeader verifies the credential carried in an Authorization header.
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	raw, ok := BearerToken(header)
	if !ok {
		return Identity{}, ErrNoCredential
	}
	return v.Verify(raw)
}

// Verify parses raw, checks its signature and registered claims and
// returns the embedded identity.
func (v *Verifier) Verify(raw string) (Identity, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, classify(err)
	}
	id, ok := claims.identity()
	if !ok {
		return Identity{}, ErrCredentialInvalid
	}
	return id, nil
}

// classify maps jwt parse errors onto the package sentinels.  Expiry is
// checked first because an expired token also reports invalid claims.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrCredentialExpired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrCredentialInvalid
	default:
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
}
