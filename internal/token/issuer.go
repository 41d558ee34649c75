package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/authz-core/internal/model"
)

// AccessToken is a signed JWT together with the values the caller needs to
// return it to a client or revoke it later.
type AccessToken struct {
	Token string    `json:"token"`
	ID    string    `json:"-"`
	Exp   time.Time `json:"expires"`
}

// Issuer signs access tokens.  Verification lives in Verifier; both must
// be built from the same secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer producing tokens valid for ttl.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: issuer secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token: issuer ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue builds and signs a token for u.  Every token gets a fresh random
// jti so that it can be blacklisted individually.
func (i *Issuer) Issue(u model.User) (AccessToken, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	jti := uuid.NewString()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ID: jti, Exp: exp}, nil
}
