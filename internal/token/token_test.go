package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authz-core/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	now := time.Now()
	return Claims{
		Email: "u@example.com",
		Role:  "general",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ID:        "jti-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestIssueThenVerify(t *testing.T) {
	iss, err := NewIssuer(testSecret, 15*time.Minute)
	require.NoError(t, err)
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	at, err := iss.Issue(model.User{ID: 7, Email: "a@b.c", Role: "admin"})
	require.NoError(t, err)
	require.NotEmpty(t, at.ID)

	id, err := v.VerifyHeader("Bearer " + at.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id.SubjectID)
	assert.Equal(t, "a@b.c", id.Email)
	assert.Equal(t, "admin", id.Role)
	assert.Equal(t, at.ID, id.TokenID)
	assert.WithinDuration(t, at.Exp, id.ExpiresAt, time.Second)
}

func TestIssueGeneratesUniqueTokenIDs(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	a, err := iss.Issue(model.User{ID: 1})
	require.NoError(t, err)
	b, err := iss.Issue(model.User{ID: 1})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestVerifyHeaderMissingOrMalformed(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	for _, h := range []string{"", "Basic abc", "Bearer", "Bearer   ", "bearer token"} {
		_, err := v.VerifyHeader(h)
		assert.ErrorIs(t, err, ErrNoCredential, "header %q", h)
	}
}

func TestVerifyExpired(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	at, err := iss.Issue(model.User{ID: 3})
	require.NoError(t, err)

	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	_, err = v.Verify(at.Token)
	assert.ErrorIs(t, err, ErrCredentialExpired)
}

func TestVerifyInvalid(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	noJTI := validClaims()
	noJTI.ID = ""
	badSubject := validClaims()
	badSubject.Subject = "not-a-number"
	noExp := validClaims()
	noExp.ExpiresAt = nil

	cases := map[string]string{
		"garbage":      "not.a.jwt",
		"wrong secret": sign(t, "another-secret-another-secret!!", jwt.SigningMethodHS256, validClaims()),
		"wrong alg":    sign(t, testSecret, jwt.SigningMethodHS512, validClaims()),
		"missing jti":  sign(t, testSecret, jwt.SigningMethodHS256, noJTI),
		"bad subject":  sign(t, testSecret, jwt.SigningMethodHS256, badSubject),
		"missing exp":  sign(t, testSecret, jwt.SigningMethodHS256, noExp),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.ErrorIs(t, err, ErrCredentialInvalid)
		})
	}
}

func TestVerifyNotYetValidIsGenericFailure(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	c := validClaims()
	c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))
	_, err = v.Verify(sign(t, testSecret, jwt.SigningMethodHS256, c))
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.NotErrorIs(t, err, ErrCredentialInvalid)
}

func TestConstructorsRejectEmptySecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.Error(t, err)
	_, err = NewIssuer("", time.Minute)
	assert.Error(t, err)
	_, err = NewIssuer(testSecret, 0)
	assert.Error(t, err)
}
