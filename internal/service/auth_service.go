package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/model"
	"github.com/iliyamo/authz-core/internal/repository"
	"github.com/iliyamo/authz-core/internal/token"
	"github.com/iliyamo/authz-core/internal/utils"
)

// UserFinder looks users and their assigned roles up for login.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (model.User, error)
	FindRolesForSubject(ctx context.Context, subjectID uint64) ([]model.Role, error)
}

// RolePrecedence orders role names for the token's single role claim: the
// first one the subject holds wins.  Held roles not listed here rank after
// these, by name.
var RolePrecedence = []string{"admin", "manager", "general"}

// Revoker writes blacklist entries; see revocation.Blacklist.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// AuthService issues access tokens on login and revokes them on logout.
type AuthService struct {
	users   UserFinder
	issuer  *token.Issuer
	revoker Revoker
	log     *logrus.Logger
	now     func() time.Time

	cost      int
	dummyOnce sync.Once
	dummy     []byte
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithPasswordCost sets the bcrypt cost stored hashes are made with, so a
// login for an unknown email costs the same as a real comparison.
func WithPasswordCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

// NewAuthService wires the login/logout flow.
func NewAuthService(users UserFinder, issuer *token.Issuer, revoker Revoker, log *logrus.Logger, opts ...AuthOption) *AuthService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &AuthService{users: users, issuer: issuer, revoker: revoker, log: log, now: time.Now, cost: utils.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks email and password and returns the user with a fresh access
// token.  Unknown emails, wrong passwords and inactive accounts all yield
// ErrInvalidCredentials.  The token's role claim is the highest ranked role
// assigned to the user at this moment; a user with no assignments gets an
// empty claim.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.User, token.AccessToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.User{}, token.AccessToken{}, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}

	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.BurnPassword(s.dummyHash(), password)
			return model.User{}, token.AccessToken{}, ErrInvalidCredentials
		}
		return model.User{}, token.AccessToken{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return model.User{}, token.AccessToken{}, ErrInvalidCredentials
	}

	roles, err := s.users.FindRolesForSubject(ctx, u.ID)
	if err != nil {
		return model.User{}, token.AccessToken{}, fmt.Errorf("load roles: %w", err)
	}
	u.Role = ClaimRole(roles)

	at, err := s.issuer.Issue(u)
	if err != nil {
		return model.User{}, token.AccessToken{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.WithFields(logrus.Fields{"subject_id": u.ID, "token_id": at.ID, "role": u.Role}).Info("login")
	return u, at, nil
}

// Logout blacklists the presented token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, id token.Identity) error {
	if err := s.revoker.Revoke(ctx, id.TokenID, id.Remaining(s.now())); err != nil {
		s.log.WithFields(logrus.Fields{"subject_id": id.SubjectID, "token_id": id.TokenID, "error": err}).
			Error("token revocation failed")
		return fmt.Errorf("revoke token: %w", err)
	}
	s.log.WithFields(logrus.Fields{"subject_id": id.SubjectID, "token_id": id.TokenID}).Info("logout")
	return nil
}

// ClaimRole picks the role carried in the token from the roles a subject
// holds, ranked by RolePrecedence.
func ClaimRole(roles []model.Role) string {
	if len(roles) == 0 {
		return ""
	}
	held := make(map[string]bool, len(roles))
	for _, r := range roles {
		held[r.Name] = true
	}
	for _, name := range RolePrecedence {
		if held[name] {
			return name
		}
	}
	best := roles[0].Name
	for _, r := range roles[1:] {
		if r.Name < best {
			best = r.Name
		}
	}
	return best
}

func (s *AuthService) dummyHash() []byte {
	s.dummyOnce.Do(func() { s.dummy = utils.DummyHash(s.cost) })
	return s.dummy
}
