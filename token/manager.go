package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rankauskaite/fittrack/users"
)

// ErrInvalidToken covers every rejected access token: bad signature, wrong
// issuer or audience, malformed input, expiry. HTTP callers are not told
// which sub-case applied.
var ErrInvalidToken = errors.New("invalid access token")

// Claims carried by an access token. The token is self-contained: a valid
// signature plus an unexpired exp is sufficient proof of identity, no
// storage lookup involved.
type Claims struct {
	Role users.RoleType `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Username returns the subject claim.
func (c *Claims) Username() string {
	return c.Subject
}

// Manager mints and verifies access tokens.
type Manager struct {
	signer   Signer
	issuer   string
	audience string
	expiry   time.Duration
	nowFunc  func() time.Time
}

type ManagerOption func(*Manager)

// WithExpiry overrides the access token lifetime.
func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(signer Signer, issuer, audience string, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
		expiry:   15 * time.Minute,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Expiry returns the configured access token lifetime.
func (m *Manager) Expiry() time.Duration {
	return m.expiry
}

// Issue creates a signed access token for the user.
func (m *Manager) Issue(user *users.User) (string, error) {
	now := m.nowFunc()
	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.Username,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "token.Manager.Issue")
	}
	return signed, nil
}

// Verify parses and validates an access token. Expiry is checked with zero
// leeway: a token whose exp equals the current instant is already rejected.
func (m *Manager) Verify(rawToken string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	// exp must be strictly in the future, with no skew tolerance. Re-check
	// here so the guarantee does not depend on the parser's leeway defaults.
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(m.nowFunc()) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
