package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/rankauskaite/fittrack/token"
	"github.com/rankauskaite/fittrack/users"
)

const refreshTokenBytes = 32 // 256 bits

// dummyHash is compared against when the username does not resolve, so the
// two failure paths take comparable time.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Pair is the credential tuple handed to a client on login and on every
// renewal. Clients store it, attach the access token to calls, and replace
// the whole pair on rotation; they never mutate it piecemeal.
type Pair struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	Username     string         `json:"username"`
	Role         users.RoleType `json:"role"`
}

// Issuer mints, rotates and revokes session pairs. It is the only writer of
// the per-user refresh state held in the user repo.
type Issuer struct {
	repo       users.Repo
	tokens     *token.Manager
	refreshTTL time.Duration
	nowFunc    func() time.Time
}

type IssuerOption func(*Issuer)

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.refreshTTL = ttl
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func NewIssuer(repo users.Repo, tokens *token.Manager, options ...IssuerOption) (*Issuer, error) {
	if repo == nil {
		return nil, errors.New("[NewIssuer] user repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewIssuer] token manager is required")
	}

	issuer := &Issuer{
		repo:       repo,
		tokens:     tokens,
		refreshTTL: 7 * 24 * time.Hour,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(issuer)
	}
	return issuer, nil
}

// Authenticate verifies the credentials and issues a fresh pair. The user's
// previous refresh token, if any, is invalidated by the overwrite.
func (i *Issuer) Authenticate(ctx context.Context, username, password string) (*Pair, error) {
	user, err := i.repo.GetByUsername(ctx, username)
	if err != nil {
		users.CheckPasswordHash(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	refreshValue, err := newRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, "Issuer.Authenticate")
	}
	exp := i.nowFunc().Add(i.refreshTTL)
	if err := i.repo.SetRefreshToken(ctx, user.ID, &refreshValue, &exp); err != nil {
		return nil, errors.Wrap(err, "Issuer.Authenticate SetRefreshToken")
	}

	return i.mintPair(user, refreshValue)
}

// Renew exchanges a live refresh token for a brand-new pair, rotating the
// stored value so the presented one is unusable afterwards. An expired value
// is refused but not cleared.
func (i *Issuer) Renew(ctx context.Context, refreshValue string) (*Pair, error) {
	if refreshValue == "" {
		return nil, ErrRefreshTokenNotFound
	}

	user, err := i.repo.GetByRefreshToken(ctx, refreshValue)
	if err != nil {
		return nil, ErrRefreshTokenNotFound
	}
	if user.RefreshTokenExp == nil || !user.RefreshTokenExp.After(i.nowFunc()) {
		return nil, ErrRefreshTokenExpired
	}

	next, err := newRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, "Issuer.Renew")
	}
	exp := i.nowFunc().Add(i.refreshTTL)

	// Compare-and-set: if a concurrent renewal rotated the value between our
	// read and this write, the presented value is no longer live and the
	// caller gets the same answer as any other replayed token.
	err = i.repo.RotateRefreshToken(ctx, user.ID, refreshValue, next, exp)
	if errors.Is(err, users.ErrStaleRefreshToken) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "Issuer.Renew RotateRefreshToken")
	}

	return i.mintPair(user, next)
}

// Revoke clears the stored refresh state for whichever user holds the
// presented value. Logout is idempotent from the caller's perspective: a
// second call with the same value reports ErrRefreshTokenNotFound, which
// callers treat as success.
func (i *Issuer) Revoke(ctx context.Context, refreshValue string) error {
	if refreshValue == "" {
		return ErrRefreshTokenNotFound
	}

	user, err := i.repo.GetByRefreshToken(ctx, refreshValue)
	if err != nil {
		return ErrRefreshTokenNotFound
	}
	if err := i.repo.SetRefreshToken(ctx, user.ID, nil, nil); err != nil {
		return errors.Wrap(err, "Issuer.Revoke SetRefreshToken")
	}
	return nil
}

func (i *Issuer) mintPair(user *users.User, refreshValue string) (*Pair, error) {
	accessToken, err := i.tokens.Issue(user)
	if err != nil {
		return nil, errors.Wrap(err, "mintPair Issue")
	}
	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		Username:     user.Username,
		Role:         user.Role,
	}, nil
}

func newRefreshToken() (string, error) {
	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "newRefreshToken rand.Read")
	}
	return hex.EncodeToString(tokenBytes), nil
}
