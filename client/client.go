package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/rankauskaite/fittrack/session"
)

var (
	// ErrSessionExpired is the terminal client-side signal: a renewal attempt
	// was rejected, local session state has been purged, and the end user
	// must authenticate again.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidCredentials is returned by Login on a 401.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Client makes calls against the FitTrack API with the stored access token
// attached, and transparently recovers from an expired access token by
// renewing with the stored refresh token and retrying the original request
// exactly once.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   Store

	// renewGroup collapses concurrent renewal attempts into one in-flight
	// exchange. Without it, two calls rejected at the same instant would
	// each present the same refresh value and the loser would be logged out
	// spuriously, because renewal rotates the stored value on every use.
	renewGroup singleflight.Group
}

type Option func(*Client)

// WithHTTPClient overrides the underlying transport.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithStore overrides the credential store.
func WithStore(store Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   http.DefaultClient,
		store:   NewMemoryStore(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Session returns the currently stored session state. It may change as a
// side effect of any Do call; callers must not assume the credential used on
// entry is still the one stored on exit.
func (c *Client) Session() State {
	return c.store.Load()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates and stores the returned session pair.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var pair session.Pair
	status, err := c.postJSON(ctx, "/api/login", loginRequest{Username: username, Password: password}, &pair)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return ErrInvalidCredentials
	}
	if status != http.StatusOK {
		return errors.Errorf("login: unexpected status %d", status)
	}

	c.store.Save(State{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Username:     pair.Username,
		Role:         pair.Role,
	})
	return nil
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout revokes the stored refresh token and clears local state. A 404 from
// the server (value already gone) counts as success.
func (c *Client) Logout(ctx context.Context) error {
	state := c.store.Load()
	c.store.Clear()
	if state.RefreshToken == "" {
		return nil
	}

	status, err := c.postJSON(ctx, "/api/logout", logoutRequest{RefreshToken: state.RefreshToken}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return errors.Errorf("logout: unexpected status %d", status)
	}
	return nil
}

// Do sends the request with the stored access token attached as a bearer
// credential. On a 401 it renews the session and retries the original
// request once; every other outcome, including transport errors, is returned
// untouched.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if state := c.store.Load(); state.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+state.AccessToken)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		// No response at all: not an authorization failure, no renewal.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	accessToken, renewErr := c.renew(req.Context())
	if renewErr != nil {
		resp.Body.Close()
		c.store.Clear()
		return nil, ErrSessionExpired
	}
	resp.Body.Close()

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+accessToken)

	// Single retry: whatever comes back now is the caller's answer.
	return c.httpc.Do(retry)
}

// Get is a convenience wrapper around Do for JSON GET endpoints.
func (c *Client) Get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if into == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// renew exchanges the stored refresh token for a new pair. Concurrent
// callers share a single in-flight exchange and all receive its result.
func (c *Client) renew(ctx context.Context) (string, error) {
	result, err, _ := c.renewGroup.Do("renew", func() (any, error) {
		state := c.store.Load()
		if state.RefreshToken == "" {
			return "", ErrSessionExpired
		}

		var renewed refreshResponse
		status, err := c.postJSON(ctx, "/api/token/refresh", refreshRequest{RefreshToken: state.RefreshToken}, &renewed)
		if err != nil {
			return "", err
		}
		if status != http.StatusOK {
			return "", ErrSessionExpired
		}

		c.store.Save(State{
			AccessToken:  renewed.AccessToken,
			RefreshToken: renewed.RefreshToken,
			Username:     state.Username,
			Role:         state.Role,
		})
		return renewed.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, into any) (int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, errors.Wrap(err, "postJSON marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, errors.Wrap(err, "postJSON new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return resp.StatusCode, errors.Wrap(err, "postJSON decode")
		}
	}
	return resp.StatusCode, nil
}

// cloneRequest produces a re-sendable copy of req. Requests with a one-shot
// body (no GetBody) cannot be replayed.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("cannot retry request without GetBody")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, errors.Wrap(err, "cloneRequest GetBody")
	}
	clone.Body = body
	return clone, nil
}
