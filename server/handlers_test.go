package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankauskaite/fittrack/plans"
	fakeplanrepo "github.com/rankauskaite/fittrack/plans/repofake"
	"github.com/rankauskaite/fittrack/server"
	"github.com/rankauskaite/fittrack/session"
	"github.com/rankauskaite/fittrack/token"
	"github.com/rankauskaite/fittrack/users"
	fakeuserrepo "github.com/rankauskaite/fittrack/users/repofake"
)

const (
	secretStr        = "test-secret-1234"
	issuerStr        = "fittrack-test"
	audienceStr      = "fittrack-api"
	testUsername     = "tadas"
	testUserPassword = "password123"
	accessTTL        = 5 * time.Minute
	refreshTTL       = 48 * time.Hour
)

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	srv    *server.Server
	repo   *fakeuserrepo.FakeUserRepo
	plans  *fakeplanrepo.FakePlanRepo
	issuer *session.Issuer
	clock  *fakeClock
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	clock := newFakeClock()
	repo := fakeuserrepo.NewFakeUserRepo()
	planRepo := fakeplanrepo.NewFakePlanRepo()

	tokens := token.NewManager(
		token.NewHMACSigner(secretStr),
		issuerStr,
		audienceStr,
		token.WithExpiry(accessTTL),
		token.WithNowFunc(clock.Now),
	)
	issuer, err := session.NewIssuer(repo, tokens,
		session.WithRefreshTTL(refreshTTL),
		session.WithNowFunc(clock.Now),
	)
	require.NoError(t, err)

	srv, err := server.New("test", server.Repos{Users: repo, Plans: planRepo}, issuer, tokens)
	require.NoError(t, err)

	passwordHash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(context.Background(), &users.User{
		Username:     testUsername,
		PasswordHash: passwordHash,
		Role:         users.RoleMember,
	}))

	return &testFixture{srv: srv, repo: repo, plans: planRepo, issuer: issuer, clock: clock}
}

func (f *testFixture) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) login(t *testing.T) session.Pair {
	t.Helper()

	rec := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"username": testUsername,
		"password": testUserPassword,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var pair session.Pair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestLogin_Success(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"username": testUsername,
		"password": testUserPassword,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var pair session.Pair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, testUsername, pair.Username)
	assert.Equal(t, users.RoleMember, pair.Role)

	// The access token is mirrored into a readable cookie for page loads.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, pair.AccessToken, cookies[0].Value)
	assert.False(t, cookies[0].HttpOnly)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)

	unknown := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"username": "nobody", "password": testUserPassword,
	}, "")
	wrong := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"username": testUsername, "password": "wrong-password",
	}, "")

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	// Unknown user and wrong password must be outwardly identical.
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestLogin_MalformedBody(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, server.RouteLogin, bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_RotatesPair(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"refreshToken": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var renewed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &renewed))
	assert.NotEqual(t, pair.RefreshToken, renewed.RefreshToken)

	// The rotated-away value is gone.
	rec = f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"refreshToken": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestRefresh_Expired(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.login(t)

	f.clock.Advance(refreshTTL + time.Second)

	rec := f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"refreshToken": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestLogout_IdempotentFromCallerPerspective(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteLogout, map[string]string{
		"refreshToken": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Second logout with the cleared value: 404, treated as success by callers.
	rec = f.do(t, http.MethodPost, server.RouteLogout, map[string]string{
		"refreshToken": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	// And the value can never renew again.
	rec = f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"refreshToken": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtected_RejectsBadTokens(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.login(t)

	cases := map[string]func() *httptest.ResponseRecorder{
		"missing header": func() *httptest.ResponseRecorder {
			return f.do(t, http.MethodGet, server.RouteMe, nil, "")
		},
		"garbage token": func() *httptest.ResponseRecorder {
			return f.do(t, http.MethodGet, server.RouteMe, nil, "garbage")
		},
		"expired token": func() *httptest.ResponseRecorder {
			f.clock.Advance(accessTTL + time.Second)
			return f.do(t, http.MethodGet, server.RouteMe, nil, pair.AccessToken)
		},
	}

	for name, send := range cases {
		t.Run(name, func(t *testing.T) {
			rec := send()
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestProtected_Me(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.login(t)

	rec := f.do(t, http.MethodGet, server.RouteMe, nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var me users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, testUsername, me.Username)
	assert.Equal(t, users.RoleMember, me.Role)
}

func TestProtected_TrainingPlans(t *testing.T) {
	f := setupTestFixture(t)
	f.plans.Add(testUsername, &plans.Plan{ID: "p-1", Title: "5k base building", Trainer: "ruta"})
	pair := f.login(t)

	rec := f.do(t, http.MethodGet, server.RouteTrainingPlans, nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*plans.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "5k base building", list[0].Title)
}

func TestAdmin_ListUsers(t *testing.T) {
	f := setupTestFixture(t)

	adminHash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, f.repo.Upsert(context.Background(), &users.User{
		Username:     "egle",
		PasswordHash: adminHash,
		Role:         users.RoleAdmin,
	}))

	adminPair, err := f.issuer.Authenticate(context.Background(), "egle", testUserPassword)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, server.RouteUsers, nil, adminPair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "egle", list[0].Username)
	assert.Equal(t, testUsername, list[1].Username)

	rec = f.do(t, http.MethodGet, server.RouteUsers+"?offset=1&limit=1", nil, adminPair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, testUsername, list[0].Username)
}

func TestAdmin_ListUsersForbiddenForMembers(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.login(t)

	rec := f.do(t, http.MethodGet, server.RouteUsers, nil, pair.AccessToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_ListUsersBadPagination(t *testing.T) {
	f := setupTestFixture(t)

	adminHash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, f.repo.Upsert(context.Background(), &users.User{
		Username:     "egle",
		PasswordHash: adminHash,
		Role:         users.RoleAdmin,
	}))
	adminPair, err := f.issuer.Authenticate(context.Background(), "egle", testUserPassword)
	require.NoError(t, err)

	for _, query := range []string{"?offset=-1", "?limit=0", "?limit=9999", "?limit=abc"} {
		rec := f.do(t, http.MethodGet, server.RouteUsers+query, nil, adminPair.AccessToken)
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
