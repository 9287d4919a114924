package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_app/internal/repo"
	"github.com/Skotchmaster/order_app/internal/service"
)

type authEnv struct {
	t      *testing.T
	e      *echo.Echo
	store  *repo.GormRepo
	tokens *service.TokenService
	h      *AuthHandler
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	store := repo.New(initTestDB(t))
	tokens := &service.TokenService{Repo: store, JWTSecret: []byte("test-jwt-secret")}
	return &authEnv{
		t:      t,
		e:      echo.New(),
		store:  store,
		tokens: tokens,
		h:      &AuthHandler{Tokens: tokens, Repo: store},
	}
}

func (env *authEnv) postJSON(path string, body any) (echo.Context, *httptest.ResponseRecorder) {
	env.t.Helper()
	var buf bytes.Buffer
	require.NoError(env.t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return env.e.NewContext(req, rec), rec
}

func validRegistration() map[string]any {
	return map[string]any{
		"login":    "alice_login",
		"password": "password123",
		"username": "alice",
		"email":    "alice@example.com",
		"phone":    "123-456-789",
	}
}

func (env *authEnv) register(t *testing.T) {
	t.Helper()
	c, rec := env.postJSON("/register", validRegistration())
	require.NoError(t, env.h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func (env *authEnv) login(t *testing.T) service.TokenPair {
	t.Helper()
	c, rec := env.postJSON("/login", map[string]any{"login": "alice_login", "password": "password123"})
	require.NoError(t, env.h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var pair service.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestRegisterHandler(t *testing.T) {
	env := newAuthEnv(t)
	env.register(t)

	cases := []struct {
		name string
		mut  func(map[string]any)
		code int
	}{
		{"short login", func(b map[string]any) { b["login"] = "short"; b["email"] = "x@example.com"; b["phone"] = "000-000-001" }, http.StatusBadRequest},
		{"bad email", func(b map[string]any) { b["login"] = "fresh_login"; b["email"] = "nope"; b["phone"] = "000-000-002" }, http.StatusBadRequest},
		{"bad phone", func(b map[string]any) { b["login"] = "fresh_login"; b["email"] = "y@example.com"; b["phone"] = "12345" }, http.StatusBadRequest},
		{"short password", func(b map[string]any) { b["login"] = "fresh_login"; b["password"] = "short"; b["email"] = "z@example.com"; b["phone"] = "000-000-003" }, http.StatusBadRequest},
		{"duplicate login", func(b map[string]any) { b["email"] = "w@example.com"; b["phone"] = "000-000-004" }, http.StatusConflict},
		{"duplicate email", func(b map[string]any) { b["login"] = "fresh_login"; b["phone"] = "000-000-005" }, http.StatusConflict},
		{"duplicate phone", func(b map[string]any) { b["login"] = "fresh_login"; b["email"] = "v@example.com" }, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := validRegistration()
			tc.mut(body)
			c, _ := env.postJSON("/register", body)
			he := httpError(t, env.h.Register(c))
			assert.Equal(t, tc.code, he.Code)
		})
	}
}

func TestRegisterHandler_FieldSet(t *testing.T) {
	env := newAuthEnv(t)

	body := validRegistration()
	delete(body, "phone")
	c, _ := env.postJSON("/register", body)
	he := httpError(t, env.h.Register(c))
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Contains(t, he.Message, "phone")

	body = validRegistration()
	body["role"] = "worker" // must not be settable from outside
	c, _ = env.postJSON("/register", body)
	he = httpError(t, env.h.Register(c))
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Contains(t, he.Message, "unexpected fields: role")
}

func TestLoginHandler(t *testing.T) {
	env := newAuthEnv(t)
	env.register(t)

	pair := env.login(t)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	c, _ := env.postJSON("/login", map[string]any{"login": "alice_login", "password": "wrong"})
	he := httpError(t, env.h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRefreshHandler(t *testing.T) {
	env := newAuthEnv(t)
	env.register(t)
	pair := env.login(t)

	c, rec := env.postJSON("/refresh", map[string]any{"refreshToken": pair.RefreshToken})
	require.NoError(t, env.h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated service.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	c, _ = env.postJSON("/refresh", map[string]any{"refreshToken": pair.RefreshToken})
	he := httpError(t, env.h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

// callAuthed runs a probe handler behind RequireAuth with the given bearer
// token.
func (env *authEnv) callAuthed(t *testing.T, token string) (error, echo.Context) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	probe := env.tokens.RequireAuth(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return probe(c), c
}

func TestRequireAuth(t *testing.T) {
	env := newAuthEnv(t)
	env.register(t)
	pair := env.login(t)

	err, c := env.callAuthed(t, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "customer", c.Get("role"))
	assert.NotNil(t, c.Get("customerID"))

	err, _ = env.callAuthed(t, "")
	assert.Equal(t, http.StatusUnauthorized, httpError(t, err).Code)

	err, _ = env.callAuthed(t, "garbage")
	assert.Equal(t, http.StatusUnauthorized, httpError(t, err).Code)

	// a refresh token is not an access token
	err, _ = env.callAuthed(t, pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, httpError(t, err).Code)
}

func TestRequireAuth_SingleActiveSession(t *testing.T) {
	env := newAuthEnv(t)
	env.register(t)

	first := env.login(t)
	err, _ := env.callAuthed(t, first.AccessToken)
	require.NoError(t, err)

	// a second login supersedes the first session
	second := env.login(t)

	err, _ = env.callAuthed(t, first.AccessToken)
	he := httpError(t, err)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Contains(t, he.Message, "superseded")

	err, _ = env.callAuthed(t, second.AccessToken)
	require.NoError(t, err)
}

func TestProfileHandler(t *testing.T) {
	env := newAuthEnv(t)
	env.register(t)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	c.Set("role", "customer")
	c.Set("customerID", uint(1))

	require.NoError(t, env.h.Profile(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")

	// workers have no customer profile
	c = env.e.NewContext(httptest.NewRequest(http.MethodGet, "/profile", nil), httptest.NewRecorder())
	c.Set("role", "worker")
	he := httpError(t, env.h.Profile(c))
	assert.Equal(t, http.StatusForbidden, he.Code)
}
