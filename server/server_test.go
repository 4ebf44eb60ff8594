package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wippyai/memsafe/session"
)

func newServer(t *testing.T, cfg session.Config) (*Server, *session.Store) {
	t.Helper()
	store, err := session.NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, Config{}), store
}

func do(t *testing.T, h http.Handler, method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestRoutes(t *testing.T) {
	srv, _ := newServer(t, session.Config{})
	h := srv.Handler()

	tests := []struct {
		method string
		path   string
		status int
		want   string
	}{
		{http.MethodGet, "/", http.StatusOK, "Memory Safety Demos"},
		{http.MethodGet, "/login", http.StatusOK, `<form method="POST" action="/login">`},
		{http.MethodGet, "/nope", http.StatusNotFound, "not_found"},
		{http.MethodGet, "/check-user", http.StatusNotFound, "not_found"},
		{http.MethodGet, "/logout", http.StatusBadRequest, "no user to logout"},
		{http.MethodGet, "/corrupt", http.StatusBadRequest, "invalid_input"},
		{http.MethodGet, "/secret", http.StatusForbidden, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	srv, store := newServer(t, session.Config{})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/login", login("alice", "secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, alice")
	assert.Contains(t, rec.Body.String(), "is_admin:     false")

	c := sessionCookie(t, rec)
	assert.Equal(t, store.Current(), c.Value)
	assert.True(t, c.HttpOnly)

	rec = do(t, h, http.MethodGet, "/check-user", nil, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username:   alice")
}

func TestLogin_MissingFields(t *testing.T) {
	srv, _ := newServer(t, session.Config{})

	rec := do(t, srv.Handler(), http.MethodPost, "/login", url.Values{"username": {"alice"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing username or password")
}

func TestLogin_OverflowRejected(t *testing.T) {
	srv, store := newServer(t, session.Config{})
	h := srv.Handler()

	for _, pw := range []string{
		"secret0123456789876543210",
		"secret0123456789\x01\x00\x00\x00",
	} {
		rec := do(t, h, http.MethodPost, "/login", login("alice", pw))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "out_of_bounds")
		assert.Empty(t, rec.Result().Cookies())
	}
	assert.Empty(t, store.Sessions())

	// The secret page stays closed after the attempted overflow.
	rec := do(t, h, http.MethodPost, "/login", login("alice", "secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/secret", nil, sessionCookie(t, rec))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), session.Secret)
}

func TestSecret_Admin(t *testing.T) {
	srv, _ := newServer(t, session.Config{Admins: []string{"root"}})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/login", login("root", "toor"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/secret", nil, sessionCookie(t, rec))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), session.Secret)
}

func TestDanglingSessionFlow(t *testing.T) {
	srv, _ := newServer(t, session.Config{})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/login", login("alice", "secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	c := sessionCookie(t, rec)

	rec = do(t, h, http.MethodGet, "/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User logged out")

	rec = do(t, h, http.MethodGet, "/corrupt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Memory reused at the same address.")

	// Without a cookie the current session is used; both are dangling.
	for _, cookies := range [][]*http.Cookie{{c}, nil} {
		rec = do(t, h, http.MethodGet, "/check-user", nil, cookies...)
		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Contains(t, rec.Body.String(), "dangling")
		assert.NotContains(t, rec.Body.String(), "CORRUPTED")
	}
}

func TestServe_Shutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, _ := newServer(t, session.Config{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
