// Package server exposes a session.Store over HTTP with the routes of the
// classic vulnerable login demo. Every unsafe step the demo invites is
// answered with a structured fault instead of corrupted state.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/session"
)

// CookieName is the cookie carrying the session id.
const CookieName = "memsafe_session"

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, for example ":8080".
	Addr string

	// ShutdownTimeout bounds graceful shutdown. 0 means 5s.
	ShutdownTimeout time.Duration
}

// Server serves a session store.
type Server struct {
	store *session.Store
	mux   *http.ServeMux
	cfg   Config
}

// New creates a server for store.
func New(store *session.Store, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{store: store, cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /logout", s.handleLogout)
	s.mux.HandleFunc("GET /check-user", s.handleCheckUser)
	s.mux.HandleFunc("GET /corrupt", s.handleCorrupt)
	s.mux.HandleFunc("GET /secret", s.handleSecret)
	s.mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns the HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrap(errors.PhaseServe, errors.KindInvalidInput, err, "listen on "+s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	Logger().Info("serving", zap.String("addr", ln.Addr().String()))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	Logger().Info("stopped", zap.Error(err))
	return err
}

type view struct {
	Session session.Session
	User    session.UserInfo
	Corrupt session.CorruptResult
	Title   string
	Message string
	Kind    string
	RawHex  string
	Secret  string
	Base    string
	Status  int
	Address uint32
}

func (s *Server) render(w http.ResponseWriter, status int, name string, v view) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, v); err != nil {
		Logger().Error("render failed", zap.String("template", name), zap.Error(err))
	}
}

// statusOf maps a fault to an HTTP status.
func statusOf(err error) int {
	switch errors.KindOf(err) {
	case errors.KindOutOfBounds, errors.KindInvalidInput:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindDangling, errors.KindUseAfterFree:
		return http.StatusGone
	case errors.KindUnauthorized:
		return http.StatusForbidden
	case errors.KindAllocation, errors.KindOutOfMemory:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	s.render(w, status, "error", view{
		Title:   http.StatusText(status),
		Status:  status,
		Message: err.Error(),
		Kind:    string(errors.KindOf(err)),
	})
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func hexBytes(raw []byte) string {
	var b strings.Builder
	for i, c := range raw {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}

func baseURL(r *http.Request) string {
	return "http://" + r.Host
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "home", view{Title: "memsafe", Base: baseURL(r)})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", view{Title: "Login"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, errors.Wrap(errors.PhaseServe, errors.KindInvalidInput, err, "parse form"))
		return
	}
	if !r.PostForm.Has("username") || !r.PostForm.Has("password") {
		s.fail(w, errors.InvalidInput(errors.PhaseServe, "missing username or password"))
		return
	}

	sess, user, err := s.store.Login(r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		s.fail(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.render(w, http.StatusOK, "loggedin", view{
		Title:   "Logged in",
		Session: sess,
		User:    user,
		RawHex:  hexBytes(user.Raw),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	addr, err := s.store.Logout()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.render(w, http.StatusOK, "logout", view{Title: "Logged out", Address: addr})
}

func (s *Server) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	sess, user, err := s.store.CheckUser(sessionID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.render(w, http.StatusOK, "check", view{
		Title:   "Session check",
		Session: sess,
		User:    user,
		RawHex:  hexBytes(user.Raw),
	})
}

func (s *Server) handleCorrupt(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.Corrupt()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.render(w, http.StatusOK, "corrupt", view{Title: "Corrupt", Corrupt: res})
}

func (s *Server) handleSecret(w http.ResponseWriter, r *http.Request) {
	text, err := s.store.Secret(sessionID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.render(w, http.StatusOK, "secret", view{Title: "Secret", Secret: text})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, errors.NotFound(errors.PhaseServe, "endpoint", r.URL.Path))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		Logger().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
