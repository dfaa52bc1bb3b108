// Package http provides the HTTP server, routing and handlers for the
// payment ledger web application.
package http

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paytrack/internal/ledger"
	applog "paytrack/internal/log"
	"paytrack/internal/middleware/security"
	"paytrack/internal/receipts"
	"paytrack/internal/session"
	appweb "paytrack/web"
)

type Server struct {
	http.Server

	templates *template.Template

	store          ledger.PaymentStore
	receipts       *receipts.Store
	sessions       *session.Manager
	accessCode     string
	maxUploadBytes int64
}

// Options carries the collaborators and settings for NewServer.
type Options struct {
	Addr           string
	Store          ledger.PaymentStore
	Receipts       *receipts.Store
	Sessions       *session.Manager
	AccessCode     string
	MaxUploadBytes int64
}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:      t,
		store:          opts.Store,
		receipts:       opts.Receipts,
		sessions:       opts.Sessions,
		accessCode:     opts.AccessCode,
		maxUploadBytes: opts.MaxUploadBytes,
	}

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /add", s.handleAddPayment)
	mux.HandleFunc("GET /edit/{id}", s.handleEditForm)
	mux.HandleFunc("POST /edit/{id}", s.handleEditPayment)
	mux.HandleFunc("POST /delete/{id}", s.handleDeletePayment)

	mux.HandleFunc("GET /uploads/{filename}", s.handleReceipt)
	mux.HandleFunc("GET /export/csv", s.handleExportCSV)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := applog.Middleware(
		security.Headers(security.DefaultHeadersConfig())(
			metricsMiddleware(
				s.requireSession(mux))))

	s.Server = http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}

	return s, nil
}

// openRoutes are reachable without a session: the login page, static
// assets and the operational endpoints.
func isOpenRoute(path string) bool {
	switch path {
	case "/login", "/healthz", "/readyz", "/metrics":
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// requireSession redirects any request without a valid session token to the
// login page, except for the open routes.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isOpenRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := session.FromRequest(r)
		if err == nil {
			err = s.sessions.Validate(token)
		}
		if err != nil {
			slog.DebugContext(r.Context(), "Unauthenticated request redirected to login",
				"path", r.URL.Path, "error", err)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// render writes status and executes the named template. Execution errors
// are logged; the status line is already on the wire at that point.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
