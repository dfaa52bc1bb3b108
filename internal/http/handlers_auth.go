package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

type loginData struct {
	Error string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", loginData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.WarnContext(r.Context(), "Login form parse error", "error", err)
		s.render(w, r, http.StatusBadRequest, "login.html", loginData{Error: "Invalid request"})
		return
	}

	code := strings.TrimSpace(r.FormValue("code"))
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.accessCode)) != 1 {
		slog.WarnContext(r.Context(), "Login attempt with wrong access code", "remote_addr", r.RemoteAddr)
		s.render(w, r, http.StatusUnauthorized, "login.html", loginData{Error: "Wrong access code"})
		return
	}

	token, err := s.sessions.Issue()
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to issue session token", "error", err)
		s.render(w, r, http.StatusInternalServerError, "login.html", loginData{Error: "Login failed, try again"})
		return
	}

	s.sessions.SetCookie(w, token)
	slog.InfoContext(r.Context(), "Session established", "remote_addr", r.RemoteAddr)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
