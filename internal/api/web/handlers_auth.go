package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/TrackView/internal/services/auth"
	"github.com/pkg/errors"
)

func signInErrorText(err error) string {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return "Введите email и пароль."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Неверный email или пароль."
	case errors.Is(err, auth.ErrRateLimited):
		return "Слишком много попыток входа. Попробуйте позже."
	default:
		return "Не удалось войти: сервис временно недоступен."
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.currentSession(r) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, http.StatusOK, pageLogin, loginPage{Title: "Вход"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, pageLogin, loginPage{Title: "Вход", Error: signInErrorText(auth.ErrValidation)})
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	sess, token, err := s.auth.SignInWithPassword(r.Context(), email, password)
	if err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, auth.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, auth.ErrRateLimited):
			status = http.StatusTooManyRequests
		case !errors.Is(err, auth.ErrInvalidCredentials):
			status = http.StatusBadGateway
			slog.Error("sign in", "request_id", requestIDFromContext(r.Context()), "error", err.Error())
		}
		s.renderPage(w, r, status, pageLogin, loginPage{
			Title: "Вход",
			Email: email,
			Error: signInErrorText(err),
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		if err := s.auth.SignOut(r.Context(), c.Value); err != nil {
			slog.Error("sign out", "request_id", requestIDFromContext(r.Context()), "error", err.Error())
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
