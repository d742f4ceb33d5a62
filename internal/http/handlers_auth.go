package http

import (
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func (s *Server) renderRegisterForm(w http.ResponseWriter, r *http.Request, f *RegisterForm) {
	s.render(w, r, "register.html", struct {
		Account *core.Account
		Form    *RegisterForm
	}{
		Account: s.currentAccount(r),
		Form:    f,
	})
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.renderRegisterForm(w, r, NewRegisterForm())
}

// handleRegister creates the account, signs it in immediately and
// redirects to the transaction list.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := NewRegisterForm()
	f.Bind(r.PostForm)

	if !f.Validate() {
		s.renderRegisterForm(w, r, f)
		return
	}

	hash, err := auth.HashPassword(f.Password1, s.bcryptCost)
	if err != nil {
		slog.ErrorContext(r.Context(), "Password hashing failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	account, err := s.repo.CreateAccount(r.Context(), f.Username, hash)
	if errors.Is(err, storage.ErrUsernameTaken) {
		f.Errors["username"] = "A user with that username already exists."
		s.renderRegisterForm(w, r, f)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Create account failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := s.sessions.SignIn(w, r, account); err != nil {
		slog.ErrorContext(r.Context(), "Session creation failed", "error", err, "account_id", account.ID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	slog.InfoContext(r.Context(), "Account registered", "account_id", account.ID, "username", account.Username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderLoginForm(w http.ResponseWriter, r *http.Request, f *LoginForm, next string) {
	s.render(w, r, "login.html", struct {
		Account *core.Account
		Form    *LoginForm
		Next    string
	}{
		Account: s.currentAccount(r),
		Form:    f,
		Next:    next,
	})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderLoginForm(w, r, NewLoginForm(), safeNext(r.URL.Query().Get("next")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := NewLoginForm()
	f.Bind(r.PostForm)
	next := safeNext(r.PostForm.Get("next"))

	account, hash, err := s.repo.AccountByUsername(r.Context(), f.Username)
	if err == nil && auth.CheckPassword(hash, f.Password) {
		if err := s.sessions.SignIn(w, r, account); err != nil {
			slog.ErrorContext(r.Context(), "Session creation failed", "error", err, "account_id", account.ID)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.ErrorContext(r.Context(), "Account lookup failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Same message for unknown username and wrong password.
	f.Errors["login"] = "Please enter a correct username and password."
	s.renderLoginForm(w, r, f, next)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(w, r); err != nil {
		slog.ErrorContext(r.Context(), "Session teardown failed", "error", err)
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}
