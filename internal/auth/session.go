package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"

	"fintrack/internal/core"
)

// LoginPath is where unauthenticated requests are redirected.
const LoginPath = "/accounts/login/"

const sessionAccountKey = "account_id"

type contextKey string

const accountContextKey contextKey = "account"

// AccountSource resolves a stored session id back to an account.
// *storage.Repository satisfies it.
type AccountSource interface {
	AccountByID(ctx context.Context, id int64) (core.Account, error)
}

// SessionManager wraps a gorilla cookie store and exposes the
// capability interface the handlers rely on: establish a session,
// clear it, and answer "who is the current account".
type SessionManager struct {
	store    *sessions.CookieStore
	name     string
	accounts AccountSource
}

// NewSessionManager builds a cookie-backed session manager. The secret
// signs the session cookie; rotating it invalidates every session.
func NewSessionManager(secret []byte, name string, accounts AccountSource) *SessionManager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store, name: name, accounts: accounts}
}

// SignIn establishes a session for the account.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, account core.Account) error {
	session, _ := m.store.Get(r, m.name)
	session.Values[sessionAccountKey] = account.ID
	return session.Save(r, w)
}

// SignOut clears the session cookie.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, m.name)
	delete(session.Values, sessionAccountKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// CurrentAccount returns the authenticated account for the request, or
// false when the session is absent, malformed, or references a deleted
// account.
func (m *SessionManager) CurrentAccount(r *http.Request) (core.Account, bool) {
	if a, ok := r.Context().Value(accountContextKey).(core.Account); ok {
		return a, true
	}
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return core.Account{}, false
	}
	id, ok := session.Values[sessionAccountKey].(int64)
	if !ok {
		return core.Account{}, false
	}
	account, err := m.accounts.AccountByID(r.Context(), id)
	if err != nil {
		return core.Account{}, false
	}
	return account, true
}

// RequireAuth redirects unauthenticated requests to the login page,
// preserving the original path in the next parameter. Authenticated
// requests continue with the account attached to the context.
func (m *SessionManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := m.CurrentAccount(r)
		if !ok {
			slog.DebugContext(r.Context(), "Unauthenticated request", "url", r.URL.Path)
			http.Redirect(w, r, LoginPath+"?next="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), accountContextKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountFromContext returns the account stored by RequireAuth.
func AccountFromContext(ctx context.Context) (core.Account, bool) {
	a, ok := ctx.Value(accountContextKey).(core.Account)
	return a, ok
}
