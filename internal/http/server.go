// Package http wires the routes, templates and middleware of the
// server-rendered web interface.
package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/web"
)

// pages are parsed individually against the shared layout so each file
// can define its own content block.
var pages = []string{
	"transaction_list.html",
	"transaction_form.html",
	"transaction_delete.html",
	"category_list.html",
	"category_form.html",
	"category_delete.html",
	"register.html",
	"login.html",
	"analysis.html",
}

type Server struct {
	http.Server
	repo       *storage.Repository
	sessions   *auth.SessionManager
	policy     auth.CategoryPolicy
	bcryptCost int
	templates  map[string]*template.Template
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, repo *storage.Repository, sessions *auth.SessionManager, policy auth.CategoryPolicy, bcryptCost int) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		repo:       repo,
		sessions:   sessions,
		policy:     policy,
		bcryptCost: bcryptCost,
		templates:  templates,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(logRequests)
	r.Use(securityHeaders)

	// Static assets from the embedded FS.
	if sub, err := fs.Sub(web.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Get("/healthz", handleHealth)

	// Unauthenticated entry points: registration and the auth
	// collaborator's login route.
	r.Get("/register/", s.handleRegisterForm)
	r.Post("/register/", s.handleRegister)
	r.Get(auth.LoginPath, s.handleLoginForm)
	r.Post(auth.LoginPath, s.handleLogin)

	// Everything else requires a session.
	r.Group(func(r chi.Router) {
		r.Use(sessions.RequireAuth)

		r.Get("/", s.handleTransactionList)
		r.Get("/add/", s.handleTransactionNew)
		r.Post("/add/", s.handleTransactionCreate)
		r.Get("/edit/{id}/", s.handleTransactionEditForm)
		r.Post("/edit/{id}/", s.handleTransactionEdit)
		r.Get("/delete/{id}/", s.handleTransactionDeleteConfirm)
		r.Post("/delete/{id}/", s.handleTransactionDelete)

		r.Get("/analysis/", s.handleAnalysis)

		r.Get("/categories/", s.handleCategoryList)
		r.Get("/categories/add/", s.handleCategoryNew)
		r.Post("/categories/add/", s.handleCategoryCreate)
		r.Get("/categories/edit/{id}/", s.handleCategoryEditForm)
		r.Post("/categories/edit/{id}/", s.handleCategoryEdit)
		r.Get("/categories/delete/{id}/", s.handleCategoryDeleteConfirm)
		r.Post("/categories/delete/{id}/", s.handleCategoryDelete)

		r.Post("/accounts/logout/", s.handleLogout)
	})

	s.Server = http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.ParseFS(web.TemplatesFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		templates[page] = t
	}
	return templates, nil
}

// render executes the page into a buffer first so a template failure
// produces a clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	t, ok := s.templates[page]
	if !ok {
		slog.ErrorContext(r.Context(), "Unknown template", "template", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// currentAccount returns the request's account for layout rendering,
// or nil on public pages without a session.
func (s *Server) currentAccount(r *http.Request) *core.Account {
	if a, ok := s.sessions.CurrentAccount(r); ok {
		return &a
	}
	return nil
}

// logRequests logs one line per completed request with method, path,
// status and duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.InfoContext(r.Context(), "Request completed",
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"url", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
