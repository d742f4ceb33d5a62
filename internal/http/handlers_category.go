package http

import (
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// handleCategoryList shows the shared category namespace. No ownership
// filter applies; every authenticated account sees the same list.
func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	cats, err := s.repo.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "category_list.html", struct {
		Account    *core.Account
		Categories []core.Category
	}{
		Account:    s.currentAccount(r),
		Categories: cats,
	})
}

// allowCategoryMutation consults the configured policy. The default
// shared policy admits every authenticated account.
func (s *Server) allowCategoryMutation(w http.ResponseWriter, r *http.Request) bool {
	account, _ := auth.AccountFromContext(r.Context())
	if !s.policy.CanMutateCategory(account) {
		slog.WarnContext(r.Context(), "Category mutation denied by policy", "account_id", account.ID)
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) renderCategoryForm(w http.ResponseWriter, r *http.Request, title, action string, f *CategoryForm) {
	s.render(w, r, "category_form.html", struct {
		Account *core.Account
		Title   string
		Action  string
		Form    *CategoryForm
	}{
		Account: s.currentAccount(r),
		Title:   title,
		Action:  action,
		Form:    f,
	})
}

func (s *Server) handleCategoryNew(w http.ResponseWriter, r *http.Request) {
	if !s.allowCategoryMutation(w, r) {
		return
	}
	s.renderCategoryForm(w, r, "Add category", "/categories/add/", NewCategoryForm())
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	if !s.allowCategoryMutation(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := NewCategoryForm()
	f.Bind(r.PostForm)

	if c, ok := f.Parse(); ok {
		if _, err := s.repo.CreateCategory(r.Context(), c); err != nil {
			slog.ErrorContext(r.Context(), "Create category failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/categories/", http.StatusSeeOther)
		return
	}

	s.renderCategoryForm(w, r, "Add category", "/categories/add/", f)
}

func (s *Server) categoryByURL(w http.ResponseWriter, r *http.Request) (core.Category, bool) {
	id, ok := urlID(r)
	if !ok {
		notFound(w)
		return core.Category{}, false
	}
	cat, err := s.repo.CategoryByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(w)
		return core.Category{}, false
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Category lookup failed", "error", err, "category_id", id)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return core.Category{}, false
	}
	return cat, true
}

func (s *Server) handleCategoryEditForm(w http.ResponseWriter, r *http.Request) {
	if !s.allowCategoryMutation(w, r) {
		return
	}
	cat, ok := s.categoryByURL(w, r)
	if !ok {
		return
	}
	s.renderCategoryForm(w, r, "Edit category", r.URL.Path, CategoryFormFromRecord(cat))
}

func (s *Server) handleCategoryEdit(w http.ResponseWriter, r *http.Request) {
	if !s.allowCategoryMutation(w, r) {
		return
	}
	cat, ok := s.categoryByURL(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := NewCategoryForm()
	f.Bind(r.PostForm)

	if c, ok := f.Parse(); ok {
		c.ID = cat.ID
		if err := s.repo.UpdateCategory(r.Context(), c); err != nil {
			slog.ErrorContext(r.Context(), "Update category failed", "error", err, "category_id", c.ID)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/categories/", http.StatusSeeOther)
		return
	}

	s.renderCategoryForm(w, r, "Edit category", r.URL.Path, f)
}

// handleCategoryDeleteConfirm renders the confirmation prompt without
// mutating anything.
func (s *Server) handleCategoryDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	if !s.allowCategoryMutation(w, r) {
		return
	}
	cat, ok := s.categoryByURL(w, r)
	if !ok {
		return
	}
	s.render(w, r, "category_delete.html", struct {
		Account  *core.Account
		Category core.Category
	}{
		Account:  s.currentAccount(r),
		Category: cat,
	})
}

// handleCategoryDelete removes the category; referencing transactions
// survive with a null category.
func (s *Server) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	if !s.allowCategoryMutation(w, r) {
		return
	}
	id, ok := urlID(r)
	if !ok {
		notFound(w)
		return
	}
	err := s.repo.DeleteCategory(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete category failed", "error", err, "category_id", id)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/categories/", http.StatusSeeOther)
}
