package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// handleTransactionList renders the account's transactions newest
// first, with income/expense totals and balance.
func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())

	txns, err := s.repo.ListTransactions(r.Context(), account.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "error", err, "account_id", account.ID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	summary, err := s.repo.Summarize(r.Context(), account.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summarize transactions failed", "error", err, "account_id", account.ID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "transaction_list.html", struct {
		Account      *core.Account
		Transactions []core.Transaction
		Summary      core.Summary
		Balance      core.Money
	}{
		Account:      &account,
		Transactions: txns,
		Summary:      summary,
		Balance:      summary.Balance(),
	})
}

func (s *Server) renderTransactionForm(w http.ResponseWriter, r *http.Request, title, action string, f *TransactionForm) {
	cats, err := s.repo.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "transaction_form.html", struct {
		Account    *core.Account
		Title      string
		Action     string
		Form       *TransactionForm
		Categories []core.Category
	}{
		Account:    s.currentAccount(r),
		Title:      title,
		Action:     action,
		Form:       f,
		Categories: cats,
	})
}

// resolveCategory checks a submitted category id against the store and
// records a field error when it references nothing.
func (s *Server) resolveCategory(r *http.Request, f *TransactionForm, fields transactionFields) (*core.Category, bool) {
	if fields.CategoryID == 0 {
		return nil, true
	}
	cat, err := s.repo.CategoryByID(r.Context(), fields.CategoryID)
	if errors.Is(err, storage.ErrNotFound) {
		f.Errors["category"] = "Select a valid category."
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Category lookup failed", "error", err, "category_id", fields.CategoryID)
		f.Errors["category"] = "Select a valid category."
		return nil, false
	}
	return &cat, true
}

func (s *Server) handleTransactionNew(w http.ResponseWriter, r *http.Request) {
	f := NewTransactionForm()
	f.Date = time.Now().Format("2006-01-02")
	s.renderTransactionForm(w, r, "Add transaction", "/add/", f)
}

// handleTransactionCreate persists a new transaction for the session's
// account. The owner always comes from the session, never the form.
func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := NewTransactionForm()
	f.Bind(r.PostForm)

	fields, ok := f.Parse()
	if ok {
		var cat *core.Category
		if cat, ok = s.resolveCategory(r, f, fields); ok {
			tx := core.Transaction{
				AccountID:   account.ID,
				Category:    cat,
				Amount:      fields.Amount,
				Description: fields.Description,
				Date:        fields.Date,
			}
			if _, err := s.repo.CreateTransaction(r.Context(), tx); err != nil {
				slog.ErrorContext(r.Context(), "Create transaction failed", "error", err, "account_id", account.ID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	s.renderTransactionForm(w, r, "Add transaction", "/add/", f)
}

// ownTransaction resolves {id} together with the session's account so
// another account's record behaves exactly like a missing one.
func (s *Server) ownTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, bool) {
	account, _ := auth.AccountFromContext(r.Context())
	id, ok := urlID(r)
	if !ok {
		notFound(w)
		return core.Transaction{}, false
	}
	tx, err := s.repo.TransactionByID(r.Context(), id, account.ID)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(w)
		return core.Transaction{}, false
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction lookup failed", "error", err, "transaction_id", id)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return core.Transaction{}, false
	}
	return tx, true
}

func (s *Server) handleTransactionEditForm(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.ownTransaction(w, r)
	if !ok {
		return
	}
	s.renderTransactionForm(w, r, "Edit transaction", r.URL.Path, TransactionFormFromRecord(tx))
}

func (s *Server) handleTransactionEdit(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.ownTransaction(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := NewTransactionForm()
	f.Bind(r.PostForm)

	fields, ok := f.Parse()
	if ok {
		var cat *core.Category
		if cat, ok = s.resolveCategory(r, f, fields); ok {
			tx.Category = cat
			tx.Amount = fields.Amount
			tx.Description = fields.Description
			tx.Date = fields.Date
			if err := s.repo.UpdateTransaction(r.Context(), tx); err != nil {
				slog.ErrorContext(r.Context(), "Update transaction failed", "error", err, "transaction_id", tx.ID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	s.renderTransactionForm(w, r, "Edit transaction", r.URL.Path, f)
}

// handleTransactionDeleteConfirm renders the confirmation prompt. It
// never mutates; only the POST below deletes.
func (s *Server) handleTransactionDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.ownTransaction(w, r)
	if !ok {
		return
	}
	s.render(w, r, "transaction_delete.html", struct {
		Account     *core.Account
		Transaction core.Transaction
	}{
		Account:     s.currentAccount(r),
		Transaction: tx,
	})
}

func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())
	id, ok := urlID(r)
	if !ok {
		notFound(w)
		return
	}
	err := s.repo.DeleteTransaction(r.Context(), id, account.ID)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete transaction failed", "error", err, "transaction_id", id)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
