// Package storage implements the SQLite persistence layer. All queries
// are plain SQL over database/sql; money travels as integer cents and
// dates as "YYYY-MM-DD" text.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339
)

var (
	// ErrNotFound is returned when a lookup matches no row, including
	// id+owner lookups that hit another account's record.
	ErrNotFound = errors.New("record not found")

	// ErrUsernameTaken is returned when an account insert violates the
	// username uniqueness constraint.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrDuplicateBudget is returned when a second budget limit is set
	// for the same (account, category, month) triple.
	ErrDuplicateBudget = errors.New("budget limit already set for this month")
)

// Repository wraps the SQLite database handle.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (or creates) the database at dbPath, enables
// foreign keys and WAL, and applies pending migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- accounts ---

// CreateAccount inserts a new account with an already-hashed password.
func (r *Repository) CreateAccount(ctx context.Context, username, passwordHash string) (core.Account, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, now.Format(timestampLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, ErrUsernameTaken
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}
	return core.Account{ID: id, Username: username, CreatedAt: now}, nil
}

// AccountByUsername returns the account and its password hash for
// credential verification.
func (r *Repository) AccountByUsername(ctx context.Context, username string) (core.Account, string, error) {
	var (
		a         core.Account
		hash      string
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts WHERE username = ?`,
		username).Scan(&a.ID, &a.Username, &hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, "", ErrNotFound
	}
	if err != nil {
		return core.Account{}, "", fmt.Errorf("select account by username: %w", err)
	}
	a.CreatedAt = parseTimestamp(createdAt)
	return a, hash, nil
}

// AccountByID resolves a session's account id back to an account.
func (r *Repository) AccountByID(ctx context.Context, id int64) (core.Account, error) {
	var (
		a         core.Account
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM accounts WHERE id = ?`,
		id).Scan(&a.ID, &a.Username, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("select account by id: %w", err)
	}
	a.CreatedAt = parseTimestamp(createdAt)
	return a, nil
}

// --- categories ---

// ListCategories returns every category; they are shared across accounts.
func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *Repository) CategoryByID(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("select category: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, type) VALUES (?, ?)`, c.Name, string(c.Type))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ? WHERE id = ?`,
		c.Name, string(c.Type), c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res)
}

// DeleteCategory removes a category. Referencing transactions keep
// existing but lose their category (ON DELETE SET NULL).
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(res)
}

// --- transactions ---

const txnSelect = `SELECT t.id, t.account_id, t.amount_cents, t.description, t.date, t.created_at,
	c.id, c.name, c.type
	FROM transactions t
	LEFT JOIN categories c ON t.category_id = c.id`

func scanTransaction(scanner interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx        core.Transaction
		date      string
		createdAt string
		catID     sql.NullInt64
		catName   sql.NullString
		catType   sql.NullString
	)
	err := scanner.Scan(&tx.ID, &tx.AccountID, &tx.Amount.Cents, &tx.Description,
		&date, &createdAt, &catID, &catName, &catType)
	if err != nil {
		return core.Transaction{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	tx.Date = d
	tx.CreatedAt = parseTimestamp(createdAt)
	if catID.Valid {
		tx.Category = &core.Category{
			ID:   catID.Int64,
			Name: catName.String,
			Type: core.CategoryType(catType.String),
		}
	}
	return tx, nil
}

// ListTransactions returns the account's transactions newest-date-first.
func (r *Repository) ListTransactions(ctx context.Context, accountID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		txnSelect+` WHERE t.account_id = ? ORDER BY t.date DESC, t.id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, tx)
	}
	return txns, rows.Err()
}

// TransactionByID resolves id and owner together so that another
// account's record is indistinguishable from a missing one.
func (r *Repository) TransactionByID(ctx context.Context, id, accountID int64) (core.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx,
		txnSelect+` WHERE t.id = ? AND t.account_id = ?`, id, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("select transaction: %w", err)
	}
	return tx, nil
}

// CreateTransaction persists a new transaction and stamps created_at.
func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, category_id, amount_cents, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.AccountID, categoryID(tx.Category), tx.Amount.Cents, tx.Description,
		tx.Date.Format(dateLayout), now.Format(timestampLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}
	tx.CreatedAt = now
	return tx, nil
}

// UpdateTransaction rewrites the editable fields of an owned
// transaction. created_at is immutable and never touched.
func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, amount_cents = ?, description = ?, date = ?
		 WHERE id = ? AND account_id = ?`,
		categoryID(tx.Category), tx.Amount.Cents, tx.Description,
		tx.Date.Format(dateLayout), tx.ID, tx.AccountID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

// DeleteTransaction removes an owned transaction.
func (r *Repository) DeleteTransaction(ctx context.Context, id, accountID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

// --- aggregation ---

// Summarize computes the account's income and expense totals. Both
// default to zero when no transaction of the type exists.
func (r *Repository) Summarize(ctx context.Context, accountID int64) (core.Summary, error) {
	var s core.Summary
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN c.type = 'INCOME' THEN t.amount_cents END), 0),
			COALESCE(SUM(CASE WHEN c.type = 'EXPENSE' THEN t.amount_cents END), 0)
		 FROM transactions t
		 JOIN categories c ON t.category_id = c.id
		 WHERE t.account_id = ?`, accountID).
		Scan(&s.Income.Cents, &s.Expense.Cents)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize transactions: %w", err)
	}
	return s, nil
}

// ExpenseByCategory sums the account's expense transactions per
// category name, largest first.
func (r *Repository) ExpenseByCategory(ctx context.Context, accountID int64) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, SUM(t.amount_cents)
		 FROM transactions t
		 JOIN categories c ON t.category_id = c.id
		 WHERE t.account_id = ? AND c.type = 'EXPENSE'
		 GROUP BY c.name
		 ORDER BY SUM(t.amount_cents) DESC, c.name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select expense by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// MonthlyFlows groups the account's categorized transactions by
// calendar month and type, chronologically, one row per month with
// zero defaults for the missing type.
func (r *Repository) MonthlyFlows(ctx context.Context, accountID int64) ([]core.MonthlyFlow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT strftime('%Y-%m', t.date),
			COALESCE(SUM(CASE WHEN c.type = 'INCOME' THEN t.amount_cents END), 0),
			COALESCE(SUM(CASE WHEN c.type = 'EXPENSE' THEN t.amount_cents END), 0)
		 FROM transactions t
		 JOIN categories c ON t.category_id = c.id
		 WHERE t.account_id = ?
		 GROUP BY strftime('%Y-%m', t.date)
		 ORDER BY strftime('%Y-%m', t.date)`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select monthly flows: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyFlow
	for rows.Next() {
		var mf core.MonthlyFlow
		if err := rows.Scan(&mf.Month, &mf.Income.Cents, &mf.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly flow: %w", err)
		}
		out = append(out, mf)
	}
	return out, rows.Err()
}

// --- budget limits ---

// SetBudgetLimit inserts a limit for (account, category, month). A
// second limit for the same triple fails with ErrDuplicateBudget.
func (r *Repository) SetBudgetLimit(ctx context.Context, bl core.BudgetLimit) (core.BudgetLimit, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_limits (account_id, category_id, limit_cents, month) VALUES (?, ?, ?, ?)`,
		bl.AccountID, bl.CategoryID, bl.Limit.Cents, bl.Month.Format(dateLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return core.BudgetLimit{}, ErrDuplicateBudget
		}
		return core.BudgetLimit{}, fmt.Errorf("insert budget limit: %w", err)
	}
	bl.ID, err = res.LastInsertId()
	if err != nil {
		return core.BudgetLimit{}, fmt.Errorf("budget limit insert id: %w", err)
	}
	return bl, nil
}

// ListBudgetLimits returns the account's limits ordered by month.
func (r *Repository) ListBudgetLimits(ctx context.Context, accountID int64) ([]core.BudgetLimit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, category_id, limit_cents, month
		 FROM budget_limits WHERE account_id = ? ORDER BY month, category_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select budget limits: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetLimit
	for rows.Next() {
		var (
			bl    core.BudgetLimit
			month string
		)
		if err := rows.Scan(&bl.ID, &bl.AccountID, &bl.CategoryID, &bl.Limit.Cents, &month); err != nil {
			return nil, fmt.Errorf("scan budget limit: %w", err)
		}
		m, err := time.Parse(dateLayout, month)
		if err != nil {
			return nil, fmt.Errorf("parse budget month %q: %w", month, err)
		}
		bl.Month = m
		out = append(out, bl)
	}
	return out, rows.Err()
}

// --- helpers ---

func categoryID(c *core.Category) any {
	if c == nil {
		return nil
	}
	return c.ID
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}
