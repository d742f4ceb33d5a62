// Package core holds the domain types shared by storage, HTTP handlers
// and chart rendering: accounts, categories, transactions and the
// fixed-point money representation.
package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  CategoryType = "INCOME"
	Expense CategoryType = "EXPENSE"
)

type (
	// CategoryType distinguishes income from expense categories.
	CategoryType string

	// Account is an authenticated identity. Credentials live in storage;
	// handlers only ever see the ID and username.
	Account struct {
		ID        int64
		Username  string
		CreatedAt time.Time
	}

	// Category is a shared, global reference entity. It has no owner.
	Category struct {
		ID   int64
		Name string
		Type CategoryType
	}

	// Transaction is a single income or expense record owned by exactly
	// one account. Category is optional and becomes nil when the
	// referenced category is deleted.
	Transaction struct {
		ID          int64
		AccountID   int64
		Category    *Category
		Amount      Money
		Description string
		Date        time.Time
		CreatedAt   time.Time
	}

	// BudgetLimit caps spending for one category in one calendar month.
	// At most one limit exists per (account, category, month).
	BudgetLimit struct {
		ID         int64
		AccountID  int64
		CategoryID int64
		Limit      Money
		Month      time.Time // first day of the month
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrEmptyName           = errors.New("empty name")
)

// Valid reports whether t is one of the two enumerated category types.
func (t CategoryType) Valid() bool {
	return t == Income || t == Expense
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidCategoryType
	}
	return nil
}

func (tx Transaction) Validate() error {
	if tx.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MonthKey returns the transaction's calendar month as "YYYY-MM".
func (tx Transaction) MonthKey() string {
	return tx.Date.Format("2006-01")
}

// CategoryName returns the category name or "" for uncategorized records.
func (tx Transaction) CategoryName() string {
	if tx.Category == nil {
		return ""
	}
	return tx.Category.Name
}
