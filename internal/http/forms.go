package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

// Forms keep the raw submitted strings so a failed validation can
// redisplay exactly what the user typed, with field-level errors.

type TransactionForm struct {
	CategoryID  string
	Amount      string
	Date        string
	Description string
	Errors      map[string]string
}

// transactionFields holds the validated values of a TransactionForm.
// CategoryID is zero when no category was selected.
type transactionFields struct {
	CategoryID  int64
	Amount      core.Money
	Date        time.Time
	Description string
}

func NewTransactionForm() *TransactionForm {
	return &TransactionForm{Errors: make(map[string]string)}
}

// TransactionFormFromRecord prefills the form for editing.
func TransactionFormFromRecord(tx core.Transaction) *TransactionForm {
	f := NewTransactionForm()
	if tx.Category != nil {
		f.CategoryID = strconv.FormatInt(tx.Category.ID, 10)
	}
	f.Amount = tx.Amount.String()
	f.Date = tx.Date.Format("2006-01-02")
	f.Description = tx.Description
	return f
}

func (f *TransactionForm) Bind(form url.Values) {
	f.CategoryID = strings.TrimSpace(form.Get("category"))
	f.Amount = strings.TrimSpace(form.Get("amount"))
	f.Date = strings.TrimSpace(form.Get("date"))
	f.Description = sanitizeInput(form.Get("description"))
}

// Parse validates the bound fields. On failure it records field errors
// and returns ok=false; nothing is persisted from a failed form.
func (f *TransactionForm) Parse() (transactionFields, bool) {
	var out transactionFields

	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		f.Errors["amount"] = "Enter a valid amount with at most 10 digits and 2 decimal places."
	} else {
		out.Amount = amount
	}

	if f.Date == "" {
		f.Errors["date"] = "This field is required."
	} else if d, err := time.Parse("2006-01-02", f.Date); err != nil {
		f.Errors["date"] = "Enter a valid date."
	} else {
		out.Date = d
	}

	if f.CategoryID != "" {
		id, err := strconv.ParseInt(f.CategoryID, 10, 64)
		if err != nil || id < 1 {
			f.Errors["category"] = "Select a valid category."
		} else {
			out.CategoryID = id
		}
	}

	out.Description = f.Description
	return out, len(f.Errors) == 0
}

type CategoryForm struct {
	Name   string
	Type   string
	Errors map[string]string
}

func NewCategoryForm() *CategoryForm {
	return &CategoryForm{Type: string(core.Expense), Errors: make(map[string]string)}
}

func CategoryFormFromRecord(c core.Category) *CategoryForm {
	f := NewCategoryForm()
	f.Name = c.Name
	f.Type = string(c.Type)
	return f
}

func (f *CategoryForm) Bind(form url.Values) {
	f.Name = sanitizeInput(form.Get("name"))
	f.Type = strings.TrimSpace(form.Get("type"))
}

func (f *CategoryForm) Parse() (core.Category, bool) {
	c := core.Category{Name: f.Name, Type: core.CategoryType(f.Type)}
	if c.Name == "" {
		f.Errors["name"] = "This field is required."
	} else if len(c.Name) > 100 {
		f.Errors["name"] = "Ensure this value has at most 100 characters."
	}
	if !c.Type.Valid() {
		f.Errors["type"] = "Select a valid type."
	}
	return c, len(f.Errors) == 0
}

type RegisterForm struct {
	Username  string
	Password1 string
	Password2 string
	Errors    map[string]string
}

func NewRegisterForm() *RegisterForm {
	return &RegisterForm{Errors: make(map[string]string)}
}

func (f *RegisterForm) Bind(form url.Values) {
	f.Username = sanitizeInput(form.Get("username"))
	f.Password1 = form.Get("password1")
	f.Password2 = form.Get("password2")
}

func (f *RegisterForm) Validate() bool {
	if f.Username == "" {
		f.Errors["username"] = "This field is required."
	} else if len(f.Username) > 150 {
		f.Errors["username"] = "Ensure this value has at most 150 characters."
	}
	if len(f.Password1) < auth.MinPasswordLength {
		f.Errors["password1"] = "Password must be at least 8 characters long."
	}
	if f.Password2 != f.Password1 {
		f.Errors["password2"] = "The two password fields did not match."
	}
	return len(f.Errors) == 0
}

type LoginForm struct {
	Username string
	Password string
	Errors   map[string]string
}

func NewLoginForm() *LoginForm {
	return &LoginForm{Errors: make(map[string]string)}
}

func (f *LoginForm) Bind(form url.Values) {
	f.Username = sanitizeInput(form.Get("username"))
	f.Password = form.Get("password")
}
