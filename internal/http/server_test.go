package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T, policy auth.CategoryPolicy) (*httptest.Server, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	sessions := auth.NewSessionManager([]byte(testSessionSecret), "fintrack_test", repo)
	srv, err := NewServer(":0", repo, sessions, policy, 4) // min bcrypt cost keeps tests fast
	if err != nil {
		t.Fatalf("build server: %v", err)
	}

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, repo
}

// newClient returns a cookie-carrying client that does not follow
// redirects, so tests can assert on Location headers.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, c *http.Client, url string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.Post(url, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func getPage(t *testing.T, c *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func register(t *testing.T, c *http.Client, baseURL, username string) {
	t.Helper()
	resp := postForm(t, c, baseURL+"/register/", url.Values{
		"username":  {username},
		"password1": {"sup3r secret"},
		"password2": {"sup3r secret"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("register %s: expected 303, got %d", username, resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Fatalf("register should redirect to the transaction list, got %q", loc)
	}
}

func addCategory(t *testing.T, c *http.Client, baseURL, name, typ string) {
	t.Helper()
	resp := postForm(t, c, baseURL+"/categories/add/", url.Values{
		"name": {name},
		"type": {typ},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("add category %s: expected 303, got %d", name, resp.StatusCode)
	}
}

func addTransaction(t *testing.T, c *http.Client, baseURL string, form url.Values) *http.Response {
	t.Helper()
	return postForm(t, c, baseURL+"/add/", form)
}

func accountByName(t *testing.T, repo *storage.Repository, username string) core.Account {
	t.Helper()
	a, _, err := repo.AccountByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("account %s: %v", username, err)
	}
	return a
}

func TestLoginRequiredRedirects(t *testing.T) {
	ts, _ := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)

	for _, path := range []string{"/", "/add/", "/analysis/", "/categories/"} {
		resp := getPage(t, c, ts.URL+path)
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s expected 303 for anonymous, got %d", path, resp.StatusCode)
		}
		loc := resp.Header.Get("Location")
		if !strings.HasPrefix(loc, auth.LoginPath) {
			t.Fatalf("%s should redirect to login, got %q", path, loc)
		}
	}
}

func TestHealthzIsPublic(t *testing.T) {
	ts, _ := newTestServer(t, auth.SharedCategoryPolicy{})
	resp := getPage(t, newClient(t), ts.URL+"/healthz")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("healthz expected 200 ok, got %d %q", resp.StatusCode, body)
	}
}

func TestRegisterSignsInAndOwnsNothing(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)

	register(t, c, ts.URL, "alice")

	// The registration response established a session: the list loads
	// without another login.
	resp := getPage(t, c, ts.URL+"/")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list after register expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "No transactions yet.") {
		t.Fatal("fresh account should own zero transactions")
	}
	if !strings.Contains(body, "alice") {
		t.Fatal("navigation should show the signed-in username")
	}

	a := accountByName(t, repo, "alice")
	txns, err := repo.ListTransactions(context.Background(), a.ID)
	if err != nil || len(txns) != 0 {
		t.Fatalf("fresh account expected zero transactions, got %d (err=%v)", len(txns), err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts, _ := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)

	// Mismatched passwords redisplay the form.
	resp := postForm(t, c, ts.URL+"/register/", url.Values{
		"username":  {"alice"},
		"password1": {"sup3r secret"},
		"password2": {"different"},
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "did not match") {
		t.Fatalf("mismatch expected redisplay with error, got %d", resp.StatusCode)
	}

	// Short password.
	resp = postForm(t, c, ts.URL+"/register/", url.Values{
		"username":  {"alice"},
		"password1": {"short"},
		"password2": {"short"},
	})
	body = readBody(t, resp)
	if !strings.Contains(body, "at least 8 characters") {
		t.Fatal("short password should produce a field error")
	}

	// Duplicate username.
	register(t, c, ts.URL, "alice")
	c2 := newClient(t)
	resp = postForm(t, c2, ts.URL+"/register/", url.Values{
		"username":  {"alice"},
		"password1": {"sup3r secret"},
		"password2": {"sup3r secret"},
	})
	body = readBody(t, resp)
	if !strings.Contains(body, "already exists") {
		t.Fatal("duplicate username should produce a field error")
	}
}

func TestLoginAndLogout(t *testing.T) {
	ts, _ := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")

	// Log out: session gone, list redirects again.
	resp := postForm(t, c, ts.URL+"/accounts/logout/", url.Values{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("logout expected 303, got %d", resp.StatusCode)
	}
	resp = getPage(t, c, ts.URL+"/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("list after logout expected redirect, got %d", resp.StatusCode)
	}

	// Wrong password is rejected with a generic message.
	resp = postForm(t, c, ts.URL+auth.LoginPath, url.Values{
		"username": {"alice"},
		"password": {"wrong password"},
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "correct username and password") {
		t.Fatalf("bad login expected redisplay, got %d", resp.StatusCode)
	}

	// Correct credentials honor the next parameter.
	resp = postForm(t, c, ts.URL+auth.LoginPath, url.Values{
		"username": {"alice"},
		"password": {"sup3r secret"},
		"next":     {"/analysis/"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/analysis/" {
		t.Fatalf("login expected 303 to /analysis/, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestTransactionCreateAndTotals(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")
	addCategory(t, c, ts.URL, "Salary", "INCOME")
	addCategory(t, c, ts.URL, "Food", "EXPENSE")

	a := accountByName(t, repo, "alice")
	cats, err := repo.ListCategories(context.Background())
	if err != nil || len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d (err=%v)", len(cats), err)
	}
	byName := map[string]int64{}
	for _, cat := range cats {
		byName[cat.Name] = cat.ID
	}

	for _, tx := range []struct {
		cat    string
		amount string
		date   string
	}{
		{"Salary", "3000.00", "2025-01-01"},
		{"Food", "120.50", "2025-01-12"},
		{"Food", "79.50", "2025-01-20"},
	} {
		resp := addTransaction(t, c, ts.URL, url.Values{
			"category":    {strconv.FormatInt(byName[tx.cat], 10)},
			"amount":      {tx.amount},
			"date":        {tx.date},
			"description": {"test"},
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("add transaction expected 303, got %d", resp.StatusCode)
		}
	}

	resp := getPage(t, c, ts.URL+"/")
	body := readBody(t, resp)
	if !strings.Contains(body, "Income: 3000.00") {
		t.Fatalf("expected income total in page:\n%s", body)
	}
	if !strings.Contains(body, "Expense: 200.00") {
		t.Fatal("expected expense total in page")
	}
	if !strings.Contains(body, "Balance: 2800.00") {
		t.Fatal("expected balance in page")
	}

	// Owner comes from the session.
	txns, err := repo.ListTransactions(context.Background(), a.ID)
	if err != nil || len(txns) != 3 {
		t.Fatalf("expected 3 owned transactions, got %d (err=%v)", len(txns), err)
	}
}

func TestTransactionAmountValidation(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")

	// Three fractional digits: rejected, redisplayed, nothing stored.
	resp := addTransaction(t, c, ts.URL, url.Values{
		"amount": {"12.345"},
		"date":   {"2025-01-01"},
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "valid amount") {
		t.Fatalf("bad amount expected redisplay with error, got %d", resp.StatusCode)
	}

	// Bad date, same contract.
	resp = addTransaction(t, c, ts.URL, url.Values{
		"amount": {"12.34"},
		"date":   {"2025-02-31"},
	})
	body = readBody(t, resp)
	if !strings.Contains(body, "valid date") {
		t.Fatal("bad date should produce a field error")
	}

	// Unknown category, same contract.
	resp = addTransaction(t, c, ts.URL, url.Values{
		"amount":   {"12.34"},
		"date":     {"2025-01-01"},
		"category": {"9999"},
	})
	body = readBody(t, resp)
	if !strings.Contains(body, "valid category") {
		t.Fatal("unknown category should produce a field error")
	}

	a := accountByName(t, repo, "alice")
	txns, err := repo.ListTransactions(context.Background(), a.ID)
	if err != nil || len(txns) != 0 {
		t.Fatalf("failed validation must persist nothing, got %d (err=%v)", len(txns), err)
	}

	// The boundary case is accepted and stored exactly.
	resp = addTransaction(t, c, ts.URL, url.Values{
		"amount": {"12.34"},
		"date":   {"2025-01-01"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("valid amount expected 303, got %d", resp.StatusCode)
	}
	txns, err = repo.ListTransactions(context.Background(), a.ID)
	if err != nil || len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d (err=%v)", len(txns), err)
	}
	if txns[0].Amount.Cents != 1234 {
		t.Fatalf("12.34 should store as 1234 cents, got %d", txns[0].Amount.Cents)
	}
}

func TestOwnershipIsolationOverHTTP(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})

	alice := newClient(t)
	register(t, alice, ts.URL, "alice")
	resp := addTransaction(t, alice, ts.URL, url.Values{
		"amount": {"50.00"},
		"date":   {"2025-01-01"},
	})
	resp.Body.Close()

	aliceAccount := accountByName(t, repo, "alice")
	txns, err := repo.ListTransactions(context.Background(), aliceAccount.ID)
	if err != nil || len(txns) != 1 {
		t.Fatalf("expected alice to own 1 transaction, got %d (err=%v)", len(txns), err)
	}
	id := strconv.FormatInt(txns[0].ID, 10)

	bob := newClient(t)
	register(t, bob, ts.URL, "bob")

	// Bob's list is empty and alice's record 404s for him everywhere.
	resp = getPage(t, bob, ts.URL+"/")
	if body := readBody(t, resp); !strings.Contains(body, "No transactions yet.") {
		t.Fatal("bob should see no transactions")
	}
	for _, req := range []struct {
		method, path string
	}{
		{http.MethodGet, "/edit/" + id + "/"},
		{http.MethodGet, "/delete/" + id + "/"},
		{http.MethodPost, "/delete/" + id + "/"},
		{http.MethodPost, "/edit/" + id + "/"},
	} {
		var resp *http.Response
		if req.method == http.MethodGet {
			resp = getPage(t, bob, ts.URL+req.path)
		} else {
			resp = postForm(t, bob, ts.URL+req.path, url.Values{
				"amount": {"1.00"}, "date": {"2025-01-01"},
			})
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s by non-owner expected 404, got %d", req.method, req.path, resp.StatusCode)
		}
	}

	// Alice's record is untouched.
	if _, err := repo.TransactionByID(context.Background(), txns[0].ID, aliceAccount.ID); err != nil {
		t.Fatalf("alice's transaction should survive bob's attempts: %v", err)
	}
}

func TestDeleteRequiresPost(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")
	resp := addTransaction(t, c, ts.URL, url.Values{
		"amount": {"10.00"},
		"date":   {"2025-01-01"},
	})
	resp.Body.Close()

	a := accountByName(t, repo, "alice")
	txns, _ := repo.ListTransactions(context.Background(), a.ID)
	id := strconv.FormatInt(txns[0].ID, 10)

	// GET renders the confirmation and must not mutate.
	resp = getPage(t, c, ts.URL+"/delete/"+id+"/")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Delete transaction") {
		t.Fatalf("confirmation page expected, got %d", resp.StatusCode)
	}
	if txns, _ := repo.ListTransactions(context.Background(), a.ID); len(txns) != 1 {
		t.Fatal("GET on the delete route must not delete")
	}

	// POST deletes and redirects to the list.
	resp = postForm(t, c, ts.URL+"/delete/"+id+"/", url.Values{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("delete expected 303 to /, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if txns, _ := repo.ListTransactions(context.Background(), a.ID); len(txns) != 0 {
		t.Fatal("POST should delete the transaction")
	}
}

func TestTransactionEdit(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")
	resp := addTransaction(t, c, ts.URL, url.Values{
		"amount":      {"10.00"},
		"date":        {"2025-01-01"},
		"description": {"before"},
	})
	resp.Body.Close()

	a := accountByName(t, repo, "alice")
	txns, _ := repo.ListTransactions(context.Background(), a.ID)
	id := strconv.FormatInt(txns[0].ID, 10)

	// The edit form is prefilled from the record.
	resp = getPage(t, c, ts.URL+"/edit/"+id+"/")
	body := readBody(t, resp)
	if !strings.Contains(body, "10.00") || !strings.Contains(body, "before") {
		t.Fatal("edit form should be prefilled")
	}

	resp = postForm(t, c, ts.URL+"/edit/"+id+"/", url.Values{
		"amount":      {"25.75"},
		"date":        {"2025-02-02"},
		"description": {"after"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("edit expected 303, got %d", resp.StatusCode)
	}

	got, err := repo.TransactionByID(context.Background(), txns[0].ID, a.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Amount.Cents != 2575 || got.Description != "after" || got.Date.Format("2006-01-02") != "2025-02-02" {
		t.Fatalf("edit not applied: %+v", got)
	}

	// Unknown id 404s.
	resp = getPage(t, c, ts.URL+"/edit/424242/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id expected 404, got %d", resp.StatusCode)
	}
}

func TestCategoryLifecycleOverHTTP(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")
	addCategory(t, c, ts.URL, "Food", "EXPENSE")

	cats, _ := repo.ListCategories(context.Background())
	if len(cats) != 1 {
		t.Fatalf("expected 1 category, got %d", len(cats))
	}
	id := strconv.FormatInt(cats[0].ID, 10)

	// Categories are shared: another account sees and may edit them.
	bob := newClient(t)
	register(t, bob, ts.URL, "bob")
	resp := getPage(t, bob, ts.URL+"/categories/")
	if body := readBody(t, resp); !strings.Contains(body, "Food") {
		t.Fatal("categories should be visible to every account")
	}
	resp = postForm(t, bob, ts.URL+"/categories/edit/"+id+"/", url.Values{
		"name": {"Groceries"},
		"type": {"EXPENSE"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("shared category edit expected 303, got %d", resp.StatusCode)
	}

	// Validation failure redisplays.
	resp = postForm(t, bob, ts.URL+"/categories/edit/"+id+"/", url.Values{
		"name": {""},
		"type": {"EXPENSE"},
	})
	if body := readBody(t, resp); !strings.Contains(body, "required") {
		t.Fatal("blank name should produce a field error")
	}

	// Delete: alice's transaction keeps existing, uncategorized.
	catID := cats[0].ID
	a := accountByName(t, repo, "alice")
	resp = addTransaction(t, c, ts.URL, url.Values{
		"category": {id},
		"amount":   {"5.00"},
		"date":     {"2025-01-01"},
	})
	resp.Body.Close()

	resp = getPage(t, c, ts.URL+"/categories/delete/"+id+"/")
	body := readBody(t, resp)
	if !strings.Contains(body, "Groceries") {
		t.Fatal("delete confirmation should name the category")
	}
	if _, err := repo.CategoryByID(context.Background(), catID); err != nil {
		t.Fatal("GET on the delete route must not delete")
	}

	resp = postForm(t, c, ts.URL+"/categories/delete/"+id+"/", url.Values{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("category delete expected 303, got %d", resp.StatusCode)
	}
	txns, _ := repo.ListTransactions(context.Background(), a.ID)
	if len(txns) != 1 || txns[0].Category != nil {
		t.Fatalf("transaction should survive category delete with nil category: %+v", txns)
	}
}

func TestCategoryPolicyLocked(t *testing.T) {
	ts, _ := newTestServer(t, auth.LockedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")

	// The list stays readable, mutation is forbidden.
	resp := getPage(t, c, ts.URL+"/categories/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("category list expected 200, got %d", resp.StatusCode)
	}
	resp = postForm(t, c, ts.URL+"/categories/add/", url.Values{
		"name": {"Food"},
		"type": {"EXPENSE"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("locked policy expected 403, got %d", resp.StatusCode)
	}
}

func TestAnalysisChartPresence(t *testing.T) {
	ts, repo := newTestServer(t, auth.SharedCategoryPolicy{})
	c := newClient(t)
	register(t, c, ts.URL, "alice")

	// No transactions: both charts absent.
	resp := getPage(t, c, ts.URL+"/analysis/")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis expected 200, got %d", resp.StatusCode)
	}
	if strings.Contains(body, "data:image/png;base64,") {
		t.Fatal("empty account should render no charts")
	}
	if !strings.Contains(body, "No expense transactions yet.") || !strings.Contains(body, "No transactions yet.") {
		t.Fatal("empty account should show both placeholders")
	}

	// Expense-only data: both charts present, income bars at zero.
	addCategory(t, c, ts.URL, "Food", "EXPENSE")
	cats, _ := repo.ListCategories(context.Background())
	resp = addTransaction(t, c, ts.URL, url.Values{
		"category": {strconv.FormatInt(cats[0].ID, 10)},
		"amount":   {"42.00"},
		"date":     {"2025-01-10"},
	})
	resp.Body.Close()

	resp = getPage(t, c, ts.URL+"/analysis/")
	body = readBody(t, resp)
	if got := strings.Count(body, "data:image/png;base64,"); got != 2 {
		t.Fatalf("expense-only account expected 2 charts, got %d", got)
	}
}
