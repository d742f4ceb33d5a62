package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/auth"
	"fintrack/internal/charts"
	"fintrack/internal/core"
)

// handleAnalysis renders the two spending charts. Each chart is
// aggregated and rasterized independently; an empty aggregation omits
// its chart rather than rendering an empty image.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())

	var pie, bars template.URL
	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		byCategory, err := s.repo.ExpenseByCategory(ctx, account.ID)
		if err != nil {
			return err
		}
		uri, err := charts.ExpensePie(byCategory)
		if errors.Is(err, charts.ErrNoData) {
			return nil
		}
		if err != nil {
			return err
		}
		pie = template.URL(uri)
		return nil
	})

	g.Go(func() error {
		flows, err := s.repo.MonthlyFlows(ctx, account.ID)
		if err != nil {
			return err
		}
		uri, err := charts.MonthlyBars(flows)
		if errors.Is(err, charts.ErrNoData) {
			return nil
		}
		if err != nil {
			return err
		}
		bars = template.URL(uri)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.ErrorContext(r.Context(), "Analysis failed", "error", err, "account_id", account.ID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "analysis.html", struct {
		Account  *core.Account
		PieChart template.URL
		BarChart template.URL
	}{
		Account:  &account,
		PieChart: pie,
		BarChart: bars,
	})
}
