package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mmms/internal/core"
	"mmms/internal/insights"
)

const recentTransactions = 10

type dashboardResponse struct {
	Month              string                 `json:"month"`
	Currency           core.Currency          `json:"currency"`
	Summary            insights.MonthSummary  `json:"summary"`
	Budgets            []insights.BudgetView  `json:"budgets"`
	Savings            []insights.SavingsView `json:"savings"`
	Categories         []core.Category        `json:"categories"`
	RecentTransactions []core.Transaction     `json:"recentTransactions"`
}

// handleDashboard returns every view model of the dashboard for ?month in
// one response. The four reads run concurrently.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	currency, err := currencyQuery(r, core.USD)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, year, mon, err := monthQuery(r, ws.Today())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	var (
		txs     []core.Transaction
		goals   []core.BudgetGoal
		savings []insights.SavingsView
		cats    []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = ws.Transactions.All(gctx)
		return err
	})
	g.Go(func() (err error) {
		goals, err = ws.BudgetGoals.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		savings, err = ws.SavingsGoals.Progress(gctx)
		return err
	})
	g.Go(func() (err error) {
		cats, err = ws.Categories.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := insights.MonthlySummary(txs, year, mon, currency, ws.Converter())
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := ws.BudgetGoals.ProgressOf(goals, txs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	window := insights.MonthWindow(year, mon)
	recent := make([]core.Transaction, 0, recentTransactions)
	for _, tx := range txs {
		if window.Contains(tx.Date) {
			recent = append(recent, tx)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > recentTransactions {
		recent = recent[:recentTransactions]
	}

	if budgets == nil {
		budgets = []insights.BudgetView{}
	}
	if savings == nil {
		savings = []insights.SavingsView{}
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Month:              month,
		Currency:           currency,
		Summary:            summary,
		Budgets:            budgets,
		Savings:            savings,
		Categories:         cats,
		RecentTransactions: recent,
	})
}
