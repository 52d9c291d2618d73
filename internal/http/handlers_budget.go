package http

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"mmms/internal/core"
	"mmms/internal/services"
)

type budgetItemRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"required,currency"`
	Category string          `json:"category" validate:"max=100"`
}

type budgetDataRequest struct {
	ID             string              `json:"id"`
	Date           core.Date           `json:"date"`
	Month          string              `json:"month" validate:"required,max=50"`
	TotalIncome    decimal.Decimal     `json:"totalIncome"`
	Currency       string              `json:"currency" validate:"required,currency"`
	Items          []budgetItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	TelegramChatID string              `json:"telegramChatId" validate:"omitempty,numeric"`
}

type saveBudgetRequest struct {
	BudgetData budgetDataRequest `json:"budgetData"`
}

func (b budgetDataRequest) plan() services.BudgetPlan {
	items := make([]services.BudgetItem, len(b.Items))
	for i, it := range b.Items {
		items[i] = services.BudgetItem{
			Name:     it.Name,
			Amount:   core.Money{Amount: it.Amount, Currency: core.Currency(strings.ToUpper(it.Currency))},
			Category: it.Category,
		}
	}
	return services.BudgetPlan{
		Date:           b.Date,
		Month:          b.Month,
		TotalIncome:    core.Money{Amount: b.TotalIncome, Currency: core.Currency(strings.ToUpper(b.Currency))},
		Items:          items,
		TelegramChatID: b.TelegramChatID,
	}
}

func (s *Server) handleCreateSpreadsheet(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := ws.BudgetEntries.EnsureSpreadsheet(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"spreadsheetId": c.ID, "spreadsheetUrl": c.URL})
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	var req saveBudgetRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := ws.BudgetEntries.Save(r.Context(), req.BudgetData.plan())
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.budgetsSaved, 1)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"totalSpending": res.TotalSpending,
		"remaining":     res.Remaining,
		"entriesAdded":  res.EntriesAdded,
	})
}

func (s *Server) handleListBudgetEntries(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := ws.BudgetEntries.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleDeleteBudgetEntry(w http.ResponseWriter, r *http.Request) {
	rowIndex, err := rowIndexPath(r, "rowIndex")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ws.BudgetEntries.Delete(r.Context(), rowIndex); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
