package http

import (
	"net/http"

	"mmms/internal/core"
	"mmms/internal/insights"
	"mmms/internal/services"
)

type categoryRequest struct {
	Name        string      `json:"name" validate:"required,max=50"`
	Icon        string      `json:"icon" validate:"max=16"`
	Color       string      `json:"color" validate:"omitempty,hexcolor"`
	BudgetLimit *core.Money `json:"budgetLimit"`
}

type categoryUpdateRequest struct {
	Name             *string     `json:"name" validate:"omitempty,max=50"`
	Icon             *string     `json:"icon" validate:"omitempty,max=16"`
	Color            *string     `json:"color" validate:"omitempty,hexcolor"`
	BudgetLimit      *core.Money `json:"budgetLimit"`
	ClearBudgetLimit bool        `json:"clearBudgetLimit"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := ws.Categories.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := ws.Categories.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := ws.Categories.Create(r.Context(), services.CategoryInput{
		Name:        req.Name,
		Icon:        req.Icon,
		Color:       req.Color,
		BudgetLimit: req.BudgetLimit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryUpdateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := ws.Categories.Update(r.Context(), r.PathValue("id"), services.CategoryUpdate{
		Name:             req.Name,
		Icon:             req.Icon,
		Color:            req.Color,
		BudgetLimit:      req.BudgetLimit,
		ClearBudgetLimit: req.ClearBudgetLimit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ws.Categories.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleCategoryBreakdown serves spending per category for ?start&end,
// defaulting to the current month, in ?currency (USD by default).
func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	currency, err := currencyQuery(r, core.USD)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, err := dateQuery(r, "start")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := dateQuery(r, "end")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	today := ws.Today()
	window := insights.MonthWindow(today.Year(), int(today.Month()))
	if start != nil || end != nil {
		from, to := window.Start, window.End
		if start != nil {
			from = *start
		}
		if end != nil {
			to = *end
		}
		if window, err = insights.NewWindow(from, to); err != nil {
			writeError(w, r, err)
			return
		}
	}

	txs, err := ws.Transactions.All(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := insights.CategoryBreakdown(txs, window, currency, ws.Converter())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window":     window,
		"currency":   currency,
		"categories": stats,
	})
}
