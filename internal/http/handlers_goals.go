package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"mmms/internal/core"
	"mmms/internal/services"
)

// idRef accepts the {"id": ...} objects older clients send instead of ids.
type idRef struct {
	ID string `json:"id" validate:"required"`
}

type budgetGoalRequest struct {
	Name           string      `json:"name" validate:"max=100"`
	CategoryID     string      `json:"categoryId" validate:"max=100"`
	Category       *idRef      `json:"category"`
	Limit          *core.Money `json:"limit"`
	Target         *core.Money `json:"target"`
	Period         string      `json:"period" validate:"omitempty,oneof=daily weekly monthly"`
	AlertThreshold *float64    `json:"alertThreshold" validate:"omitempty,gt=0,lte=100"`
}

type budgetGoalUpdateRequest struct {
	Name           *string     `json:"name" validate:"omitempty,max=100"`
	Limit          *core.Money `json:"limit"`
	Target         *core.Money `json:"target"`
	Period         *string     `json:"period" validate:"omitempty,oneof=daily weekly monthly"`
	AlertThreshold *float64    `json:"alertThreshold" validate:"omitempty,gt=0,lte=100"`
}

func firstMoney(ms ...*core.Money) *core.Money {
	for _, m := range ms {
		if m != nil {
			return m
		}
	}
	return nil
}

func (req budgetGoalRequest) input() (services.BudgetGoalInput, error) {
	categoryID := req.CategoryID
	if categoryID == "" && req.Category != nil {
		categoryID = req.Category.ID
	}
	if categoryID == "" {
		return services.BudgetGoalInput{}, core.Invalid("categoryId", "is required")
	}
	limit := firstMoney(req.Limit, req.Target)
	if limit == nil {
		return services.BudgetGoalInput{}, core.Invalid("limit", "is required")
	}
	return services.BudgetGoalInput{
		Name:           req.Name,
		CategoryID:     categoryID,
		Limit:          *limit,
		Period:         core.Period(req.Period),
		AlertThreshold: req.AlertThreshold,
	}, nil
}

func (s *Server) handleListBudgetGoals(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goals, err := ws.BudgetGoals.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := ws.BudgetGoals.Progress(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateBudgetGoal(w http.ResponseWriter, r *http.Request) {
	var req budgetGoalRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := ws.BudgetGoals.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleUpdateBudgetGoal(w http.ResponseWriter, r *http.Request) {
	var req budgetGoalUpdateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	upd := services.BudgetGoalUpdate{
		Name:           req.Name,
		Limit:          firstMoney(req.Limit, req.Target),
		AlertThreshold: req.AlertThreshold,
	}
	if req.Period != nil {
		p := core.Period(*req.Period)
		upd.Period = &p
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := ws.BudgetGoals.Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteBudgetGoal(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ws.BudgetGoals.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type savingsGoalRequest struct {
	Name          string      `json:"name" validate:"required,max=100"`
	TargetAmount  *core.Money `json:"targetAmount"`
	Target        *core.Money `json:"target"`
	CurrentAmount *core.Money `json:"currentAmount"`
	TargetDate    *core.Date  `json:"targetDate"`
	Deadline      *core.Date  `json:"deadline"`
	Description   string      `json:"description" validate:"max=500"`
}

type savingsGoalUpdateRequest struct {
	Name            *string     `json:"name" validate:"omitempty,max=100"`
	TargetAmount    *core.Money `json:"targetAmount"`
	CurrentAmount   *core.Money `json:"currentAmount"`
	Current         *core.Money `json:"current"`
	TargetDate      *core.Date  `json:"targetDate"`
	ClearTargetDate bool        `json:"clearTargetDate"`
	Description     *string     `json:"description" validate:"omitempty,max=500"`
}

type contributionRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"required,currency"`
}

// dateOrNil drops zero dates, which JSON null decodes to.
func dateOrNil(ds ...*core.Date) *core.Date {
	for _, d := range ds {
		if d != nil && !d.IsZero() {
			return d
		}
	}
	return nil
}

func (s *Server) handleListSavingsGoals(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goals, err := ws.SavingsGoals.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleSavingsProgress(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := ws.SavingsGoals.Progress(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateSavingsGoal(w http.ResponseWriter, r *http.Request) {
	var req savingsGoalRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target := firstMoney(req.TargetAmount, req.Target)
	if target == nil {
		writeError(w, r, core.Invalid("targetAmount", "is required"))
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := ws.SavingsGoals.Create(r.Context(), services.SavingsGoalInput{
		Name:          req.Name,
		TargetAmount:  *target,
		CurrentAmount: req.CurrentAmount,
		TargetDate:    dateOrNil(req.TargetDate, req.Deadline),
		Description:   req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleUpdateSavingsGoal(w http.ResponseWriter, r *http.Request) {
	var req savingsGoalUpdateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := ws.SavingsGoals.Update(r.Context(), r.PathValue("id"), services.SavingsGoalUpdate{
		Name:            req.Name,
		TargetAmount:    req.TargetAmount,
		CurrentAmount:   firstMoney(req.CurrentAmount, req.Current),
		TargetDate:      dateOrNil(req.TargetDate),
		ClearTargetDate: req.ClearTargetDate,
		Description:     req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount := core.Money{Amount: req.Amount, Currency: core.Currency(strings.ToUpper(req.Currency))}
	view, err := ws.SavingsGoals.AddContribution(r.Context(), r.PathValue("id"), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteSavingsGoal(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ws.SavingsGoals.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
