package services

import (
	"context"
	"errors"
	"strings"

	"mmms/internal/core"
	"mmms/internal/insights"
	"mmms/internal/log"
	"mmms/internal/notify"
	"mmms/internal/sheets"
)

// BudgetGoalService manages spending limits per category.
type BudgetGoalService struct {
	*base
	categories   *CategoryRegistry
	transactions *TransactionService
}

// BudgetGoalInput carries a new budget goal.
type BudgetGoalInput struct {
	Name           string
	CategoryID     string
	Limit          core.Money
	Period         core.Period
	AlertThreshold *float64
}

// BudgetGoalUpdate lists the fields to change; nil fields are kept.
type BudgetGoalUpdate struct {
	Name           *string
	Limit          *core.Money
	Period         *core.Period
	AlertThreshold *float64
}

type storedGoal struct {
	rowIndex int
	goal     core.BudgetGoal
}

func (s *BudgetGoalService) load(ctx context.Context) ([]storedGoal, error) {
	rows, err := s.gw.List(ctx, sheets.KindBudgetGoals)
	if err != nil {
		return nil, err
	}
	resolve := s.categories.Resolver(ctx)
	today := s.today()
	out := make([]storedGoal, 0, len(rows))
	for i, row := range rows {
		g, err := sheets.ParseBudgetGoal(row, resolve)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping unreadable budget goal row", "row", i, log.FieldError, err)
			continue
		}
		out = append(out, storedGoal{rowIndex: i, goal: g.WithWindow(today)})
	}
	return out, nil
}

func (s *BudgetGoalService) find(ctx context.Context, id string) (storedGoal, error) {
	goals, err := s.load(ctx)
	if err != nil {
		return storedGoal{}, err
	}
	for _, sg := range goals {
		if sg.goal.ID == id {
			return sg, nil
		}
	}
	return storedGoal{}, &core.NotFoundError{Kind: "budget goal", ID: id}
}

// List returns the goals bounded to the period instance containing today.
func (s *BudgetGoalService) List(ctx context.Context) ([]core.BudgetGoal, error) {
	stored, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	goals := make([]core.BudgetGoal, len(stored))
	for i, sg := range stored {
		goals[i] = sg.goal
	}
	return goals, nil
}

// Progress derives spending for every goal from the stored transactions.
func (s *BudgetGoalService) Progress(ctx context.Context) ([]insights.BudgetView, error) {
	goals, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.transactions.All(ctx)
	if err != nil {
		return nil, err
	}
	return s.ProgressOf(goals, txs)
}

// ProgressOf computes the views of goals over already loaded transactions.
func (s *BudgetGoalService) ProgressOf(goals []core.BudgetGoal, txs []core.Transaction) ([]insights.BudgetView, error) {
	views := make([]insights.BudgetView, 0, len(goals))
	for _, g := range goals {
		v, err := insights.BudgetProgress(g, txs, s.conv())
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Create stores a new goal. The name defaults to the category name.
func (s *BudgetGoalService) Create(ctx context.Context, in BudgetGoalInput) (core.BudgetGoal, error) {
	if in.CategoryID == "" {
		return core.BudgetGoal{}, core.Invalid("categoryId", "is required")
	}
	category, err := s.categories.Lookup(ctx, in.CategoryID)
	if err != nil {
		var nf *core.NotFoundError
		if errors.As(err, &nf) {
			return core.BudgetGoal{}, core.Invalid("categoryId", "does not name a category")
		}
		return core.BudgetGoal{}, err
	}
	if in.Period == "" {
		in.Period = core.PeriodMonthly
	}
	today := s.today()
	g := core.BudgetGoal{
		ID:             newID("budget"),
		Name:           strings.TrimSpace(in.Name),
		Category:       category,
		Limit:          in.Limit,
		Period:         in.Period,
		AlertThreshold: in.AlertThreshold,
		CreatedDate:    today,
	}
	if g.Name == "" {
		g.Name = category.Name
	}
	if err := g.Validate(); err != nil {
		return core.BudgetGoal{}, err
	}
	g = g.WithWindow(today)

	spent, err := s.spentFor(ctx, g)
	if err != nil {
		s.logger.WarnContext(ctx, "Spent snapshot unavailable", log.FieldEntityID, g.ID, log.FieldError, err)
		spent = core.Zero(g.Limit.Currency)
	}
	if err := s.gw.Append(ctx, sheets.KindBudgetGoals, sheets.BudgetGoalRow(g, spent)); err != nil {
		return core.BudgetGoal{}, err
	}
	s.logger.InfoContext(ctx, "Budget goal created", log.FieldUser, s.owner, log.FieldEntityID, g.ID, log.FieldCategory, category.ID)
	return g, nil
}

// Update changes name, limit, period or alert threshold of a goal.
func (s *BudgetGoalService) Update(ctx context.Context, id string, upd BudgetGoalUpdate) (core.BudgetGoal, error) {
	sg, err := s.find(ctx, id)
	if err != nil {
		return core.BudgetGoal{}, err
	}
	g := sg.goal
	if upd.Name != nil {
		g.Name = strings.TrimSpace(*upd.Name)
		if g.Name == "" {
			g.Name = g.Category.Name
		}
	}
	if upd.Limit != nil {
		g.Limit = *upd.Limit
	}
	if upd.Period != nil {
		g.Period = *upd.Period
	}
	if upd.AlertThreshold != nil {
		g.AlertThreshold = upd.AlertThreshold
	}
	if err := g.Validate(); err != nil {
		return core.BudgetGoal{}, err
	}
	g = g.WithWindow(s.today())

	spent, err := s.spentFor(ctx, g)
	if err != nil {
		spent = core.Zero(g.Limit.Currency)
	}
	row := sheets.BudgetGoalRow(g, spent)
	if err := s.gw.UpdateCell(ctx, sheets.KindBudgetGoals, sg.rowIndex, sheets.ColBudgetTarget, row[sheets.ColBudgetTarget-1:]...); err != nil {
		return core.BudgetGoal{}, notFound(err, "budget goal", id)
	}
	return g, nil
}

// Delete removes a goal.
func (s *BudgetGoalService) Delete(ctx context.Context, id string) error {
	sg, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gw.DeleteRow(ctx, sheets.KindBudgetGoals, sg.rowIndex); err != nil {
		return notFound(err, "budget goal", id)
	}
	s.logger.InfoContext(ctx, "Budget goal deleted", log.FieldUser, s.owner, log.FieldEntityID, id)
	return nil
}

func (s *BudgetGoalService) spentFor(ctx context.Context, g core.BudgetGoal) (core.Money, error) {
	txs, err := s.transactions.All(ctx)
	if err != nil {
		return core.Money{}, err
	}
	v, err := insights.BudgetProgress(g, txs, s.conv())
	if err != nil {
		return core.Money{}, err
	}
	return v.Spent, nil
}

// ExpenseRecorded refreshes the Spent snapshot of the goals tx counts
// towards and notifies the user when tx pushes a goal across its alert
// threshold or its limit.
func (s *BudgetGoalService) ExpenseRecorded(ctx context.Context, tx core.Transaction) error {
	if tx.Type != core.Expense {
		return nil
	}
	goals, err := s.load(ctx)
	if err != nil {
		return err
	}
	var txs []core.Transaction
	var errs []error
	for _, sg := range goals {
		g := sg.goal
		if g.Category.ID != tx.Category.ID || !tx.Date.Within(g.StartDate, g.EndDate) {
			continue
		}
		if txs == nil {
			if txs, err = s.transactions.All(ctx); err != nil {
				return err
			}
		}
		after, err := insights.BudgetProgress(g, txs, s.conv())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		before, err := insights.BudgetProgress(g, without(txs, tx.ID), s.conv())
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := s.gw.UpdateCell(ctx, sheets.KindBudgetGoals, sg.rowIndex, sheets.ColBudgetSpent, sheets.AmountCell(after.Spent)); err != nil {
			errs = append(errs, err)
		}
		if crossed(before.Percentage, after.Percentage, g.Threshold()) || crossed(before.Percentage, after.Percentage, 100) {
			s.alert(ctx, after)
		}
	}
	return errors.Join(errs...)
}

func (s *BudgetGoalService) alert(ctx context.Context, v insights.BudgetView) {
	n := notify.BudgetAlert(s.owner, v.Goal.Name, v.Percentage, v.Spent, v.Goal.Limit, s.deps.Clock())
	n.ChatID = s.deps.DefaultChatID
	if err := s.deps.Notifier.Notify(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "Budget alert not delivered",
			log.FieldEntityID, v.Goal.ID, log.FieldError, err)
		return
	}
	s.logger.InfoContext(ctx, "Budget alert published",
		log.FieldUser, s.owner,
		log.FieldEntityID, v.Goal.ID,
		log.FieldPercentage, v.Percentage)
}

// crossed reports whether a percentage moved from below mark to mark or above.
// The limit itself is crossed only once spending goes past it.
func crossed(before, after, mark float64) bool {
	if mark >= 100 {
		return before <= 100 && after > 100
	}
	return before < mark && after >= mark
}

func without(txs []core.Transaction, id string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.ID != id {
			out = append(out, tx)
		}
	}
	return out
}
