package services

import (
	"context"
	"strings"

	"mmms/internal/core"
	"mmms/internal/insights"
	"mmms/internal/log"
	"mmms/internal/sheets"
)

// SavingsGoalService manages savings targets and contributions.
type SavingsGoalService struct {
	*base
}

// SavingsGoalInput carries a new savings goal. CurrentAmount defaults to
// zero in the target currency.
type SavingsGoalInput struct {
	Name          string
	TargetAmount  core.Money
	CurrentAmount *core.Money
	TargetDate    *core.Date
	Description   string
}

// SavingsGoalUpdate lists the fields to change; nil fields are kept.
type SavingsGoalUpdate struct {
	Name            *string
	TargetAmount    *core.Money
	CurrentAmount   *core.Money
	TargetDate      *core.Date
	ClearTargetDate bool
	Description     *string
}

type storedSavings struct {
	rowIndex int
	goal     core.SavingsGoal
}

func (s *SavingsGoalService) load(ctx context.Context) ([]storedSavings, error) {
	rows, err := s.gw.List(ctx, sheets.KindSavingsGoals)
	if err != nil {
		return nil, err
	}
	out := make([]storedSavings, 0, len(rows))
	for i, row := range rows {
		g, err := sheets.ParseSavingsGoal(row)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping unreadable savings goal row", "row", i, log.FieldError, err)
			continue
		}
		out = append(out, storedSavings{rowIndex: i, goal: g})
	}
	return out, nil
}

func (s *SavingsGoalService) find(ctx context.Context, id string) (storedSavings, error) {
	goals, err := s.load(ctx)
	if err != nil {
		return storedSavings{}, err
	}
	for _, sg := range goals {
		if sg.goal.ID == id {
			return sg, nil
		}
	}
	return storedSavings{}, &core.NotFoundError{Kind: "savings goal", ID: id}
}

func (s *SavingsGoalService) List(ctx context.Context) ([]core.SavingsGoal, error) {
	stored, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	goals := make([]core.SavingsGoal, len(stored))
	for i, sg := range stored {
		goals[i] = sg.goal
	}
	return goals, nil
}

// Progress returns progress and time-to-target of every goal.
func (s *SavingsGoalService) Progress(ctx context.Context) ([]insights.SavingsView, error) {
	goals, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()
	views := make([]insights.SavingsView, 0, len(goals))
	for _, g := range goals {
		v, err := insights.SavingsOverview(g, today, s.conv())
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *SavingsGoalService) Create(ctx context.Context, in SavingsGoalInput) (core.SavingsGoal, error) {
	g := core.SavingsGoal{
		ID:            newID("savings"),
		Name:          strings.TrimSpace(in.Name),
		TargetAmount:  in.TargetAmount,
		CurrentAmount: core.Zero(in.TargetAmount.Currency),
		TargetDate:    in.TargetDate,
		Description:   strings.TrimSpace(in.Description),
		CreatedDate:   s.today(),
	}
	if in.CurrentAmount != nil {
		current, err := s.conv().Convert(*in.CurrentAmount, in.TargetAmount.Currency)
		if err != nil {
			return core.SavingsGoal{}, err
		}
		g.CurrentAmount = current
	}
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	if err := s.gw.Append(ctx, sheets.KindSavingsGoals, sheets.SavingsGoalRow(g)); err != nil {
		return core.SavingsGoal{}, err
	}
	s.logger.InfoContext(ctx, "Savings goal created", log.FieldUser, s.owner, log.FieldEntityID, g.ID)
	return g, nil
}

// Update changes a goal. A new target currency converts the current amount.
func (s *SavingsGoalService) Update(ctx context.Context, id string, upd SavingsGoalUpdate) (core.SavingsGoal, error) {
	sg, err := s.find(ctx, id)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	g := sg.goal
	if upd.Name != nil {
		g.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.TargetAmount != nil {
		g.TargetAmount = *upd.TargetAmount
	}
	current := g.CurrentAmount
	if upd.CurrentAmount != nil {
		current = *upd.CurrentAmount
	}
	if g.CurrentAmount, err = s.conv().Convert(current, g.TargetAmount.Currency); err != nil {
		return core.SavingsGoal{}, err
	}
	if upd.ClearTargetDate {
		g.TargetDate = nil
	} else if upd.TargetDate != nil {
		g.TargetDate = upd.TargetDate
	}
	if upd.Description != nil {
		g.Description = strings.TrimSpace(*upd.Description)
	}
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	if err := s.write(ctx, sg.rowIndex, g); err != nil {
		return core.SavingsGoal{}, notFound(err, "savings goal", id)
	}
	return g, nil
}

// AddContribution adds amount, converted to the goal currency, to the
// current amount and returns the new progress.
func (s *SavingsGoalService) AddContribution(ctx context.Context, id string, amount core.Money) (insights.SavingsView, error) {
	if err := amount.Validate(); err != nil {
		return insights.SavingsView{}, err
	}
	if !amount.Amount.IsPositive() {
		return insights.SavingsView{}, core.Invalid("amount", "must be greater than zero")
	}
	sg, err := s.find(ctx, id)
	if err != nil {
		return insights.SavingsView{}, err
	}
	g := sg.goal
	current, err := s.conv().Add(g.CurrentAmount, amount, g.TargetAmount.Currency)
	if err != nil {
		return insights.SavingsView{}, err
	}
	g.CurrentAmount = current

	if err := s.gw.UpdateCell(ctx, sheets.KindSavingsGoals, sg.rowIndex, sheets.ColSavingsCurrent, sheets.AmountCell(current)); err != nil {
		return insights.SavingsView{}, notFound(err, "savings goal", id)
	}
	s.logger.InfoContext(ctx, "Savings contribution added",
		log.FieldUser, s.owner,
		log.FieldEntityID, id,
		log.FieldAmount, sheets.AmountCell(amount),
		log.FieldCurrency, string(amount.Currency))
	return insights.SavingsOverview(g, s.today(), s.conv())
}

func (s *SavingsGoalService) Delete(ctx context.Context, id string) error {
	sg, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gw.DeleteRow(ctx, sheets.KindSavingsGoals, sg.rowIndex); err != nil {
		return notFound(err, "savings goal", id)
	}
	s.logger.InfoContext(ctx, "Savings goal deleted", log.FieldUser, s.owner, log.FieldEntityID, id)
	return nil
}

func (s *SavingsGoalService) write(ctx context.Context, rowIndex int, g core.SavingsGoal) error {
	row := sheets.SavingsGoalRow(g)
	return s.gw.UpdateCell(ctx, sheets.KindSavingsGoals, rowIndex, sheets.ColSavingsName, row[sheets.ColSavingsName-1:]...)
}
