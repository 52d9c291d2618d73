package insights

import (
	"github.com/shopspring/decimal"

	"mmms/internal/core"
)

// SavingsView is the progress of a savings goal.
type SavingsView struct {
	Goal        core.SavingsGoal `json:"goal"`
	Saved       core.Money       `json:"saved"`
	Percentage  float64          `json:"percentage"`
	Remaining   core.Money       `json:"remaining"`
	IsCompleted bool             `json:"isCompleted"`
	Timeline    Timeline         `json:"timeline"`
}

// TimelineState classifies a savings goal against its target date.
type TimelineState string

const (
	TimelineNone      TimelineState = "none"
	TimelineOverdue   TimelineState = "overdue"
	TimelineScheduled TimelineState = "scheduled"
)

// Timeline is the time-to-target projection of a savings goal.
// DaysRemaining is negative for overdue goals.
type Timeline struct {
	State         TimelineState `json:"state"`
	DaysRemaining int           `json:"daysRemaining"`
	DailyRequired *core.Money   `json:"dailyRequired,omitempty"`
}

// SavingsProgress adds contributions to the goal's current amount, in the
// target currency. Reaching the target exactly completes the goal.
func SavingsProgress(goal core.SavingsGoal, contributions []core.Money, conv core.Converter) (SavingsView, error) {
	currency := goal.TargetAmount.Currency
	saved, err := conv.Sum(currency, append([]core.Money{goal.CurrentAmount}, contributions...)...)
	if err != nil {
		return SavingsView{}, err
	}

	target := goal.TargetAmount.Amount
	var pct decimal.Decimal
	if target.IsPositive() {
		pct = saved.Amount.Mul(hundred).Div(target)
	}
	completed := saved.Amount.Cmp(target) >= 0

	return SavingsView{
		Goal:        goal,
		Saved:       saved,
		Percentage:  decimal.Min(pct, hundred).InexactFloat64(),
		Remaining:   core.Money{Amount: decimal.Max(target.Sub(saved.Amount), decimal.Zero), Currency: currency},
		IsCompleted: completed,
	}, nil
}

// TimeToTarget projects how much must be saved per day to meet the target
// date. Days are counted between calendar days with the time of day
// stripped; a target date of today leaves zero days and the whole remaining
// amount due today.
func TimeToTarget(goal core.SavingsGoal, contributions []core.Money, today core.Date, conv core.Converter) (Timeline, error) {
	if goal.TargetDate == nil || goal.TargetDate.IsZero() {
		return Timeline{State: TimelineNone}, nil
	}
	progress, err := SavingsProgress(goal, contributions, conv)
	if err != nil {
		return Timeline{}, err
	}

	days := core.DateOf(today.Time).DaysUntil(core.DateOf(goal.TargetDate.Time))
	if days < 0 {
		if progress.IsCompleted {
			zero := core.Zero(progress.Remaining.Currency)
			return Timeline{State: TimelineScheduled, DailyRequired: &zero}, nil
		}
		return Timeline{State: TimelineOverdue, DaysRemaining: days}, nil
	}

	daily := progress.Remaining
	if days > 0 {
		daily = core.Money{Amount: progress.Remaining.Amount.Div(decimal.NewFromInt(int64(days))), Currency: daily.Currency}
	}
	daily = daily.Round()
	return Timeline{State: TimelineScheduled, DaysRemaining: days, DailyRequired: &daily}, nil
}

// SavingsOverview combines progress and timeline for one goal.
func SavingsOverview(goal core.SavingsGoal, today core.Date, conv core.Converter) (SavingsView, error) {
	view, err := SavingsProgress(goal, nil, conv)
	if err != nil {
		return SavingsView{}, err
	}
	view.Timeline, err = TimeToTarget(goal, nil, today, conv)
	if err != nil {
		return SavingsView{}, err
	}
	return view, nil
}
