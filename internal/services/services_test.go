package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mmms/internal/core"
	"mmms/internal/insights"
	"mmms/internal/notify"
	"mmms/internal/sheets"
	"mmms/internal/sheets/memory"
)

var testNow = time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func newTestWorkspace(t *testing.T) (*Workspace, *recordingNotifier, sheets.Gateway) {
	t.Helper()
	user := core.User{Email: "a@example.com", Name: "A"}
	gw, err := memory.New().Gateway(context.Background(), user)
	require.NoError(t, err)
	n := &recordingNotifier{}
	w := NewWorkspace(user, gw, Deps{
		Converter:     core.DefaultConverter,
		Clock:         func() time.Time { return testNow },
		Notifier:      n,
		DefaultChatID: "42",
	})
	return w, n, gw
}

func usd(v float64) core.Money { return core.NewMoney(v, core.USD) }

func expenseInput(amount float64, category string, day core.Date) TransactionInput {
	return TransactionInput{Date: day, Description: "spend", Amount: usd(amount), CategoryID: category, Type: core.Expense}
}

func TestCategoryRegistry(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWorkspace(t)

	all, err := w.Categories.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 10)
	require.Equal(t, "food", all[0].ID)

	pets, err := w.Categories.Create(ctx, CategoryInput{Name: "Pets", Icon: "🐶"})
	require.NoError(t, err)
	require.True(t, pets.IsCustom)
	require.Regexp(t, `^custom_[0-9a-f-]{36}$`, pets.ID)
	require.Equal(t, defaultCategoryColor, pets.Color)

	all, err = w.Categories.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 11)
	require.Equal(t, pets.ID, all[10].ID)

	require.Equal(t, "Pets", w.Categories.GetByID(ctx, pets.ID).Name)
	require.Equal(t, core.OtherCategoryID, w.Categories.GetByID(ctx, "missing").ID)

	name := "Animals"
	updated, err := w.Categories.Update(ctx, pets.ID, CategoryUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Animals", updated.Name)
	got, err := w.Categories.Lookup(ctx, pets.ID)
	require.NoError(t, err)
	require.Equal(t, "Animals", got.Name)

	var protected *core.ProtectedCategoryError
	require.True(t, errors.As(w.Categories.Delete(ctx, "food"), &protected))
	_, err = w.Categories.Update(ctx, "food", CategoryUpdate{Name: &name})
	require.True(t, errors.As(err, &protected))

	require.NoError(t, w.Categories.Delete(ctx, pets.ID))
	all, err = w.Categories.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 10)

	var nf *core.NotFoundError
	require.True(t, errors.As(w.Categories.Delete(ctx, pets.ID), &nf))
	_, err = w.Categories.Lookup(ctx, "custom_nope")
	require.True(t, errors.As(err, &nf))

	_, err = w.Categories.Create(ctx, CategoryInput{Name: "  "})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
}

type failingGateway struct{ sheets.Gateway }

func (failingGateway) List(context.Context, sheets.Kind) ([]sheets.Row, error) {
	return nil, core.Persistence("list", "categories", errors.New("quota exceeded"))
}

func TestGetByIDFallsBackOnStorageFailure(t *testing.T) {
	w := NewWorkspace(core.User{Email: "b@example.com"}, failingGateway{}, Deps{})
	require.Equal(t, "food", w.Categories.GetByID(context.Background(), "food").ID)
	require.Equal(t, core.OtherCategoryID, w.Categories.GetByID(context.Background(), "custom_1").ID)

	_, err := w.Categories.ListAll(context.Background())
	var pe *core.PersistenceError
	require.True(t, errors.As(err, &pe))
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWorkspace(t)

	first, err := w.Transactions.Create(ctx, expenseInput(12.5, "food", core.NewDate(2025, 10, 1)))
	require.NoError(t, err)
	require.Regexp(t, `^trans_`, first.ID)
	require.Equal(t, "Food & Dining", first.Category.Name)

	_, err = w.Transactions.Create(ctx, TransactionInput{
		Date: core.NewDate(2025, 9, 30), Description: "salary", Amount: usd(1000), CategoryID: "income", Type: core.Income,
	})
	require.NoError(t, err)
	unknown, err := w.Transactions.Create(ctx, expenseInput(3, "custom_gone", core.NewDate(2025, 10, 2)))
	require.NoError(t, err)
	require.Equal(t, core.OtherCategoryID, unknown.Category.ID)

	october, err := w.Transactions.List(ctx, TransactionFilter{Month: "2025-10"})
	require.NoError(t, err)
	require.Len(t, october, 2)
	require.Equal(t, unknown.ID, october[0].ID, "newest first")

	incomes, err := w.Transactions.List(ctx, TransactionFilter{Type: core.Income})
	require.NoError(t, err)
	require.Len(t, incomes, 1)

	food, err := w.Transactions.List(ctx, TransactionFilter{CategoryID: "food"})
	require.NoError(t, err)
	require.Len(t, food, 1)

	_, err = w.Transactions.List(ctx, TransactionFilter{Month: "2025-13"})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))

	got, err := w.Transactions.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, got.Amount.Amount.Equal(first.Amount.Amount))

	require.NoError(t, w.Transactions.Delete(ctx, first.ID))
	var nf *core.NotFoundError
	_, err = w.Transactions.Get(ctx, first.ID)
	require.True(t, errors.As(err, &nf))
	require.True(t, errors.As(w.Transactions.Delete(ctx, first.ID), &nf))

	_, err = w.Transactions.Create(ctx, TransactionInput{Description: "x", Amount: usd(-1), Type: core.Expense})
	require.True(t, errors.As(err, &ve))
}

func TestBudgetGoalsFoodScenario(t *testing.T) {
	ctx := context.Background()
	w, notifier, gw := newTestWorkspace(t)

	goal, err := w.BudgetGoals.Create(ctx, BudgetGoalInput{CategoryID: "food", Limit: usd(100), Period: core.PeriodMonthly})
	require.NoError(t, err)
	require.Equal(t, "Food & Dining", goal.Name)
	require.Equal(t, "2025-10-01", goal.StartDate.String())
	require.Equal(t, "2025-10-31", goal.EndDate.String())

	_, err = w.Transactions.Create(ctx, expenseInput(50, "food", core.NewDate(2025, 10, 3)))
	require.NoError(t, err)
	require.Empty(t, notifier.sent)

	_, err = w.Transactions.Create(ctx, expenseInput(30, "food", core.NewDate(2025, 10, 10)))
	require.NoError(t, err)

	views, err := w.BudgetGoals.Progress(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "80", views[0].Spent.Amount.String())
	require.Equal(t, 80.0, views[0].Percentage)
	require.Equal(t, insights.StatusActive, views[0].Status)

	require.Len(t, notifier.sent, 1, "crossing 80% alerts once")
	require.Equal(t, notify.KindBudgetAlert, notifier.sent[0].Kind)
	require.Equal(t, "42", notifier.sent[0].ChatID)

	rows, err := gw.List(ctx, sheets.KindBudgetGoals)
	require.NoError(t, err)
	require.Equal(t, "80", rows[0][sheets.ColBudgetSpent-1], "spent snapshot refreshed")

	_, err = w.Transactions.Create(ctx, expenseInput(5, "food", core.NewDate(2025, 10, 11)))
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1, "no new alert above the threshold")

	_, err = w.Transactions.Create(ctx, expenseInput(20, "food", core.NewDate(2025, 10, 12)))
	require.NoError(t, err)
	require.Len(t, notifier.sent, 2, "exceeding the limit alerts")
	require.Contains(t, notifier.sent[1].Text, "exceeded")

	_, err = w.Transactions.Create(ctx, expenseInput(500, "food", core.NewDate(2025, 9, 12)))
	require.NoError(t, err)
	require.Len(t, notifier.sent, 2, "expenses outside the window are ignored")
}

func TestBudgetGoalCRUD(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWorkspace(t)

	_, err := w.BudgetGoals.Create(ctx, BudgetGoalInput{CategoryID: "nope", Limit: usd(10)})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))

	g, err := w.BudgetGoals.Create(ctx, BudgetGoalInput{Name: "Rides", CategoryID: "transport", Limit: usd(40), Period: core.PeriodWeekly})
	require.NoError(t, err)
	require.Equal(t, "2025-10-12", g.StartDate.String(), "weeks start on Sunday")

	limit := core.NewMoney(200000, core.KHR)
	threshold := 50.0
	period := core.PeriodDaily
	updated, err := w.BudgetGoals.Update(ctx, g.ID, BudgetGoalUpdate{Limit: &limit, AlertThreshold: &threshold, Period: &period})
	require.NoError(t, err)
	require.Equal(t, core.KHR, updated.Limit.Currency)

	goals, err := w.BudgetGoals.List(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	require.Equal(t, "Rides", goals[0].Name)
	require.Equal(t, 50.0, goals[0].Threshold())
	require.Equal(t, core.PeriodDaily, goals[0].Period)
	require.Equal(t, "2025-10-15", goals[0].EndDate.String())

	require.NoError(t, w.BudgetGoals.Delete(ctx, g.ID))
	var nf *core.NotFoundError
	require.True(t, errors.As(w.BudgetGoals.Delete(ctx, g.ID), &nf))
}

func TestSavingsGoals(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWorkspace(t)

	target := core.NewDate(2025, 10, 25)
	g, err := w.SavingsGoals.Create(ctx, SavingsGoalInput{Name: "Laptop", TargetAmount: usd(1000), TargetDate: &target})
	require.NoError(t, err)
	require.True(t, g.CurrentAmount.IsZero())

	view, err := w.SavingsGoals.AddContribution(ctx, g.ID, core.NewMoney(2050000, core.KHR))
	require.NoError(t, err)
	require.Equal(t, "500", view.Saved.Amount.String())
	require.Equal(t, 50.0, view.Percentage)
	require.Equal(t, insights.TimelineScheduled, view.Timeline.State)
	require.Equal(t, 10, view.Timeline.DaysRemaining)
	require.Equal(t, "50", view.Timeline.DailyRequired.Amount.String())

	view, err = w.SavingsGoals.AddContribution(ctx, g.ID, usd(500))
	require.NoError(t, err)
	require.True(t, view.IsCompleted)
	require.True(t, view.Remaining.IsZero())

	_, err = w.SavingsGoals.AddContribution(ctx, g.ID, usd(0))
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))

	desc := "for work"
	updated, err := w.SavingsGoals.Update(ctx, g.ID, SavingsGoalUpdate{Description: &desc, ClearTargetDate: true})
	require.NoError(t, err)
	require.Nil(t, updated.TargetDate)

	views, err := w.SavingsGoals.Progress(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "for work", views[0].Goal.Description)
	require.Equal(t, insights.TimelineNone, views[0].Timeline.State)

	require.NoError(t, w.SavingsGoals.Delete(ctx, g.ID))
	var nf *core.NotFoundError
	_, err = w.SavingsGoals.AddContribution(ctx, g.ID, usd(1))
	require.True(t, errors.As(err, &nf))
}

func TestBudgetEntries(t *testing.T) {
	ctx := context.Background()
	w, notifier, _ := newTestWorkspace(t)

	c, err := w.BudgetEntries.EnsureSpreadsheet(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	require.Empty(t, c.URL)

	res, err := w.BudgetEntries.Save(ctx, BudgetPlan{
		Month:       "October",
		TotalIncome: core.NewMoney(1000000, core.KHR),
		Items: []BudgetItem{
			{Name: "Rent", Amount: usd(100), Category: "bills"},
			{Name: "Food", Amount: core.NewMoney(200000, core.KHR)},
		},
		TelegramChatID: "12345",
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.EntriesAdded)
	require.Equal(t, "610000", res.TotalSpending.Amount.String())
	require.Equal(t, "390000", res.Remaining.Amount.String())
	require.Len(t, notifier.sent, 1)
	require.Equal(t, notify.KindBudgetSummary, notifier.sent[0].Kind)
	require.Equal(t, "12345", notifier.sent[0].ChatID)

	entries, err := w.BudgetEntries.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "2025-10-15", entries[0].Date)
	require.Equal(t, "Food", entries[1].ItemName)
	require.Equal(t, "390000", entries[1].Remaining.Amount.String())

	require.NoError(t, w.BudgetEntries.Delete(ctx, 0))
	entries, err = w.BudgetEntries.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 0, entries[0].RowIndex)

	var nf *core.NotFoundError
	require.True(t, errors.As(w.BudgetEntries.Delete(ctx, 5), &nf))

	_, err = w.BudgetEntries.Save(ctx, BudgetPlan{Month: "October", TotalIncome: usd(1)})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestRecurringProcessor(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWorkspace(t)

	in := expenseInput(15, "entertainment", core.NewDate(2025, 7, 31))
	in.Description = "streaming"
	in.Recurring = &core.RecurringConfig{Frequency: core.Monthly, Interval: 1}
	tpl, err := w.Transactions.Create(ctx, in)
	require.NoError(t, err)

	p := NewRecurringProcessor(w)
	today := w.Today()
	n, err := p.ProcessDue(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	generated, err := w.Transactions.List(ctx, TransactionFilter{CategoryID: "entertainment"})
	require.NoError(t, err)
	require.Len(t, generated, 3)
	require.Equal(t, "2025-09-30", generated[0].Date.String())
	require.Equal(t, "2025-08-31", generated[1].Date.String())
	require.True(t, generated[0].HasTag(RecurringTag(tpl.ID)))
	require.Nil(t, generated[0].Recurring)

	n, err = p.ProcessDue(ctx, today)
	require.NoError(t, err)
	require.Zero(t, n, "second run is idempotent")
}

func TestWorkspaceProvision(t *testing.T) {
	w, _, gw := newTestWorkspace(t)
	require.NoError(t, w.Provision(context.Background()))
	for _, kind := range sheets.Kinds() {
		rows, err := gw.List(context.Background(), kind)
		require.NoError(t, err)
		require.Empty(t, rows)
	}
}
