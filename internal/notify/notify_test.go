package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"mmms/internal/core"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

var now = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

func TestBudgetAlertText(t *testing.T) {
	n := BudgetAlert("a@example.com", "Groceries", 80, core.NewMoney(80, core.USD), core.NewMoney(100, core.USD), now)
	require.Equal(t, KindBudgetAlert, n.Kind)
	require.Equal(t, "You have used 80% of your Groceries budget: $80.00 spent of $100.00.", n.Text)

	over := BudgetAlert("a@example.com", "Groceries", 120, core.NewMoney(120, core.USD), core.NewMoney(100, core.USD), now)
	require.Contains(t, over.Text, "exceeded")
	require.NoError(t, over.Validate())
}

func TestBudgetSummaryText(t *testing.T) {
	n := BudgetSummary("a@example.com", "12345", "October",
		core.NewMoney(1000000, core.KHR),
		[]SummaryItem{{Name: "Rent", Amount: core.NewMoney(100, core.USD)}},
		core.NewMoney(590000, core.KHR), now)

	lines := strings.Split(n.Text, "\n")
	require.Equal(t, []string{
		"Total Money: 1,000,000៛",
		"Rent: $100.00",
		"Remaining Money: 590,000៛",
		"Month: October",
	}, lines)
	require.Equal(t, "12345", n.ChatID)
}

func TestTelegramNotify(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	tg, err := NewTelegram(sender, "42", nil)
	require.NoError(t, err)

	n := BudgetAlert("a@example.com", "Food", 85, core.NewMoney(85, core.USD), core.NewMoney(100, core.USD), now)
	require.NoError(t, tg.Notify(ctx, n))
	require.Len(t, sender.sent, 1)
	require.Equal(t, int64(42), sender.sent[0].ChatID)
	require.True(t, strings.HasPrefix(sender.sent[0].Text, "Budget alert: Food\n\n"))

	n.ChatID = "7"
	require.NoError(t, tg.Notify(ctx, n))
	require.Equal(t, int64(7), sender.sent[1].ChatID)
}

func TestTelegramNotifyErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewTelegram(&fakeSender{}, "@chan", nil)
	require.Error(t, err)

	tg, err := NewTelegram(&fakeSender{}, "", nil)
	require.NoError(t, err)
	n := BudgetAlert("a@example.com", "Food", 85, core.NewMoney(85, core.USD), core.NewMoney(100, core.USD), now)
	require.ErrorIs(t, tg.Notify(ctx, n), ErrNoChat)

	var ve *core.ValidationError
	require.True(t, errors.As(tg.Notify(ctx, Notification{Kind: "spam"}), &ve))

	failing, _ := NewTelegram(&fakeSender{err: errors.New("boom")}, "1", nil)
	require.Error(t, failing.Notify(ctx, n))
}

func TestLogNotifier(t *testing.T) {
	l := NewLogNotifier(nil)
	require.NoError(t, l.Notify(context.Background(), BudgetSummary("a@example.com", "", "May", core.NewMoney(1, core.USD), nil, core.NewMoney(1, core.USD), now)))
	require.Error(t, l.Notify(context.Background(), Notification{Kind: KindBudgetAlert}))
}
