// Package notify delivers user notifications: budget alerts raised while
// transactions are recorded and summaries of saved monthly budgets.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mmms/internal/core"
	"mmms/internal/log"
)

type Kind string

const (
	KindBudgetAlert   Kind = "budget_alert"
	KindBudgetSummary Kind = "budget_summary"
)

// Notification is one message for a user. ChatID is empty when the
// deployment's default chat should be used.
type Notification struct {
	Kind      Kind      `json:"kind"`
	Owner     string    `json:"owner"`
	ChatID    string    `json:"chatId,omitempty"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the fields every delivery channel relies on.
func (n Notification) Validate() error {
	switch n.Kind {
	case KindBudgetAlert, KindBudgetSummary:
	default:
		return core.Invalid("kind", fmt.Sprintf("unknown notification kind %q", n.Kind))
	}
	if n.Owner == "" {
		return core.Invalid("owner", "is required")
	}
	if strings.TrimSpace(n.Text) == "" {
		return core.Invalid("text", "is required")
	}
	return nil
}

// Message renders the notification as a single chat message.
func (n Notification) Message() string {
	if n.Title == "" {
		return n.Text
	}
	return n.Title + "\n\n" + n.Text
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogNotifier writes notifications to the log. It is used when no delivery
// channel is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentNotify)}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Notification",
		log.FieldNotification, string(n.Kind),
		log.FieldUser, n.Owner,
		"title", n.Title,
		"text", n.Text)
	return nil
}

// BudgetAlert builds the alert for a goal whose spending reached percentage
// of its limit.
func BudgetAlert(owner, goalName string, percentage float64, spent, limit core.Money, now time.Time) Notification {
	title := fmt.Sprintf("Budget alert: %s", goalName)
	var text string
	if percentage > 100 {
		text = fmt.Sprintf("You have exceeded your %s budget: %s spent of %s (%.0f%%).",
			goalName, core.Format(spent, ""), core.Format(limit, ""), percentage)
	} else {
		text = fmt.Sprintf("You have used %.0f%% of your %s budget: %s spent of %s.",
			percentage, goalName, core.Format(spent, ""), core.Format(limit, ""))
	}
	return Notification{
		Kind:      KindBudgetAlert,
		Owner:     owner,
		Title:     title,
		Text:      text,
		CreatedAt: now,
	}
}

// SummaryItem is one budgeted line of a summary.
type SummaryItem struct {
	Name   string
	Amount core.Money
}

// BudgetSummary builds the message sent after a monthly budget is saved.
func BudgetSummary(owner, chatID, month string, income core.Money, items []SummaryItem, remaining core.Money, now time.Time) Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Money: %s\n", core.Format(income, ""))
	for _, item := range items {
		fmt.Fprintf(&b, "%s: %s\n", item.Name, core.Format(item.Amount, ""))
	}
	fmt.Fprintf(&b, "Remaining Money: %s\n", core.Format(remaining, ""))
	fmt.Fprintf(&b, "Month: %s", month)
	return Notification{
		Kind:      KindBudgetSummary,
		Owner:     owner,
		ChatID:    chatID,
		Title:     "Budget summary",
		Text:      b.String(),
		CreatedAt: now,
	}
}
