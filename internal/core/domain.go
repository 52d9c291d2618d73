package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a day cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	TransactionType string

	// Period is the recurrence of a budget goal window.
	Period string

	// Frequency is the recurrence of a recurring transaction.
	Frequency string

	// Date is a calendar day stored at UTC midnight.
	Date struct {
		time.Time
	}

	RecurringConfig struct {
		Frequency Frequency `json:"frequency"`
		Interval  int       `json:"interval"`
		EndDate   *Date     `json:"endDate,omitempty"`
	}

	Transaction struct {
		ID          string           `json:"id"`
		Date        Date             `json:"date"`
		Description string           `json:"description"`
		Amount      Money            `json:"amount"`
		Category    Category         `json:"category"`
		Type        TransactionType  `json:"type"`
		Recurring   *RecurringConfig `json:"recurring,omitempty"`
		Tags        []string         `json:"tags,omitempty"`
	}

	// BudgetGoal is a spending ceiling for a category. StartDate and EndDate
	// bound the period instance currently in force; spent is always derived.
	BudgetGoal struct {
		ID             string   `json:"id"`
		Name           string   `json:"name"`
		Category       Category `json:"category"`
		Limit          Money    `json:"limit"`
		Period         Period   `json:"period"`
		StartDate      Date     `json:"startDate"`
		EndDate        Date     `json:"endDate"`
		AlertThreshold *float64 `json:"alertThreshold,omitempty"`
		CreatedDate    Date     `json:"createdDate"`
	}

	// SavingsGoal tracks an amount to accumulate. CurrentAmount is authoritative.
	SavingsGoal struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		TargetAmount  Money  `json:"targetAmount"`
		CurrentAmount Money  `json:"currentAmount"`
		TargetDate    *Date  `json:"targetDate,omitempty"`
		Description   string `json:"description,omitempty"`
		CreatedDate   Date   `json:"createdDate"`
	}

	// BudgetEntry is one budgeted item of a monthly plan.
	BudgetEntry struct {
		RowIndex       int    `json:"id"`
		Date           string `json:"date"`
		Month          string `json:"month"`
		TotalIncome    Money  `json:"totalIncome"`
		ItemName       string `json:"itemName"`
		ItemAmount     Money  `json:"itemAmount"`
		Category       string `json:"category"`
		Remaining      Money  `json:"remaining"`
		TelegramChatID string `json:"telegramChatId,omitempty"`
	}

	// User is the account every request acts on behalf of.
	User struct {
		Email       string `json:"email"`
		Name        string `json:"name"`
		AccessToken string `json:"-"`
	}
)

// DefaultAlertThreshold is the percentage at which budget alerts fire when a
// goal does not set its own threshold.
const DefaultAlertThreshold = 80.0

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf strips the time of day from t, keeping its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD day. Full RFC 3339 timestamps are accepted
// and truncated to their day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w %q: want YYYY-MM-DD", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the day n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of whole calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Within reports whether d lies in [start, end].
func (d Date) Within(start, end Date) bool {
	return !d.Before(start) && !d.After(end)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// EncodeRecurring renders a recurring config as frequency:interval[:endDate].
func EncodeRecurring(rc *RecurringConfig) string {
	if rc == nil {
		return ""
	}
	s := fmt.Sprintf("%s:%d", rc.Frequency, rc.Interval)
	if rc.EndDate != nil && !rc.EndDate.IsZero() {
		s += ":" + rc.EndDate.String()
	}
	return s
}

// DecodeRecurring parses the format written by EncodeRecurring.
func DecodeRecurring(s string) (*RecurringConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ":", 3)
	rc := &RecurringConfig{Frequency: Frequency(parts[0]), Interval: 1}
	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid recurring interval %q", parts[1])
		}
		rc.Interval = n
	}
	if len(parts) > 2 && parts[2] != "" {
		end, err := ParseDate(parts[2])
		if err != nil {
			return nil, err
		}
		rc.EndDate = &end
	}
	return rc, rc.Validate()
}

func (rc RecurringConfig) Validate() error {
	if !rc.Frequency.Valid() {
		return Invalid("recurring.frequency", "must be one of daily, weekly, monthly, yearly")
	}
	if rc.Interval < 1 {
		return Invalid("recurring.interval", "must be at least 1")
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return Invalid("date", "is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return Invalid("description", "is required")
	}
	if len(t.Description) > 200 {
		return Invalid("description", "must be at most 200 characters")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Amount.Amount.IsPositive() {
		return Invalid("amount", "must be greater than zero")
	}
	if !t.Type.Valid() {
		return Invalid("type", "must be income or expense")
	}
	if t.Recurring != nil {
		if err := t.Recurring.Validate(); err != nil {
			return err
		}
		if t.Recurring.EndDate != nil && t.Recurring.EndDate.Before(t.Date) {
			return Invalid("recurring.endDate", "must not be before the transaction date")
		}
	}
	for _, tag := range t.Tags {
		if strings.Contains(tag, ",") {
			return Invalid("tags", "must not contain commas")
		}
	}
	return nil
}

// HasTag reports whether the transaction carries tag.
func (t Transaction) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

func (g BudgetGoal) Validate() error {
	if g.Category.ID == "" {
		return Invalid("categoryId", "is required")
	}
	if err := g.Limit.Validate(); err != nil {
		return err
	}
	if !g.Limit.Amount.IsPositive() {
		return Invalid("limit", "must be greater than zero")
	}
	if !g.Period.Valid() {
		return Invalid("period", "must be daily, weekly or monthly")
	}
	if g.AlertThreshold != nil && (*g.AlertThreshold <= 0 || *g.AlertThreshold > 100) {
		return Invalid("alertThreshold", "must be in (0, 100]")
	}
	return nil
}

// Threshold returns the alert threshold, defaulting to DefaultAlertThreshold.
func (g BudgetGoal) Threshold() float64 {
	if g.AlertThreshold == nil {
		return DefaultAlertThreshold
	}
	return *g.AlertThreshold
}

// WithWindow returns g bounded to the period instance containing today.
func (g BudgetGoal) WithWindow(today Date) BudgetGoal {
	g.StartDate, g.EndDate = PeriodWindow(g.Period, today)
	return g
}

// PeriodWindow returns the inclusive bounds of the period instance that
// contains day. Weeks start on Sunday.
func PeriodWindow(p Period, day Date) (Date, Date) {
	switch p {
	case PeriodDaily:
		return day, day
	case PeriodWeekly:
		start := day.AddDays(-int(day.Weekday()))
		return start, start.AddDays(6)
	default:
		start := NewDate(day.Year(), int(day.Month()), 1)
		return start, Date{Time: start.AddDate(0, 1, -1)}
	}
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return Invalid("name", "is required")
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if !g.TargetAmount.Amount.IsPositive() {
		return Invalid("targetAmount", "must be greater than zero")
	}
	if g.CurrentAmount.Currency != g.TargetAmount.Currency {
		return Invalid("currentAmount", "must use the target currency")
	}
	if g.CurrentAmount.Amount.IsNegative() {
		return Invalid("currentAmount", "must not be negative")
	}
	return nil
}
