package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil || d.String() != "2025-03-09" {
		t.Fatalf("got %v err=%v", d, err)
	}
	d, err = ParseDate("2025-03-09T23:30:00+07:00")
	if err != nil || d.String() != "2025-03-09" {
		t.Fatalf("timestamp should keep its calendar day, got %v err=%v", d, err)
	}
	if _, err := ParseDate("09/03/2025"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestDateOfStripsTime(t *testing.T) {
	a := DateOf(time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC))
	b := DateOf(time.Date(2025, 1, 31, 0, 0, 1, 0, time.UTC))
	if !a.Equal(b.Time) {
		t.Fatalf("expected same day, got %v and %v", a, b)
	}
	if n := a.DaysUntil(NewDate(2025, 2, 2)); n != 2 {
		t.Fatalf("DaysUntil = %d, want 2", n)
	}
}

func TestPeriodWindow(t *testing.T) {
	wed := NewDate(2025, 10, 15)
	cases := []struct {
		p          Period
		start, end string
	}{
		{PeriodDaily, "2025-10-15", "2025-10-15"},
		{PeriodWeekly, "2025-10-12", "2025-10-18"},
		{PeriodMonthly, "2025-10-01", "2025-10-31"},
	}
	for _, tc := range cases {
		s, e := PeriodWindow(tc.p, wed)
		if s.String() != tc.start || e.String() != tc.end {
			t.Fatalf("%s window = %s..%s, want %s..%s", tc.p, s, e, tc.start, tc.end)
		}
	}
	s, e := PeriodWindow(PeriodMonthly, NewDate(2024, 2, 10))
	if s.String() != "2024-02-01" || e.String() != "2024-02-29" {
		t.Fatalf("leap february window = %s..%s", s, e)
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Date:        NewDate(2025, 1, 2),
		Description: "lunch",
		Amount:      NewMoney(5, USD),
		Category:    OtherCategory(),
		Type:        Expense,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	cases := map[string]func(tx *Transaction){
		"missing date":      func(tx *Transaction) { tx.Date = Date{} },
		"empty description": func(tx *Transaction) { tx.Description = "  " },
		"zero amount":       func(tx *Transaction) { tx.Amount = Zero(USD) },
		"bad type":          func(tx *Transaction) { tx.Type = "transfer" },
		"bad recurring":     func(tx *Transaction) { tx.Recurring = &RecurringConfig{Frequency: "hourly", Interval: 1} },
		"comma tag":         func(tx *Transaction) { tx.Tags = []string{"a,b"} },
		"recurring end early": func(tx *Transaction) {
			end := NewDate(2024, 1, 1)
			tx.Recurring = &RecurringConfig{Frequency: Monthly, Interval: 1, EndDate: &end}
		},
	}
	for name, mutate := range cases {
		tx := valid
		mutate(&tx)
		var ve *ValidationError
		if err := tx.Validate(); !errors.As(err, &ve) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}

	tx := valid
	tx.Amount = NewMoney(5, "EUR")
	var uc *UnsupportedCurrencyError
	if err := tx.Validate(); !errors.As(err, &uc) {
		t.Fatalf("expected UnsupportedCurrencyError, got %v", err)
	}
}

func TestRecurringEncoding(t *testing.T) {
	end := NewDate(2026, 12, 31)
	rc := &RecurringConfig{Frequency: Monthly, Interval: 2, EndDate: &end}
	s := EncodeRecurring(rc)
	if s != "monthly:2:2026-12-31" {
		t.Fatalf("encoded %q", s)
	}
	back, err := DecodeRecurring(s)
	if err != nil || back.Frequency != Monthly || back.Interval != 2 || back.EndDate.String() != "2026-12-31" {
		t.Fatalf("decoded %+v err=%v", back, err)
	}
	if rc, err := DecodeRecurring(""); rc != nil || err != nil {
		t.Fatalf("empty should decode to nil, got %+v %v", rc, err)
	}
	if _, err := DecodeRecurring("weekly:x"); err == nil {
		t.Fatalf("expected error for bad interval")
	}
}

func TestBudgetGoalValidate(t *testing.T) {
	threshold := 120.0
	g := BudgetGoal{Category: OtherCategory(), Limit: NewMoney(100, USD), Period: PeriodMonthly}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected valid goal, got %v", err)
	}
	if g.Threshold() != DefaultAlertThreshold {
		t.Fatalf("default threshold = %v", g.Threshold())
	}
	g.AlertThreshold = &threshold
	if err := g.Validate(); err == nil {
		t.Fatalf("expected threshold above 100 to fail")
	}
	g.AlertThreshold = nil
	g.Period = "yearly"
	if err := g.Validate(); err == nil {
		t.Fatalf("expected yearly period to fail")
	}
}

func TestSavingsGoalValidate(t *testing.T) {
	g := SavingsGoal{Name: "bike", TargetAmount: NewMoney(500, USD), CurrentAmount: Zero(USD)}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	g.CurrentAmount = Zero(KHR)
	if err := g.Validate(); err == nil {
		t.Fatalf("expected currency mismatch to fail")
	}
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		D Date  `json:"d"`
		P *Date `json:"p,omitempty"`
	}
	b, err := json.Marshal(wrapper{D: NewDate(2025, 5, 6)})
	if err != nil || string(b) != `{"d":"2025-05-06"}` {
		t.Fatalf("marshal = %s err=%v", b, err)
	}
	var w wrapper
	if err := json.Unmarshal([]byte(`{"d":"2025-05-07","p":"2025-06-01"}`), &w); err != nil {
		t.Fatal(err)
	}
	if w.D.String() != "2025-05-07" || w.P.String() != "2025-06-01" {
		t.Fatalf("unmarshal = %+v", w)
	}
}
