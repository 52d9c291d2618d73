package services

import (
	"testing"

	"mmms/internal/core"
)

func TestCheckers_Occurrence(t *testing.T) {
	tests := []struct {
		name    string
		checker DuenessChecker
		anchor  core.Date
		steps   int
		want    core.Date
	}{
		{"daily next day", DailyChecker{}, core.NewDate(2024, 1, 31), 1, core.NewDate(2024, 2, 1)},
		{"weekly two weeks", WeeklyChecker{}, core.NewDate(2024, 1, 1), 2, core.NewDate(2024, 1, 15)},
		{"monthly same day", MonthlyChecker{}, core.NewDate(2024, 1, 15), 1, core.NewDate(2024, 2, 15)},
		{"monthly 31st in leap February", MonthlyChecker{}, core.NewDate(2024, 1, 31), 1, core.NewDate(2024, 2, 29)},
		{"monthly 31st in common February", MonthlyChecker{}, core.NewDate(2025, 1, 31), 1, core.NewDate(2025, 2, 28)},
		{"monthly 31st back in March", MonthlyChecker{}, core.NewDate(2025, 1, 31), 2, core.NewDate(2025, 3, 31)},
		{"monthly across year end", MonthlyChecker{}, core.NewDate(2024, 11, 30), 3, core.NewDate(2025, 2, 28)},
		{"monthly backwards", MonthlyChecker{}, core.NewDate(2025, 1, 15), -1, core.NewDate(2024, 12, 15)},
		{"yearly anniversary", YearlyChecker{}, core.NewDate(2024, 3, 15), 1, core.NewDate(2025, 3, 15)},
		{"yearly leap day", YearlyChecker{}, core.NewDate(2024, 2, 29), 1, core.NewDate(2025, 2, 28)},
		{"yearly leap day again", YearlyChecker{}, core.NewDate(2024, 2, 29), 4, core.NewDate(2028, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.checker.Occurrence(tt.anchor, tt.steps)
			if got.String() != tt.want.String() {
				t.Errorf("Occurrence() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDueOccurrences(t *testing.T) {
	end := core.NewDate(2024, 4, 20)

	tests := []struct {
		name   string
		rc     core.RecurringConfig
		anchor core.Date
		last   core.Date
		today  core.Date
		want   []string
	}{
		{
			name:   "monthly catch up",
			rc:     core.RecurringConfig{Frequency: core.Monthly, Interval: 1},
			anchor: core.NewDate(2024, 1, 31),
			last:   core.NewDate(2024, 1, 31),
			today:  core.NewDate(2024, 4, 15),
			want:   []string{"2024-02-29", "2024-03-31"},
		},
		{
			name:   "already generated",
			rc:     core.RecurringConfig{Frequency: core.Monthly, Interval: 1},
			anchor: core.NewDate(2024, 1, 31),
			last:   core.NewDate(2024, 3, 31),
			today:  core.NewDate(2024, 4, 15),
			want:   nil,
		},
		{
			name:   "weekly every two weeks",
			rc:     core.RecurringConfig{Frequency: core.Weekly, Interval: 2},
			anchor: core.NewDate(2024, 1, 1),
			last:   core.NewDate(2024, 1, 1),
			today:  core.NewDate(2024, 2, 1),
			want:   []string{"2024-01-15", "2024-01-29"},
		},
		{
			name:   "stops at end date",
			rc:     core.RecurringConfig{Frequency: core.Daily, Interval: 10, EndDate: &end},
			anchor: core.NewDate(2024, 4, 1),
			last:   core.NewDate(2024, 4, 1),
			today:  core.NewDate(2024, 5, 1),
			want:   []string{"2024-04-11"},
		},
		{
			name:   "today counts",
			rc:     core.RecurringConfig{Frequency: core.Yearly, Interval: 1},
			anchor: core.NewDate(2023, 10, 15),
			last:   core.NewDate(2023, 10, 15),
			today:  core.NewDate(2024, 10, 15),
			want:   []string{"2024-10-15"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DueOccurrences(tt.rc, tt.anchor, tt.last, tt.today)
			if err != nil {
				t.Fatalf("DueOccurrences() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DueOccurrences() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Errorf("occurrence %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDueOccurrencesRejectsInvalidConfig(t *testing.T) {
	_, err := DueOccurrences(core.RecurringConfig{Frequency: core.Daily}, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1))
	if err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestGetDuenessChecker(t *testing.T) {
	tests := []struct {
		name      string
		frequency core.Frequency
		wantErr   bool
	}{
		{"daily", core.Daily, false},
		{"weekly", core.Weekly, false},
		{"monthly", core.Monthly, false},
		{"yearly", core.Yearly, false},
		{"unknown", core.Frequency("biweekly"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, err := GetDuenessChecker(tt.frequency)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetDuenessChecker() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && checker == nil {
				t.Error("GetDuenessChecker() returned nil checker")
			}
		})
	}
}

func TestRegisterDuenessChecker(t *testing.T) {
	customFreq := core.Frequency("fortnightly")
	RegisterDuenessChecker(customFreq, WeeklyChecker{})
	defer func() {
		duenessMu.Lock()
		delete(duenessStrategies, customFreq)
		duenessMu.Unlock()
	}()

	checker, err := GetDuenessChecker(customFreq)
	if err != nil {
		t.Errorf("GetDuenessChecker() after register error = %v", err)
	}
	if checker == nil {
		t.Error("GetDuenessChecker() returned nil after registration")
	}
}
