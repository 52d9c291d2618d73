package services

// Recurring transactions are scheduled by one strategy per frequency. Each
// strategy maps an anchor day and a step count to the step-th occurrence.

import (
	"fmt"
	"sync"

	"mmms/internal/core"
)

// DuenessChecker computes occurrences of a recurring transaction.
type DuenessChecker interface {
	// Occurrence returns the day that lies steps periods after anchor.
	Occurrence(anchor core.Date, steps int) core.Date
}

// DailyChecker schedules every day.
type DailyChecker struct{}

func (DailyChecker) Occurrence(anchor core.Date, steps int) core.Date {
	return anchor.AddDays(steps)
}

// WeeklyChecker schedules on the anchor's weekday.
type WeeklyChecker struct{}

func (WeeklyChecker) Occurrence(anchor core.Date, steps int) core.Date {
	return anchor.AddDays(7 * steps)
}

// MonthlyChecker schedules on the anchor's day of month, clamped to the last
// day of shorter months. A 31st anchor lands on Feb 28 or 29 and is back on
// the 31st in March.
type MonthlyChecker struct{}

func (MonthlyChecker) Occurrence(anchor core.Date, steps int) core.Date {
	return addMonthsClamped(anchor, steps)
}

// YearlyChecker schedules on the anchor's anniversary; Feb 29 falls back to
// Feb 28 in common years.
type YearlyChecker struct{}

func (YearlyChecker) Occurrence(anchor core.Date, steps int) core.Date {
	return addMonthsClamped(anchor, 12*steps)
}

func addMonthsClamped(anchor core.Date, months int) core.Date {
	total := int(anchor.Month()) - 1 + months
	year := anchor.Year() + total/12
	month := total%12 + 1
	if total < 0 && total%12 != 0 {
		year--
		month += 12
	}
	day := anchor.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

func daysIn(year, month int) int {
	return core.NewDate(year, month+1, 0).Day()
}

var (
	duenessMu         sync.RWMutex
	duenessStrategies = map[core.Frequency]DuenessChecker{
		core.Daily:   DailyChecker{},
		core.Weekly:  WeeklyChecker{},
		core.Monthly: MonthlyChecker{},
		core.Yearly:  YearlyChecker{},
	}
)

// GetDuenessChecker returns the strategy for frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	duenessMu.RLock()
	defer duenessMu.RUnlock()
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown recurring frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker installs or replaces the strategy for frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessMu.Lock()
	defer duenessMu.Unlock()
	duenessStrategies[frequency] = checker
}

// maxOccurrencesPerRun bounds catch-up after a long outage.
const maxOccurrencesPerRun = 400

// DueOccurrences lists the occurrences of rc anchored at anchor that fall
// after last and on or before today, honouring interval and end date.
func DueOccurrences(rc core.RecurringConfig, anchor, last, today core.Date) ([]core.Date, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	checker, err := GetDuenessChecker(rc.Frequency)
	if err != nil {
		return nil, err
	}
	limit := today
	if rc.EndDate != nil && !rc.EndDate.IsZero() && rc.EndDate.Before(limit) {
		limit = *rc.EndDate
	}

	var due []core.Date
	for k := 1; len(due) < maxOccurrencesPerRun; k++ {
		next := checker.Occurrence(anchor, k*rc.Interval)
		if next.After(limit) {
			break
		}
		if next.After(last) {
			due = append(due, next)
		}
	}
	return due, nil
}
