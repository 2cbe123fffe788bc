package ledger

import (
	"fmt"
	"strings"
	"time"

	"atelier/internal/core"
)

// DateFilter names a date window relative to now.
type DateFilter string

const (
	DateToday     DateFilter = "today"
	DateWeek      DateFilter = "week"
	DateMonth     DateFilter = "month"
	DateSixMonths DateFilter = "6months"
	DateYear      DateFilter = "year"
	DateAll       DateFilter = "all"
)

// Window decides whether a date falls inside a date filter.
type Window interface {
	Contains(d, now time.Time) bool
}

// TodayWindow keeps dates on now's calendar day, in now's location.
type TodayWindow struct{}

func (TodayWindow) Contains(d, now time.Time) bool {
	return core.Date{Time: d}.SameDay(now)
}

// TrailingWindow keeps dates in [start(now), now].
type TrailingWindow struct {
	Start func(now time.Time) time.Time
}

func (w TrailingWindow) Contains(d, now time.Time) bool {
	return !d.Before(w.Start(now)) && !d.After(now)
}

// AllWindow keeps every date.
type AllWindow struct{}

func (AllWindow) Contains(time.Time, time.Time) bool { return true }

var windows = map[DateFilter]Window{
	DateToday: TodayWindow{},
	DateWeek: TrailingWindow{Start: func(now time.Time) time.Time {
		return now.AddDate(0, 0, -7)
	}},
	DateMonth: TrailingWindow{Start: func(now time.Time) time.Time {
		return now.AddDate(0, -1, 0)
	}},
	DateSixMonths: TrailingWindow{Start: func(now time.Time) time.Time {
		return now.AddDate(0, -6, 0)
	}},
	DateYear: TrailingWindow{Start: func(now time.Time) time.Time {
		return now.AddDate(-1, 0, 0)
	}},
	DateAll: AllWindow{},
}

// GetWindow returns the window registered for f.
func GetWindow(f DateFilter) (Window, error) {
	w, ok := windows[f]
	if !ok {
		return nil, core.Validation("get window", fmt.Errorf("unknown date filter %q", f))
	}
	return w, nil
}

// ParseDateFilter normalises s and checks that a window exists for it.
// Empty means all.
func ParseDateFilter(s string) (DateFilter, error) {
	f := DateFilter(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return DateAll, nil
	}
	if _, err := GetWindow(f); err != nil {
		return "", err
	}
	return f, nil
}
