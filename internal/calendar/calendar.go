// Package calendar answers whether the venue is open for trading on a given
// date. Holidays and early-close days are maintained as newline-delimited
// YYYY-MM-DD files so the recorder stays deterministic offline.
package calendar

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// Calendar is a file-backed trading calendar.
type Calendar struct {
	holidays map[string]struct{}
	halfDays map[string]struct{}
	// treatHalfDaysAsClosed makes IsTradingDay return false on early-close days.
	treatHalfDaysAsClosed bool
}

// New loads the calendar from the given files. halfDaysPath may be empty if
// no early-close schedule is maintained.
func New(holidaysPath, halfDaysPath string, treatHalfDaysAsClosed bool) (*Calendar, error) {
	holidays, err := loadDateFile(holidaysPath)
	if err != nil {
		return nil, fmt.Errorf("loading holidays: %w", err)
	}

	halfDays := map[string]struct{}{}
	if halfDaysPath != "" {
		halfDays, err = loadDateFile(halfDaysPath)
		if err != nil {
			return nil, fmt.Errorf("loading half days: %w", err)
		}
	}

	return &Calendar{
		holidays:              holidays,
		halfDays:              halfDays,
		treatHalfDaysAsClosed: treatHalfDaysAsClosed,
	}, nil
}

// IsHoliday reports whether the YYYY-MM-DD date string is a full market
// holiday, or an early-close day when the calendar treats those as closed.
func (c *Calendar) IsHoliday(dateStr string) bool {
	if _, ok := c.holidays[dateStr]; ok {
		return true
	}
	if c.treatHalfDaysAsClosed {
		if _, ok := c.halfDays[dateStr]; ok {
			return true
		}
	}
	return false
}

// IsHalfDay reports whether the YYYY-MM-DD date string is an early-close day.
func (c *Calendar) IsHalfDay(dateStr string) bool {
	_, ok := c.halfDays[dateStr]
	return ok
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday.
// t must already be in the venue's time zone.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(t.Format("2006-01-02"))
}

func loadDateFile(path string) (map[string]struct{}, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator's config
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dates := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := time.Parse("2006-01-02", line); err != nil {
			return nil, fmt.Errorf("bad date %q in %s: %w", line, path, err)
		}
		dates[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return dates, nil
}
