package domain

import (
	"sort"
	"time"
)

// DateLayout is the storage format for calendar dates without a time component.
const DateLayout = "2006-01-02"

// CalendarSettings describes the weekly working pattern and explicit closure days.
// Weekdays use ISO numbering: 1 = Monday ... 7 = Sunday.
type CalendarSettings struct {
	Weekdays []int
	Holidays []string
}

// ISOWeekday converts a time.Weekday to ISO numbering.
func ISOWeekday(day time.Weekday) int {
	if day == time.Sunday {
		return 7
	}
	return int(day)
}

// Normalize drops weekday numbers outside 1..7, unparsable holidays and duplicates.
func (c CalendarSettings) Normalize() CalendarSettings {
	seenDays := make(map[int]struct{}, len(c.Weekdays))
	days := make([]int, 0, len(c.Weekdays))
	for _, day := range c.Weekdays {
		if day < 1 || day > 7 {
			continue
		}
		if _, ok := seenDays[day]; ok {
			continue
		}
		seenDays[day] = struct{}{}
		days = append(days, day)
	}
	sort.Ints(days)

	seenHolidays := make(map[string]struct{}, len(c.Holidays))
	holidays := make([]string, 0, len(c.Holidays))
	for _, raw := range c.Holidays {
		parsed, err := time.Parse(DateLayout, raw)
		if err != nil {
			continue
		}
		key := parsed.Format(DateLayout)
		if _, ok := seenHolidays[key]; ok {
			continue
		}
		seenHolidays[key] = struct{}{}
		holidays = append(holidays, key)
	}
	sort.Strings(holidays)

	return CalendarSettings{Weekdays: days, Holidays: holidays}
}

// DefaultCalendarSettings returns a Monday to Friday calendar without holidays.
func DefaultCalendarSettings() CalendarSettings {
	return CalendarSettings{Weekdays: []int{1, 2, 3, 4, 5}}
}
