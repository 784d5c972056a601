package services

import (
	"context"
	"time"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// maxBusinessDaySearch bounds the forward scan for a business day so that a calendar without
// working days, or with every date closed, still terminates.
const maxBusinessDaySearch = 30

// BusinessCalendar performs day granularity arithmetic over a weekly pattern and holidays.
type BusinessCalendar struct {
	workdays map[int]struct{}
	holidays map[string]struct{}
	loc      *time.Location
	logger   EventLogger
}

// CalendarOption customises a BusinessCalendar.
type CalendarOption func(*BusinessCalendar)

// WithCalendarLocation sets the time zone used to derive calendar dates.
func WithCalendarLocation(loc *time.Location) CalendarOption {
	return func(c *BusinessCalendar) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithCalendarLogger sets the logger receiving search cap warnings.
func WithCalendarLogger(logger EventLogger) CalendarOption {
	return func(c *BusinessCalendar) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewBusinessCalendar builds a calendar from already resolved settings. Invalid weekdays and
// holidays are dropped rather than rejected.
func NewBusinessCalendar(settings domain.CalendarSettings, opts ...CalendarOption) *BusinessCalendar {
	settings = settings.Normalize()
	cal := &BusinessCalendar{
		workdays: make(map[int]struct{}, len(settings.Weekdays)),
		holidays: make(map[string]struct{}, len(settings.Holidays)),
		loc:      time.UTC,
		logger:   noopLogger,
	}
	for _, day := range settings.Weekdays {
		cal.workdays[day] = struct{}{}
	}
	for _, holiday := range settings.Holidays {
		cal.holidays[holiday] = struct{}{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cal)
		}
	}
	return cal
}

// Location returns the time zone calendar dates are derived in.
func (c *BusinessCalendar) Location() *time.Location {
	return c.loc
}

// Date truncates t to midnight of its calendar date in the calendar's time zone.
func (c *BusinessCalendar) Date(t time.Time) time.Time {
	local := t.In(c.loc)
	year, month, day := local.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, c.loc)
}

// CalendarDate re-anchors a stored date to midnight in the calendar's time zone, keeping the
// year, month and day t carries in its own zone. Date-only values decode as UTC midnight.
func (c *BusinessCalendar) CalendarDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, c.loc)
}

// IsBusinessDay reports whether the date is a working weekday and not a holiday.
func (c *BusinessCalendar) IsBusinessDay(t time.Time) bool {
	date := c.Date(t)
	if _, ok := c.workdays[domain.ISOWeekday(date.Weekday())]; !ok {
		return false
	}
	_, closed := c.holidays[date.Format(domain.DateLayout)]
	return !closed
}

// NextBusinessDay returns the first business day on or after from. When none is found within
// the search cap the date of from is returned and a warning is logged.
func (c *BusinessCalendar) NextBusinessDay(ctx context.Context, from time.Time) time.Time {
	day, ok := c.nextBusinessDay(from)
	if !ok {
		c.logger(ctx, "calendar.search_cap_exceeded", map[string]any{
			"from":  c.Date(from).Format(domain.DateLayout),
			"limit": maxBusinessDaySearch,
		})
		return c.Date(from)
	}
	return day
}

// AddBusinessDays counts n business days strictly after from and returns the date of the last
// one counted. n <= 0 returns the date of from unchanged.
func (c *BusinessCalendar) AddBusinessDays(ctx context.Context, from time.Time, n int) time.Time {
	day := c.Date(from)
	degraded := false
	for counted := 0; counted < n; counted++ {
		candidate := c.addDays(day, 1)
		next, ok := c.nextBusinessDay(candidate)
		if !ok {
			degraded = true
			next = candidate
		}
		day = next
	}
	if degraded {
		c.logger(ctx, "calendar.search_cap_exceeded", map[string]any{
			"from":  c.Date(from).Format(domain.DateLayout),
			"days":  n,
			"limit": maxBusinessDaySearch,
		})
	}
	return day
}

func (c *BusinessCalendar) nextBusinessDay(from time.Time) (time.Time, bool) {
	day := c.Date(from)
	for i := 0; i < maxBusinessDaySearch; i++ {
		if c.IsBusinessDay(day) {
			return day, true
		}
		day = c.addDays(day, 1)
	}
	return time.Time{}, false
}

func (c *BusinessCalendar) addDays(date time.Time, days int) time.Time {
	return c.Date(date.AddDate(0, 0, days))
}
