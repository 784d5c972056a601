package services

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	domain "github.com/hanko-field/delivery/internal/domain"
)

func TestBusinessCalendar_IsBusinessDay(t *testing.T) {
	cal := NewBusinessCalendar(domain.CalendarSettings{
		Weekdays: []int{1, 2, 3, 4, 5},
		Holidays: []string{"2024-10-14"},
	})

	cases := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"friday", date(2024, time.October, 11), true},
		{"saturday", date(2024, time.October, 12), false},
		{"sunday", date(2024, time.October, 13), false},
		{"holiday monday", date(2024, time.October, 14), false},
		{"tuesday", date(2024, time.October, 15), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cal.IsBusinessDay(tc.day); got != tc.want {
				t.Fatalf("IsBusinessDay(%s) = %v, want %v", tc.day.Format(domain.DateLayout), got, tc.want)
			}
		})
	}
}

func TestBusinessCalendar_NextBusinessDay(t *testing.T) {
	ctx := context.Background()
	cal := NewBusinessCalendar(domain.CalendarSettings{
		Weekdays: []int{1, 2, 3, 4, 5},
		Holidays: []string{"2024-10-14"},
	})

	if got := cal.NextBusinessDay(ctx, date(2024, time.October, 11)); !got.Equal(date(2024, time.October, 11)) {
		t.Fatalf("expected business day to be returned unchanged, got %s", got)
	}
	if got := cal.NextBusinessDay(ctx, date(2024, time.October, 12)); !got.Equal(date(2024, time.October, 15)) {
		t.Fatalf("expected weekend and holiday to be skipped, got %s", got)
	}

	withTime := time.Date(2024, time.October, 12, 18, 30, 0, 0, time.UTC)
	if got := cal.NextBusinessDay(ctx, withTime); !got.Equal(date(2024, time.October, 15)) {
		t.Fatalf("expected time of day to be dropped, got %s", got)
	}
}

func TestBusinessCalendar_AddBusinessDays(t *testing.T) {
	ctx := context.Background()
	cal := NewBusinessCalendar(domain.CalendarSettings{
		Weekdays: []int{1, 2, 3, 4, 5},
		Holidays: []string{"2024-10-14"},
	})
	friday := date(2024, time.October, 11)

	if got := cal.AddBusinessDays(ctx, friday, 0); !got.Equal(friday) {
		t.Fatalf("expected zero days to return from, got %s", got)
	}
	if got := cal.AddBusinessDays(ctx, friday, 1); !got.Equal(date(2024, time.October, 15)) {
		t.Fatalf("expected tuesday after holiday, got %s", got)
	}
	if got := cal.AddBusinessDays(ctx, friday, 3); !got.Equal(date(2024, time.October, 17)) {
		t.Fatalf("expected thursday, got %s", got)
	}

	// counting starts strictly after from even when from is not a business day
	saturday := date(2024, time.October, 5)
	if got := cal.AddBusinessDays(ctx, saturday, 1); !got.Equal(date(2024, time.October, 7)) {
		t.Fatalf("expected monday, got %s", got)
	}
}

func TestBusinessCalendar_LocationTruncation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	cal := NewBusinessCalendar(domain.DefaultCalendarSettings(), WithCalendarLocation(tokyo))

	// Friday 20:00 UTC is already Saturday in Tokyo.
	instant := time.Date(2024, time.October, 11, 20, 0, 0, 0, time.UTC)
	if cal.IsBusinessDay(instant) {
		t.Fatalf("expected saturday in calendar location")
	}
	got := cal.Date(instant)
	if got.Day() != 12 || got.Location() != tokyo {
		t.Fatalf("unexpected date %s", got)
	}
}

func TestBusinessCalendar_SearchCapFallsBack(t *testing.T) {
	ctx := context.Background()
	rec := &eventRecorder{}
	cal := NewBusinessCalendar(domain.CalendarSettings{Weekdays: []int{0, 9}}, WithCalendarLogger(rec.log))

	from := time.Date(2024, time.October, 11, 9, 0, 0, 0, time.UTC)
	if got := cal.NextBusinessDay(ctx, from); !got.Equal(date(2024, time.October, 11)) {
		t.Fatalf("expected fallback to input date, got %s", got)
	}
	if rec.count("calendar.search_cap_exceeded") != 1 {
		t.Fatalf("expected warning, got %+v", rec.events)
	}

	got := cal.AddBusinessDays(ctx, from, 2)
	if !got.Equal(date(2024, time.October, 13)) {
		t.Fatalf("expected degraded calendar days, got %s", got)
	}
	if rec.count("calendar.search_cap_exceeded") != 2 {
		t.Fatalf("expected a single warning for AddBusinessDays, got %+v", rec.events)
	}
}

func TestBusinessCalendar_Properties(t *testing.T) {
	ctx := context.Background()
	base := date(2024, time.January, 1)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("AddBusinessDays is strictly increasing in n", prop.ForAll(
		func(offset, n1, delta int, weekdays []int) bool {
			cal := NewBusinessCalendar(domain.CalendarSettings{Weekdays: weekdays})
			from := base.AddDate(0, 0, offset)
			return cal.AddBusinessDays(ctx, from, n1).Before(cal.AddBusinessDays(ctx, from, n1+delta))
		},
		gen.IntRange(0, 730),
		gen.IntRange(0, 20),
		gen.IntRange(1, 20),
		gen.SliceOfN(3, gen.IntRange(1, 7)),
	))

	properties.Property("NextBusinessDay returns a business day", prop.ForAll(
		func(offset int, weekdays []int, holidayOffsets []int) bool {
			from := base.AddDate(0, 0, offset)
			holidays := make([]string, 0, len(holidayOffsets))
			for _, h := range holidayOffsets {
				holidays = append(holidays, from.AddDate(0, 0, h).Format(domain.DateLayout))
			}
			cal := NewBusinessCalendar(domain.CalendarSettings{Weekdays: weekdays, Holidays: holidays})
			next := cal.NextBusinessDay(ctx, from)
			return cal.IsBusinessDay(next) && !next.Before(from)
		},
		gen.IntRange(0, 730),
		gen.SliceOfN(2, gen.IntRange(1, 7)),
		gen.SliceOfN(2, gen.IntRange(0, 14)),
	))

	properties.TestingRun(t)
}
