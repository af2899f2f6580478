package schedule_test

import (
	"testing"
	"time"

	"github.com/munipay/payment-engine/schedule"
)

func exclusionCalendar(exclusions []schedule.Exclusion) *schedule.Calendar {
	dates := make([]schedule.Date, len(exclusions))
	for i, e := range exclusions {
		dates[i] = e.Date
	}
	return schedule.NewCalendar(dates)
}

// =============================================================================
// EASTER COMPUTUS
// =============================================================================

func TestEasterSunday_KnownYears(t *testing.T) {
	// GIVEN: Years with well-known Easter dates
	// WHEN: Computing Easter
	// THEN: The computus matches the published calendar

	cases := []struct {
		year int
		want schedule.Date
	}{
		{2020, date(2020, time.April, 12)},
		{2024, date(2024, time.March, 31)},
		{2025, date(2025, time.April, 20)},
		{2026, date(2026, time.April, 5)},
	}
	for _, c := range cases {
		got := schedule.EasterSunday(c.year)
		if !got.Equal(c.want) {
			t.Errorf("Easter %d: expected %s, got %s", c.year, c.want, got)
		}
	}
}

func TestDanishHolidays_AscensionIsThursday(t *testing.T) {
	// GIVEN: The 2020 holiday set
	// WHEN: Looking up Ascension Day
	// THEN: It is Thursday May 21, 39 days after Easter

	holidays := schedule.DanishHolidays(2020)
	var ascension schedule.Date
	for _, h := range holidays {
		if h.Name == "Ascension Day" {
			ascension = h.Date
		}
	}
	if !ascension.Equal(date(2020, time.May, 21)) {
		t.Errorf("expected Ascension 2020 on May 21, got %s", ascension)
	}
	if ascension.Weekday() != time.Thursday {
		t.Errorf("Ascension should be a Thursday, got %s", ascension.Weekday())
	}
}

// =============================================================================
// SHIFTING
// =============================================================================

func TestShiftToValid_WeekendAdvancesToMonday(t *testing.T) {
	// GIVEN: A calendar with no explicit exclusions
	// WHEN: Shifting a Saturday
	// THEN: The date lands on the following Monday

	cal := schedule.NewCalendar(nil)
	saturday := date(2025, time.March, 8)

	shifted := cal.ShiftToValid(saturday)
	if !shifted.Equal(date(2025, time.March, 10)) {
		t.Errorf("expected Monday March 10, got %s", shifted)
	}
}

func TestShiftToValid_HolidayAdvances(t *testing.T) {
	// GIVEN: Ascension Thursday 2020 as an exclusion
	// WHEN: Shifting a payment due that day
	// THEN: It lands on the Friday after

	cal := exclusionCalendar(schedule.DanishHolidays(2020))
	due := date(2020, time.May, 21)

	shifted := cal.ShiftToValid(due)
	if !shifted.Equal(date(2020, time.May, 22)) {
		t.Errorf("expected Friday May 22, got %s", shifted)
	}
}

func TestShiftToValid_ChainsAcrossWeekendAndHolidays(t *testing.T) {
	// GIVEN: A Friday holiday followed by a weekend and a Monday holiday
	// WHEN: Shifting a payment due on the Friday
	// THEN: The first valid day is the Tuesday

	friday := date(2025, time.June, 6)
	monday := date(2025, time.June, 9)
	cal := schedule.NewCalendar([]schedule.Date{friday, monday})

	shifted := cal.ShiftToValid(friday)
	if !shifted.Equal(date(2025, time.June, 10)) {
		t.Errorf("expected Tuesday June 10, got %s", shifted)
	}
}

func TestShiftToValid_Idempotent(t *testing.T) {
	// GIVEN: An already-valid weekday
	// WHEN: Shifting twice
	// THEN: The date never moves

	cal := exclusionCalendar(schedule.DanishHolidays(2025))
	valid := date(2025, time.March, 12) // Wednesday, no holiday

	once := cal.ShiftToValid(valid)
	twice := cal.ShiftToValid(once)
	if !once.Equal(valid) || !twice.Equal(valid) {
		t.Errorf("valid date moved: %s -> %s -> %s", valid, once, twice)
	}
}

// =============================================================================
// EXCLUSION PRECOMPUTATION
// =============================================================================

func TestComputeExclusions_CoversHorizonAndExtras(t *testing.T) {
	// GIVEN: The default config starting 2025
	// WHEN: Precomputing exclusions
	// THEN: Six years of holidays plus the four configured extras per year

	exclusions := schedule.ComputeExclusions(schedule.DefaultCalendarConfig(), 2025)

	perYear := 11 + 4
	if len(exclusions) != 6*perYear {
		t.Fatalf("expected %d exclusions, got %d", 6*perYear, len(exclusions))
	}

	cal := exclusionCalendar(exclusions)
	for _, d := range []schedule.Date{
		date(2025, time.December, 24),
		date(2025, time.December, 25),
		date(2027, time.January, 1),
		date(2030, time.June, 5),
	} {
		if !cal.IsExcluded(d) {
			t.Errorf("expected %s to be excluded", d)
		}
	}
	if cal.IsExcluded(date(2025, time.March, 12)) {
		t.Error("ordinary Wednesday should not be excluded")
	}
}
