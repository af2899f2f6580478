/*
recurrence.go - Occurrence date generation

PURPOSE:
  Produces the ordered sequence of scheduled occurrence dates for a
  payment schedule: daily, weekly, monthly or one-time. Dates come out
  raw - the synchronizer passes each through the exclusion calendar
  before they become payment due dates.

HORIZON:
  Generation never runs unbounded. Open-ended ranges (nil end) are
  capped by DateRange.Horizon(today) at December 31 of next year; a
  periodic renewal job re-synchronizes as today advances, which
  extends the window without gaps or duplicates because generation is
  phase-anchored on the schedule start.

EDGE CASES:
  - end before start: empty sequence, no error
  - monthly anchor beyond a short month: clipped to the month's last day
  - unknown frequency: InvalidFrequencyError
*/
package schedule

// Occurrences returns the ordered occurrence dates for the schedule
// over its range, horizon-capped when the range is open-ended.
func Occurrences(p ScheduleParams, rng DateRange, today Date) ([]Date, error) {
	return OccurrencesFrom(p, rng, today, rng.Start)
}

// OccurrencesFrom resumes generation at an arbitrary point: dates
// before resume are dropped, but the cadence stays anchored on the
// range start so resumption introduces no drift, gaps or duplicates.
func OccurrencesFrom(p ScheduleParams, rng DateRange, today Date, resume Date) ([]Date, error) {
	if p.Type == TypeOneTime {
		return oneTimeOccurrence(p, rng), nil
	}

	end := rng.Horizon(today)
	if end.Before(rng.Start) {
		return nil, nil
	}

	var dates []Date
	switch p.Frequency {
	case FrequencyDaily:
		for d := rng.Start; d.BeforeOrEqual(end); d = d.AddDays(1) {
			if d.AfterOrEqual(resume) {
				dates = append(dates, d)
			}
		}

	case FrequencyWeekly:
		for d := rng.Start; d.BeforeOrEqual(end); d = d.AddDays(7) {
			if d.AfterOrEqual(resume) {
				dates = append(dates, d)
			}
		}

	case FrequencyMonthly:
		anchor := p.DayOfMonth
		if anchor == 0 {
			anchor = rng.Start.Day()
		}
		year, month := rng.Start.Year(), rng.Start.Month()
		for {
			day := anchor
			if last := DaysInMonth(year, month); day > last {
				day = last
			}
			d := NewDate(year, month, day)
			if d.After(end) {
				break
			}
			if d.AfterOrEqual(rng.Start) && d.AfterOrEqual(resume) {
				dates = append(dates, d)
			}
			month++
			if month > 12 {
				month = 1
				year++
			}
		}

	default:
		return nil, &InvalidFrequencyError{ScheduleID: p.ID, Frequency: p.Frequency}
	}

	return dates, nil
}

// oneTimeOccurrence yields the single due date: the activity's start
// date, or the schedule's explicit payment date when the activity has
// no dates of its own.
func oneTimeOccurrence(p ScheduleParams, rng DateRange) []Date {
	if !rng.Start.IsZero() {
		return []Date{rng.Start}
	}
	if p.OneTimeDate != nil {
		return []Date{*p.OneTimeDate}
	}
	return nil
}
