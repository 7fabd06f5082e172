package task

import (
	"time"

	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
)

// Weekday numbering follows the 0=Monday .. 6=Sunday convention everywhere.

// BulkAssignment is an administrator's recurring-assignment request. Expansion
// over the inclusive [StartDate, EndDate] range is deterministic and pure.
type BulkAssignment struct {
	TaskID    int    `json:"task_id" validate:"required"`
	UserIDs   []int  `json:"user_ids" validate:"required,min=1,dive,gt=0"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Frequency string `json:"frequency" validate:"required,oneof=daily weekly monthly"`

	// daily
	Weekdays    []int `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
	TimesPerDay int   `json:"times_per_day" validate:"omitempty,gt=0"`

	// weekly: the Nth occurrences of Weekday within each calendar month
	Weekday *int  `json:"weekday" validate:"omitempty,min=0,max=6"`
	Weeks   []int `json:"weeks" validate:"omitempty,dive,min=1,max=4"`

	// monthly: DayOfMonth in each of Months; months lacking the day are skipped
	DayOfMonth int   `json:"day_of_month" validate:"omitempty,min=1,max=31"`
	Months     []int `json:"months" validate:"omitempty,dive,min=1,max=12"`
}

var (
	errDateRange    = errors.New("start_date must not be after end_date")
	errNoWeekdays   = errors.New("at least one weekday is required")
	errNoWeekday    = errors.New("weekday is required")
	errNoWeeks      = errors.New("at least one week of the month is required")
	errNoDayOfMonth = errors.New("day_of_month is required")
	errNoMonths     = errors.New("at least one month is required")
)

func (ba *BulkAssignment) Validate() error {
	if err := core.Validate.Struct(ba); err != nil {
		return err
	}

	start, _ := ParseDate(ba.StartDate)
	end, _ := ParseDate(ba.EndDate)
	if start.After(end) {
		return core.NewValidationError(errDateRange, core.FieldError{Field: "start_date", Error: errDateRange.Error()})
	}

	switch ba.Frequency {
	case FrequencyDaily:
		if len(ba.Weekdays) == 0 {
			return core.NewValidationError(errNoWeekdays, core.FieldError{Field: "weekdays", Error: errNoWeekdays.Error()})
		}
		if ba.TimesPerDay == 0 {
			ba.TimesPerDay = 1
		}
	case FrequencyWeekly:
		if ba.Weekday == nil {
			return core.NewValidationError(errNoWeekday, core.FieldError{Field: "weekday", Error: errNoWeekday.Error()})
		}
		if len(ba.Weeks) == 0 {
			return core.NewValidationError(errNoWeeks, core.FieldError{Field: "weeks", Error: errNoWeeks.Error()})
		}
	case FrequencyMonthly:
		if ba.DayOfMonth == 0 {
			return core.NewValidationError(errNoDayOfMonth, core.FieldError{Field: "day_of_month", Error: errNoDayOfMonth.Error()})
		}
		if len(ba.Months) == 0 {
			return core.NewValidationError(errNoMonths, core.FieldError{Field: "months", Error: errNoMonths.Error()})
		}
	}
	return nil
}

// Dates returns every calendar date in the range matched by the recurrence
// rule, in ascending order. Validate must have been called first.
func (ba *BulkAssignment) Dates() []time.Time {
	start, _ := ParseDate(ba.StartDate)
	end, _ := ParseDate(ba.EndDate)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if ba.matches(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

func (ba *BulkAssignment) matches(d time.Time) bool {
	switch ba.Frequency {
	case FrequencyDaily:
		return containsInt(ba.Weekdays, weekdayMon0(d))
	case FrequencyWeekly:
		// Nth occurrence of the weekday within its month; a 5th occurrence
		// never matches since weeks are capped at 4.
		return weekdayMon0(d) == *ba.Weekday && containsInt(ba.Weeks, weekdayOrdinal(d))
	case FrequencyMonthly:
		return d.Day() == ba.DayOfMonth && containsInt(ba.Months, int(d.Month()))
	}
	return false
}

// Expand materializes the pending Assignment rows for every matched date and
// every target user. For daily frequency, TimesPerDay independent rows are
// emitted per user and date so a task can be completed several times a day.
func (ba *BulkAssignment) Expand(assignedBy int, now time.Time) []Assignment {
	copies := 1
	if ba.Frequency == FrequencyDaily && ba.TimesPerDay > 1 {
		copies = ba.TimesPerDay
	}

	dates := ba.Dates()
	assignments := make([]Assignment, 0, len(dates)*len(ba.UserIDs)*copies)
	for _, d := range dates {
		for _, userID := range ba.UserIDs {
			for i := 0; i < copies; i++ {
				assignments = append(assignments, Assignment{
					TaskID:       ba.TaskID,
					UserID:       userID,
					AssignedDate: d,
					AssignedByID: assignedBy,
					CreatedAt:    now,
				})
			}
		}
	}
	return assignments
}

// weekdayMon0 maps time.Weekday (0=Sunday) to the 0=Monday convention.
func weekdayMon0(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// weekdayOrdinal returns which occurrence of its weekday within the month a
// date is (1st..5th).
func weekdayOrdinal(d time.Time) int {
	return (d.Day()-1)/7 + 1
}

func containsInt(list []int, val int) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}
	return false
}
