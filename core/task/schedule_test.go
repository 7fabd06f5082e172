package task

import (
	"testing"
	"time"

	"github.com/credikids/credikids/core"
)

func intPtr(i int) *int { return &i }

func TestBulkAssignment_Validate(t *testing.T) {
	tests := []struct {
		name       string
		ba         BulkAssignment
		wantErr    error
		wantAnyErr bool
	}{
		{
			name: "missing task",
			ba: BulkAssignment{
				UserIDs: []int{1}, StartDate: "2025-06-02", EndDate: "2025-06-08",
				Frequency: FrequencyDaily, Weekdays: []int{0},
			},
			wantAnyErr: true,
		},
		{
			name: "unknown frequency",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-06-02", EndDate: "2025-06-08",
				Frequency: "yearly",
			},
			wantAnyErr: true,
		},
		{
			name: "start after end",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-06-08", EndDate: "2025-06-02",
				Frequency: FrequencyDaily, Weekdays: []int{0},
			},
			wantErr: errDateRange,
		},
		{
			name: "daily without weekdays",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-06-02", EndDate: "2025-06-08",
				Frequency: FrequencyDaily,
			},
			wantErr: errNoWeekdays,
		},
		{
			name: "weekly without weekday",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-08-01", EndDate: "2025-08-31",
				Frequency: FrequencyWeekly, Weeks: []int{1},
			},
			wantErr: errNoWeekday,
		},
		{
			name: "weekly without weeks",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-08-01", EndDate: "2025-08-31",
				Frequency: FrequencyWeekly, Weekday: intPtr(4),
			},
			wantErr: errNoWeeks,
		},
		{
			name: "weekly with week 5",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-08-01", EndDate: "2025-08-31",
				Frequency: FrequencyWeekly, Weekday: intPtr(4), Weeks: []int{5},
			},
			wantAnyErr: true,
		},
		{
			name: "monthly without day",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-01-01", EndDate: "2025-04-30",
				Frequency: FrequencyMonthly, Months: []int{1},
			},
			wantErr: errNoDayOfMonth,
		},
		{
			name: "monthly without months",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1}, StartDate: "2025-01-01", EndDate: "2025-04-30",
				Frequency: FrequencyMonthly, DayOfMonth: 15,
			},
			wantErr: errNoMonths,
		},
		{
			name: "valid daily",
			ba: BulkAssignment{
				TaskID: 1, UserIDs: []int{1, 2}, StartDate: "2025-06-02", EndDate: "2025-06-08",
				Frequency: FrequencyDaily, Weekdays: []int{0, 2, 4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ba.Validate()
			if tt.wantErr == nil {
				if tt.wantAnyErr && err == nil {
					t.Fatal("Validate() error = nil, want error")
				}
				if !tt.wantAnyErr && err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			vErr, ok := err.(*core.ValidationError)
			if !ok {
				t.Fatalf("Validate() error = %v, want *core.ValidationError", err)
			}
			if vErr.Err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", vErr.Err, tt.wantErr)
			}
		})
	}
}

func TestBulkAssignment_Validate_defaultsTimesPerDay(t *testing.T) {
	ba := BulkAssignment{
		TaskID: 1, UserIDs: []int{1}, StartDate: "2025-06-02", EndDate: "2025-06-08",
		Frequency: FrequencyDaily, Weekdays: []int{0},
	}
	if err := ba.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if ba.TimesPerDay != 1 {
		t.Errorf("TimesPerDay = %d, want 1", ba.TimesPerDay)
	}
}

func TestBulkAssignment_Dates(t *testing.T) {
	tests := []struct {
		name string
		ba   BulkAssignment
		want []string
	}{
		{
			// 2025-06-02 is a Monday
			name: "daily mon wed fri over one week",
			ba: BulkAssignment{
				StartDate: "2025-06-02", EndDate: "2025-06-08",
				Frequency: FrequencyDaily, Weekdays: []int{0, 2, 4},
			},
			want: []string{"2025-06-02", "2025-06-04", "2025-06-06"},
		},
		{
			name: "daily weekends only",
			ba: BulkAssignment{
				StartDate: "2025-06-02", EndDate: "2025-06-08",
				Frequency: FrequencyDaily, Weekdays: []int{5, 6},
			},
			want: []string{"2025-06-07", "2025-06-08"},
		},
		{
			// August 2025 has five Fridays; the 5th never matches
			name: "weekly every friday skips fifth occurrence",
			ba: BulkAssignment{
				StartDate: "2025-08-01", EndDate: "2025-08-31",
				Frequency: FrequencyWeekly, Weekday: intPtr(4), Weeks: []int{1, 2, 3, 4},
			},
			want: []string{"2025-08-01", "2025-08-08", "2025-08-15", "2025-08-22"},
		},
		{
			name: "weekly second monday of the month",
			ba: BulkAssignment{
				StartDate: "2025-08-01", EndDate: "2025-08-31",
				Frequency: FrequencyWeekly, Weekday: intPtr(0), Weeks: []int{2},
			},
			want: []string{"2025-08-11"},
		},
		{
			name: "monthly day 31 skips short months",
			ba: BulkAssignment{
				StartDate: "2025-02-01", EndDate: "2025-04-30",
				Frequency: FrequencyMonthly, DayOfMonth: 31, Months: []int{2, 4},
			},
			want: nil,
		},
		{
			name: "monthly day 31 in long months",
			ba: BulkAssignment{
				StartDate: "2025-01-01", EndDate: "2025-04-30",
				Frequency: FrequencyMonthly, DayOfMonth: 31, Months: []int{1, 3},
			},
			want: []string{"2025-01-31", "2025-03-31"},
		},
		{
			name: "monthly mid month",
			ba: BulkAssignment{
				StartDate: "2025-06-01", EndDate: "2025-06-30",
				Frequency: FrequencyMonthly, DayOfMonth: 15, Months: []int{6},
			},
			want: []string{"2025-06-15"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ba.Dates()
			if len(got) != len(tt.want) {
				t.Fatalf("Dates() returned %d dates, want %d: %v", len(got), len(tt.want), got)
			}
			for i, d := range got {
				if s := d.Format(DateLayout); s != tt.want[i] {
					t.Errorf("Dates()[%d] = %s, want %s", i, s, tt.want[i])
				}
			}
		})
	}
}

func TestBulkAssignment_Expand(t *testing.T) {
	ba := BulkAssignment{
		TaskID: 7, UserIDs: []int{1, 2}, StartDate: "2025-06-02", EndDate: "2025-06-08",
		Frequency: FrequencyDaily, Weekdays: []int{0, 2, 4}, TimesPerDay: 2,
	}
	if err := ba.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assignments := ba.Expand(99, now)

	// 3 dates x 2 users x 2 per day
	if len(assignments) != 12 {
		t.Fatalf("Expand() returned %d assignments, want 12", len(assignments))
	}
	for _, a := range assignments {
		if a.TaskID != 7 {
			t.Errorf("TaskID = %d, want 7", a.TaskID)
		}
		if a.AssignedByID != 99 {
			t.Errorf("AssignedByID = %d, want 99", a.AssignedByID)
		}
		if !a.CreatedAt.Equal(now) {
			t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, now)
		}
		if !a.IsPending() {
			t.Error("expanded assignment is not pending")
		}
	}
}

func Test_weekdayMon0(t *testing.T) {
	// 2025-06-02 is a Monday, 2025-06-08 a Sunday
	for i := 0; i < 7; i++ {
		d := time.Date(2025, 6, 2+i, 0, 0, 0, 0, time.UTC)
		if got := weekdayMon0(d); got != i {
			t.Errorf("weekdayMon0(%s) = %d, want %d", d.Format(DateLayout), got, i)
		}
	}
}
