package insights

import (
	"testing"
	"time"
)

func fixedAt(year int, month time.Month, day int) *Calculator {
	now := time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
	return &Calculator{Now: func() time.Time { return now }, Location: time.UTC}
}

func TestSchedule(t *testing.T) {
	tests := []struct {
		name          string
		calc          *Calculator
		in            ScheduleInput
		wantStatus    ScheduleStatus
		wantElapsed   float64
		wantVariance  float64
		wantDays      int
		wantProjected string
	}{
		{
			// 2024-01-01..31, five days past the end, nothing done.
			name:       "OvertimeWhenActive",
			calc:       fixedAt(2024, 2, 5),
			in:         ScheduleInput{PercentComplete: 0, StartDate: "2024-01-01", EndDate: "2024-01-31", ProjectStatus: "active"},
			wantStatus: ScheduleOvertime, wantElapsed: 100, wantVariance: -100, wantDays: -5, wantProjected: "2024-01-31",
		},
		{
			name:       "OvertimeStatusCaseInsensitive",
			calc:       fixedAt(2024, 2, 5),
			in:         ScheduleInput{PercentComplete: 80, StartDate: "2024-01-01", EndDate: "2024-01-31", ProjectStatus: " Active "},
			wantStatus: ScheduleOvertime, wantElapsed: 100, wantVariance: -20, wantDays: -5, wantProjected: "2024-01-31",
		},
		{
			name:       "PastEndWithoutStatusIsNotOvertime",
			calc:       fixedAt(2024, 2, 5),
			in:         ScheduleInput{PercentComplete: 0, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			wantStatus: ScheduleBehind, wantElapsed: 100, wantVariance: -100, wantDays: -30, wantProjected: "2024-01-31",
		},
		{
			name:       "Behind",
			calc:       fixedAt(2024, 1, 16),
			in:         ScheduleInput{PercentComplete: 30, StartDate: "2024-01-01", EndDate: "2024-01-31", ProjectStatus: "active"},
			wantStatus: ScheduleBehind, wantElapsed: 50, wantVariance: -20, wantDays: -6, wantProjected: "2024-02-20",
		},
		{
			name:       "Ahead",
			calc:       fixedAt(2024, 1, 16),
			in:         ScheduleInput{PercentComplete: 70, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			wantStatus: ScheduleAhead, wantElapsed: 50, wantVariance: 20, wantDays: 6, wantProjected: "2024-01-22",
		},
		{
			name:       "OnTrackBand",
			calc:       fixedAt(2024, 1, 16),
			in:         ScheduleInput{PercentComplete: 60, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			wantStatus: ScheduleOnTrack, wantElapsed: 50, wantVariance: 10, wantDays: 3, wantProjected: "2024-01-26",
		},
		{
			name:       "BeforeStartClampsToZero",
			calc:       fixedAt(2023, 12, 1),
			in:         ScheduleInput{PercentComplete: 0, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			wantStatus: ScheduleOnTrack, wantElapsed: 0, wantVariance: 0, wantDays: 0, wantProjected: "2024-01-31",
		},
		{
			name:       "CompleteKeepsEndDate",
			calc:       fixedAt(2024, 1, 16),
			in:         ScheduleInput{PercentComplete: 100, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			wantStatus: ScheduleAhead, wantElapsed: 50, wantVariance: 50, wantDays: 15, wantProjected: "2024-01-31",
		},
		{
			name:       "PercentCompleteClamped",
			calc:       fixedAt(2024, 1, 16),
			in:         ScheduleInput{PercentComplete: 250, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			wantStatus: ScheduleAhead, wantElapsed: 50, wantVariance: 50, wantDays: 15, wantProjected: "2024-01-31",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.calc.Schedule(tt.in)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.PercentTimeElapsed != tt.wantElapsed || got.Variance != tt.wantVariance {
				t.Errorf("elapsed=%v variance=%v, want %v and %v", got.PercentTimeElapsed, got.Variance, tt.wantElapsed, tt.wantVariance)
			}
			if got.DaysAheadBehind != tt.wantDays {
				t.Errorf("DaysAheadBehind = %d, want %d", got.DaysAheadBehind, tt.wantDays)
			}
			if got.ProjectedEndDate != tt.wantProjected {
				t.Errorf("ProjectedEndDate = %s, want %s", got.ProjectedEndDate, tt.wantProjected)
			}
			if !got.DatesSet || got.TotalDays != daysFor(tt.in) || got.Message == "" {
				t.Errorf("unexpected insight: %+v", got)
			}
		})
	}
}

func daysFor(in ScheduleInput) int {
	sp, _ := parseSpan(in.StartDate, in.EndDate)
	return sp.totalDays
}

func TestSchedule_InvalidInputIsNeutral(t *testing.T) {
	calc := fixedAt(2024, 2, 5)
	inputs := []ScheduleInput{
		{PercentComplete: 50},
		{PercentComplete: 50, StartDate: "2024-01-01"},
		{PercentComplete: 50, StartDate: "01/01/2024", EndDate: "2024-01-31"},
		{PercentComplete: 50, StartDate: "2024-01-31", EndDate: "2024-01-31", ProjectStatus: "active"},
		{PercentComplete: 50, StartDate: "2024-02-01", EndDate: "2024-01-01", ProjectStatus: "active"},
	}

	for _, in := range inputs {
		got := calc.Schedule(in)
		want := ScheduleInsight{Status: ScheduleOnTrack, Message: got.Message}
		if got != want || got.Message == "" {
			t.Errorf("Schedule(%+v) = %+v, want neutral on-track", in, got)
		}
	}
}

func TestSchedule_Idempotent(t *testing.T) {
	calc := fixedAt(2024, 1, 20)
	in := ScheduleInput{PercentComplete: 42.5, StartDate: "2024-01-01", EndDate: "2024-03-15", ProjectStatus: "active"}
	if a, b := calc.Schedule(in), calc.Schedule(in); a != b {
		t.Errorf("two runs differ:\n%+v\n%+v", a, b)
	}
}

func TestSchedule_ElapsedAlwaysClamped(t *testing.T) {
	in := ScheduleInput{PercentComplete: 10, StartDate: "2024-01-01", EndDate: "2024-01-31"}
	for d := -40; d <= 80; d += 3 {
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, d)
		calc := &Calculator{Now: func() time.Time { return now }, Location: time.UTC}
		got := calc.Schedule(in)
		if got.PercentTimeElapsed < 0 || got.PercentTimeElapsed > 100 {
			t.Errorf("day %d: PercentTimeElapsed = %v", d, got.PercentTimeElapsed)
		}
	}
}

func TestCalculator_TodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	calc := &Calculator{Now: func() time.Time { return now }, Location: loc}
	if got := calc.Today().String(); got != "2024-03-02" {
		t.Errorf("Today() = %s, want 2024-03-02", got)
	}
}
