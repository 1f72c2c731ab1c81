package forecast

import (
	"fmt"
	"testing"
	"time"

	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"
)

func d(t *testing.T, s string) stats.Date {
	t.Helper()
	v, err := stats.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func actual(p BurnDownPoint) string {
	if p.ActualRemaining == nil {
		return "nil"
	}
	return fmt.Sprintf("%.1f", *p.ActualRemaining)
}

func TestBurnDown(t *testing.T) {
	in := BurnDownInput{
		BudgetHours: 100,
		Start:       d(t, "2024-01-03"),
		End:         d(t, "2024-01-31"),
		Cumulative: map[stats.Date]float64{
			d(t, "2024-01-01"): 10,
			d(t, "2024-01-15"): 40,
		},
	}

	got := BurnDown(in)

	want := []struct {
		week   string
		ideal  float64
		actual string
		last   bool
	}{
		{"2024-01-01", 100, "90.0", false},
		{"2024-01-08", 82.1, "90.0", false},
		{"2024-01-15", 57.1, "60.0", true},
		{"2024-01-22", 32.1, "nil", false},
		{"2024-01-29", 7.1, "nil", false},
	}
	if len(got) != len(want) {
		t.Fatalf("points = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		p := got[i]
		if p.WeekStart != w.week || p.IdealRemaining != w.ideal || p.IsLastActual != w.last {
			t.Errorf("point %d = %+v, want week=%s ideal=%v last=%v", i, p, w.week, w.ideal, w.last)
		}
		if a := actual(p); a != w.actual {
			t.Errorf("point %d actual = %s, want %s", i, a, w.actual)
		}
	}
}

func TestBurnDown_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		in   BurnDownInput
		want int
	}{
		{"Inverted", BurnDownInput{BudgetHours: 10, Start: d(t, "2024-02-01"), End: d(t, "2024-01-01")}, 0},
		{"NoDates", BurnDownInput{BudgetHours: 10}, 0},
		{"SingleDay", BurnDownInput{BudgetHours: 10, Start: d(t, "2024-01-03"), End: d(t, "2024-01-03")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BurnDown(tt.in)
			if got == nil || len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			for _, p := range got {
				if p.IdealRemaining != 0 || p.ActualRemaining != nil || p.IsLastActual {
					t.Errorf("zero-length range point = %+v", p)
				}
			}
		})
	}
}

func TestBurnDown_IdealNeverNegativeAndActualStops(t *testing.T) {
	in := BurnDownInput{
		BudgetHours: 40,
		Start:       d(t, "2024-01-01"),
		End:         d(t, "2024-03-31"),
		Cumulative: map[stats.Date]float64{
			d(t, "2024-01-10"): 5, // mid-week key is normalized to its Monday
			d(t, "2024-02-05"): 50,
		},
	}
	got := BurnDown(in)

	seenLast := false
	for _, p := range got {
		if p.IdealRemaining < 0 {
			t.Errorf("negative ideal at %s", p.WeekStart)
		}
		if seenLast && p.ActualRemaining != nil {
			t.Errorf("actual emitted after last data week at %s", p.WeekStart)
		}
		if p.IsLastActual {
			seenLast = true
			if p.WeekStart != "2024-02-05" || *p.ActualRemaining != -10 {
				t.Errorf("last actual = %+v", p)
			}
		}
	}
	if !seenLast {
		t.Error("no point flagged as last actual")
	}
	if *got[1].ActualRemaining != 35 {
		t.Errorf("week 2 actual = %v, want 35", *got[1].ActualRemaining)
	}
}

func TestWeeklyCumulative(t *testing.T) {
	at := func(s string) time.Time {
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	entries := []jira.WorklogEntry{
		{ID: "1", Started: at("2024-01-02T09:00:00Z"), DurationSeconds: 2 * 3600},
		{ID: "2", Started: at("2024-01-03T09:00:00Z"), DurationSeconds: 3600},
		{ID: "3", Started: at("2024-01-10T09:00:00Z"), DurationSeconds: 3 * 3600},
		{ID: "4", Started: at("2024-01-07T23:30:00Z"), DurationSeconds: 1800},
		{ID: "5", Started: at("2024-01-04T09:00:00Z"), DurationSeconds: 0},
	}

	utc := WeeklyCumulative(entries, time.UTC)
	if utc[d(t, "2024-01-01")] != 3.5 || utc[d(t, "2024-01-08")] != 6.5 || len(utc) != 2 {
		t.Errorf("UTC buckets = %v", utc)
	}

	// Sunday 23:30 UTC is Monday morning at UTC+7.
	plus7 := WeeklyCumulative(entries, time.FixedZone("UTC+7", 7*3600))
	if plus7[d(t, "2024-01-01")] != 3 || plus7[d(t, "2024-01-08")] != 6.5 {
		t.Errorf("UTC+7 buckets = %v", plus7)
	}
}

func TestProjectCompletion(t *testing.T) {
	points := BurnDown(BurnDownInput{
		BudgetHours: 100,
		Start:       d(t, "2024-01-01"),
		End:         d(t, "2024-03-31"),
		Cumulative:  map[stats.Date]float64{d(t, "2024-01-15"): 40},
	})

	tests := []struct {
		name string
		burn float64
		want string
	}{
		{"ThreeWeeks", 20, "2024-02-05"},
		{"RoundsUp", 50, "2024-01-29"},
		{"NoBurn", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectCompletion(points, tt.burn)
			if tt.want == "" {
				if got != nil {
					t.Errorf("want nil, got %s", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ProjectCompletion = %v, want %s", got, tt.want)
			}
		})
	}

	spent := BurnDown(BurnDownInput{
		BudgetHours: 10,
		Start:       d(t, "2024-01-01"),
		End:         d(t, "2024-01-31"),
		Cumulative:  map[stats.Date]float64{d(t, "2024-01-08"): 12},
	})
	if got := ProjectCompletion(spent, 0); got == nil || *got != "2024-01-08" {
		t.Errorf("exhausted budget should complete at the last actual week, got %v", got)
	}
	if got := ProjectCompletion(nil, 5); got != nil {
		t.Errorf("no points: %v", *got)
	}
}
