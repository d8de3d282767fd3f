package progress

import (
	"testing"
	"time"

	"buildtrack/internal/model"
)

var (
	jan1  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

func TestCalculate_ZeroInputs(t *testing.T) {
	res := Calculate(Input{StartDate: jan1, EndDate: jan31})
	if res.Progress != 0 {
		t.Fatalf("expected 0 for empty project, got %d", res.Progress)
	}
}

func TestCalculate_MixedMilestonesAndReports(t *testing.T) {
	res := Calculate(Input{
		Milestones: []model.MilestoneStatus{
			model.MilestoneCompleted,
			model.MilestoneCompleted,
			model.MilestoneInProgress,
			model.MilestonePending,
		},
		ReportCount: 9,
		StartDate:   jan1,
		EndDate:     jan31,
	})

	if res.Progress != 44 {
		t.Fatalf("expected 44, got %d", res.Progress)
	}
	want := MilestoneBreakdown{Total: 4, Approved: 2, InProgress: 1, Pending: 1}
	if res.Breakdown.Milestones != want {
		t.Errorf("unexpected breakdown: %+v", res.Breakdown.Milestones)
	}
}

func TestCalculate_ReportsOnly(t *testing.T) {
	res := Calculate(Input{ReportCount: 15, StartDate: jan1, EndDate: jan31})
	if res.Progress != 50 {
		t.Fatalf("expected 50, got %d", res.Progress)
	}
}

func TestCalculate_ReportsOnlyCappedAt100(t *testing.T) {
	res := Calculate(Input{ReportCount: 45, StartDate: jan1, EndDate: jan31})
	if res.Progress != 100 {
		t.Fatalf("expected 100, got %d", res.Progress)
	}
}

func TestCalculate_Bounds(t *testing.T) {
	all := []model.MilestoneStatus{
		model.MilestonePending,
		model.MilestoneInProgress,
		model.MilestoneAwaitingApproval,
		model.MilestoneApproved,
		model.MilestoneRejected,
		model.MilestoneCompleted,
	}

	for n := 1; n <= len(all); n++ {
		for reports := 0; reports <= 90; reports += 15 {
			in := Input{Milestones: all[:n], ReportCount: reports, StartDate: jan1, EndDate: jan31}
			res := Calculate(in)

			m := res.Breakdown.Milestones
			milestoneScore := float64(m.Approved) / float64(m.Total) * MilestoneWeight
			if milestoneScore > MilestoneWeight {
				t.Fatalf("milestone score %f exceeds weight", milestoneScore)
			}
			if res.Progress < 0 || res.Progress > 100 {
				t.Fatalf("progress out of range: %d (n=%d reports=%d)", res.Progress, n, reports)
			}
		}
	}
}

func TestCalculate_ReportScoreCapped(t *testing.T) {
	res := Calculate(Input{
		Milestones:  []model.MilestoneStatus{model.MilestoneApproved},
		ReportCount: 1000,
		StartDate:   jan1,
		EndDate:     jan31,
	})
	if res.Progress != 100 {
		t.Fatalf("expected 70 + capped 30 = 100, got %d", res.Progress)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	in := Input{
		Milestones:  []model.MilestoneStatus{model.MilestoneApproved, model.MilestoneRejected, model.MilestonePending},
		ReportCount: 7,
		StartDate:   jan1,
		EndDate:     jan31,
	}
	first := Calculate(in)
	second := Calculate(in)
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestCalculate_RejectedExcludedFromApproved(t *testing.T) {
	res := Calculate(Input{
		Milestones: []model.MilestoneStatus{model.MilestoneRejected, model.MilestoneCompleted},
		StartDate:  jan1,
		EndDate:    jan31,
	})
	if res.Progress != 35 {
		t.Fatalf("expected 35, got %d", res.Progress)
	}
	if res.Breakdown.Milestones.Rejected != 1 {
		t.Errorf("expected one rejected milestone, got %+v", res.Breakdown.Milestones)
	}
}

func TestTotalDays(t *testing.T) {
	cases := []struct {
		start, end time.Time
		want       int
	}{
		{jan1, jan31, 30},
		{jan1, jan1, 1},
		{jan1, jan1.Add(25 * time.Hour), 2},
		{jan31, jan1, 1},
	}
	for _, tc := range cases {
		if got := TotalDays(tc.start, tc.end); got != tc.want {
			t.Errorf("TotalDays(%s, %s) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestWeekStart(t *testing.T) {
	// 2024-01-10 是周三
	wed := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	want := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	if got := WeekStart(wed, time.UTC); !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	sun := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)
	if got := WeekStart(sun, time.UTC); !got.Equal(want) {
		t.Errorf("expected Sunday to belong to week of %s, got %s", want, got)
	}
}
