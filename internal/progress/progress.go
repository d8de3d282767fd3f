// Package progress 根据里程碑审批状态和日报频率计算项目完成度
package progress

import (
	"math"
	"time"

	"buildtrack/internal/model"
)

// 权重固定，里程碑占 70，日报占 30
const (
	MilestoneWeight = 70
	ReportWeight    = 30
)

// Input 计算所需的全部输入，不含任何隐藏状态
type Input struct {
	Milestones      []model.MilestoneStatus
	ReportCount     int
	ReportsThisWeek int
	StartDate       time.Time
	EndDate         time.Time
}

type MilestoneBreakdown struct {
	Total      int `json:"total"`
	Approved   int `json:"approved"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"` // pending + awaiting-approval
	Rejected   int `json:"rejected"`
}

type ReportBreakdown struct {
	Total    int `json:"total"`
	ThisWeek int `json:"this_week"`
}

type Breakdown struct {
	Milestones MilestoneBreakdown `json:"milestones"`
	Reports    ReportBreakdown    `json:"reports"`
}

// Result 计算结果
type Result struct {
	Progress  int       `json:"progress"`
	Breakdown Breakdown `json:"breakdown"`
}

// TotalDays 项目跨度天数，向上取整且至少为 1
func TotalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// Calculate 纯函数，相同输入总是得到相同输出
func Calculate(in Input) Result {
	bd := Breakdown{
		Milestones: breakdownOf(in.Milestones),
		Reports: ReportBreakdown{
			Total:    in.ReportCount,
			ThisWeek: in.ReportsThisWeek,
		},
	}
	return Result{Progress: score(bd.Milestones, in), Breakdown: bd}
}

func score(m MilestoneBreakdown, in Input) int {
	if m.Total == 0 && in.ReportCount == 0 {
		return 0
	}

	totalDays := float64(TotalDays(in.StartDate, in.EndDate))
	reports := float64(in.ReportCount)

	if m.Total == 0 {
		return int(math.Min(math.Round(reports/totalDays*100), 100))
	}

	milestoneScore := float64(m.Approved) / float64(m.Total) * MilestoneWeight
	reportScore := math.Min(reports/totalDays*ReportWeight, ReportWeight)
	return int(math.Round(milestoneScore + reportScore))
}

func breakdownOf(statuses []model.MilestoneStatus) MilestoneBreakdown {
	bd := MilestoneBreakdown{Total: len(statuses)}
	for _, s := range statuses {
		switch {
		case s.CountsAsDone():
			bd.Approved++
		case s == model.MilestoneInProgress:
			bd.InProgress++
		case s == model.MilestonePending, s == model.MilestoneAwaitingApproval:
			bd.Pending++
		case s == model.MilestoneRejected:
			bd.Rejected++
		}
	}
	return bd
}

// WeekStart 本周一零点（loc 时区），用于统计本周日报
func WeekStart(now time.Time, loc *time.Location) time.Time {
	day := model.CalendarDay(now, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
