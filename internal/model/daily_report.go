package model

import (
	"strings"
	"time"

	"buildtrack/pkg/apperr"
)

const DateLayout = "2006-01-02"

type WeatherCondition string

const (
	WeatherSunny  WeatherCondition = "sunny"
	WeatherCloudy WeatherCondition = "cloudy"
	WeatherRainy  WeatherCondition = "rainy"
	WeatherStormy WeatherCondition = "stormy"
	WeatherSnowy  WeatherCondition = "snowy"
	WeatherWindy  WeatherCondition = "windy"
)

func (w WeatherCondition) Valid() bool {
	switch w {
	case WeatherSunny, WeatherCloudy, WeatherRainy, WeatherStormy, WeatherSnowy, WeatherWindy:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

type Weather struct {
	Condition   WeatherCondition `json:"condition,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

type Equipment struct {
	Name      string  `json:"name"`
	HoursUsed float64 `json:"hours_used"`
}

type MaterialUsage struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
}

type Issue struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Resolved    bool     `json:"resolved"`
}

type SafetyIncident struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	ActionTaken string   `json:"action_taken,omitempty"`
}

type DailyReport struct {
	ID              string           `json:"id"`
	ProjectID       string           `json:"project_id"`
	Date            time.Time        `json:"date"` // 自然日，UTC 零点
	Weather         Weather          `json:"weather"`
	WorkSummary     string           `json:"work_summary"`
	WorkersOnSite   int              `json:"workers_on_site"`
	HoursWorked     float64          `json:"hours_worked"`
	Equipment       []Equipment      `json:"equipment"`
	MaterialsUsed   []MaterialUsage  `json:"materials_used"`
	Issues          []Issue          `json:"issues"`
	SafetyIncidents []SafetyIncident `json:"safety_incidents"`
	Notes           string           `json:"notes"`
	SubmittedBy     string           `json:"submitted_by"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CalendarDay 把时间点折算为 loc 时区下的自然日，以 UTC 零点表示
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseReportDate 接受 YYYY-MM-DD 或 RFC3339
// 纯日期按字面取日，带时刻的按 loc 折算
func ParseReportDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperr.Validation("date is required")
	}
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q, expected YYYY-MM-DD or RFC3339", s)
	}
	return CalendarDay(t, loc), nil
}

func (r *DailyReport) Validate() error {
	r.WorkSummary = strings.TrimSpace(r.WorkSummary)
	if r.WorkSummary == "" {
		return apperr.Validation("work_summary is required")
	}
	if r.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	if r.WorkersOnSite < 0 {
		return apperr.Validation("workers_on_site must not be negative")
	}
	if r.HoursWorked < 0 || r.HoursWorked > 24 {
		return apperr.Validation("hours_worked must be between 0 and 24")
	}
	if r.Weather.Condition != "" && !r.Weather.Condition.Valid() {
		return apperr.Validation("invalid weather condition %q", r.Weather.Condition)
	}
	for _, e := range r.Equipment {
		if strings.TrimSpace(e.Name) == "" || e.HoursUsed < 0 {
			return apperr.Validation("equipment entries need a name and non-negative hours_used")
		}
	}
	for _, m := range r.MaterialsUsed {
		if m.MaterialID == "" || m.Quantity < 0 {
			return apperr.Validation("materials_used entries need material_id and non-negative quantity")
		}
	}
	for _, is := range r.Issues {
		if strings.TrimSpace(is.Description) == "" || !is.Severity.Valid() {
			return apperr.Validation("issues need a description and severity low, medium or high")
		}
	}
	for _, si := range r.SafetyIncidents {
		if strings.TrimSpace(si.Description) == "" || !si.Severity.Valid() {
			return apperr.Validation("safety_incidents need a description and severity low, medium or high")
		}
	}
	r.normalize()
	return nil
}

func (r *DailyReport) normalize() {
	if r.Equipment == nil {
		r.Equipment = []Equipment{}
	}
	if r.MaterialsUsed == nil {
		r.MaterialsUsed = []MaterialUsage{}
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	if r.SafetyIncidents == nil {
		r.SafetyIncidents = []SafetyIncident{}
	}
}

// ReportFilter 日期区间均为闭区间，零值表示不限
type ReportFilter struct {
	ProjectID   string
	SubmittedBy string
	From        time.Time
	To          time.Time
	Page        Page
}
