package model

import (
	"encoding/json"
	"testing"
	"time"

	"buildtrack/pkg/apperr"
)

func TestApprovalLockstep(t *testing.T) {
	cases := map[MilestoneStatus]ApprovalStatus{
		MilestonePending:          ApprovalPending,
		MilestoneInProgress:       ApprovalPending,
		MilestoneAwaitingApproval: ApprovalPending,
		MilestoneApproved:         ApprovalApproved,
		MilestoneCompleted:        ApprovalApproved,
		MilestoneRejected:         ApprovalRejected,
	}
	for status, want := range cases {
		m := &Milestone{Status: status, Approval: Approval{Status: ApprovalRejected, ApprovedBy: "u-1", Comments: "redo"}}
		m.SyncApproval()
		if m.Approval.Status != want || !m.InLockstep() {
			t.Errorf("%s: approval = %s, want %s", status, m.Approval.Status, want)
		}
		if m.Approval.ApprovedBy != "u-1" || m.Approval.Comments != "redo" {
			t.Errorf("%s: reviewer or comments lost", status)
		}
	}
}

func TestMilestoneValidateDependencies(t *testing.T) {
	in := []string{"a", "b", "a", "", "c"}
	m := &Milestone{
		ID:           "m-1",
		Title:        "Framing",
		Status:       MilestonePending,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:      time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Dependencies: in,
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := m.Dependencies; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("dependencies = %v", got)
	}
	if in[0] != "a" || in[1] != "b" || in[2] != "a" || in[3] != "" || in[4] != "c" {
		t.Errorf("caller slice modified: %v", in)
	}
}

func TestMilestoneValidateRequiresStartDate(t *testing.T) {
	m := &Milestone{
		Title:   "Framing",
		Status:  MilestonePending,
		DueDate: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	if err := m.Validate(); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("err = %v, want validation", err)
	}
	if !m.StartDate.IsZero() {
		t.Errorf("start_date defaulted to %v", m.StartDate)
	}
}

func TestCalendarDay(t *testing.T) {
	shanghai := time.FixedZone("UTC+8", 8*3600)
	// 2024-03-01 20:00 UTC 在 UTC+8 已是 3 月 2 日
	ts := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	if got := CalendarDay(ts, time.UTC); !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("UTC day = %v", got)
	}
	if got := CalendarDay(ts, shanghai); !got.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("UTC+8 day = %v", got)
	}
}

func TestParseReportDate(t *testing.T) {
	shanghai := time.FixedZone("UTC+8", 8*3600)
	want := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	for _, s := range []string{"2024-03-02", " 2024-03-02 ", "2024-03-01T20:00:00Z", "2024-03-02T23:59:59+08:00"} {
		got, err := ParseReportDate(s, shanghai)
		if err != nil {
			t.Fatalf("ParseReportDate(%q): %v", s, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseReportDate(%q) = %v, want %v", s, got, want)
		}
	}

	for _, s := range []string{"", "02/03/2024", "2024-13-01"} {
		if _, err := ParseReportDate(s, shanghai); apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("ParseReportDate(%q) err = %v, want validation", s, err)
		}
	}
}

func TestApplyQuantity(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	item := &InventoryItem{Quantity: 10, MinQuantity: 5}

	if err := item.ApplyQuantity(QuantitySubtract, 4, now); err != nil {
		t.Fatal(err)
	}
	if item.Quantity != 6 || item.LastRestocked != nil {
		t.Errorf("after subtract: %+v", item)
	}

	err := item.ApplyQuantity(QuantitySubtract, 7, now)
	if e, ok := apperr.As(err); !ok || e.Code != apperr.CodeInsufficientStock {
		t.Fatalf("overdraw err = %v", err)
	}
	if item.Quantity != 6 {
		t.Errorf("failed subtract changed quantity to %v", item.Quantity)
	}

	if err := item.ApplyQuantity(QuantityAdd, 2, now); err != nil {
		t.Fatal(err)
	}
	if item.Quantity != 8 || item.LastRestocked == nil || !item.LastRestocked.Equal(now) {
		t.Errorf("after add: %+v", item)
	}

	if err := item.ApplyQuantity(QuantitySet, 5, now); err != nil {
		t.Fatal(err)
	}
	if !item.IsLowStock() {
		t.Error("quantity equal to minimum counts as low stock")
	}

	if err := item.ApplyQuantity("double", 1, now); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("unknown operation err = %v", err)
	}
	if err := item.ApplyQuantity(QuantityAdd, -1, now); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("negative amount err = %v", err)
	}
}

func TestInventoryJSONCarriesDerivedFields(t *testing.T) {
	raw, err := json.Marshal(InventoryItem{Quantity: 4, MinQuantity: 5, UnitCost: 2.5})
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		IsLowStock bool    `json:"is_low_stock"`
		TotalValue float64 `json:"total_value"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if !got.IsLowStock || got.TotalValue != 10 {
		t.Errorf("derived = %+v", got)
	}
}

func TestIsMember(t *testing.T) {
	p := &Project{ClientID: "c", ContractorID: "k", ArchitectID: "a", CreatedBy: "o"}
	for _, id := range []string{"c", "k", "a", "o"} {
		if !p.IsMember(id) {
			t.Errorf("%s should be a member", id)
		}
	}
	if p.IsMember("x") || p.IsMember("") {
		t.Error("non-member accepted")
	}
	if (&Project{ClientID: "c"}).IsMember("") {
		t.Error("empty user id matched empty architect")
	}
}

func TestPhotoValidate(t *testing.T) {
	p := &Photo{MimeType: "image/webp", Size: 1024}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.Category != PhotoGeneral || p.Tags == nil {
		t.Errorf("defaults not applied: %+v", p)
	}

	bad := []*Photo{
		{MimeType: "application/pdf", Size: 10},
		{MimeType: "image/png", Size: MaxPhotoSize + 1},
		{MimeType: "image/png", Size: 10, Category: "selfie"},
	}
	for _, b := range bad {
		if err := b.Validate(); apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("Validate(%+v) = %v", b, err)
		}
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := Window(items, NewPage(2, 2)); len(got) != 2 || got[0] != 3 {
		t.Errorf("page 2 = %v", got)
	}
	if got := Window(items, NewPage(4, 2)); len(got) != 0 {
		t.Errorf("past end = %v", got)
	}
	if p := NewPagination(NewPage(1, 2), 2, 5); p.Pages != 3 || p.CurrentPage != 1 {
		t.Errorf("pagination = %+v", p)
	}
}
