package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
)

func TestReview_RejectKeepsCommentsAndReviewer(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.completed(t, p.ID, "Foundation")
	m := f.awaiting(t, p.ID, "Framing")

	res, err := f.milestones.Review(f.ctx, architect, m.ID, ReviewInput{Decision: "rejected", Comments: "needs rework"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}

	got := res.Milestone
	if got.Status != model.MilestoneRejected {
		t.Errorf("expected rejected, got %s", got.Status)
	}
	if got.Approval.Status != model.ApprovalRejected {
		t.Errorf("expected approval rejected, got %s", got.Approval.Status)
	}
	if got.Approval.Comments != "needs rework" {
		t.Errorf("expected comments kept, got %q", got.Approval.Comments)
	}
	if got.Approval.ApprovedBy != architect.UserID {
		t.Errorf("expected reviewer %s, got %s", architect.UserID, got.Approval.ApprovedBy)
	}
	if got.Approval.ApprovedAt == nil || !got.Approval.ApprovedAt.Equal(fixedNow) {
		t.Errorf("expected approved_at %v, got %v", fixedNow, got.Approval.ApprovedAt)
	}
	// 1/2*70，被驳回的不计入
	if res.ProjectProgress != 35 {
		t.Errorf("expected project progress 35, got %d", res.ProjectProgress)
	}

	events := f.store.EventsByRoutingKey(mqcontracts.RoutingMilestoneReviewed)
	if len(events) != 2 {
		t.Fatalf("expected 2 reviewed events, got %d", len(events))
	}
	var payload mqcontracts.MilestoneReviewedPayload
	if err := json.Unmarshal(events[1].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Decision != "rejected" || payload.EventID != events[1].ID || payload.ProjectProgress != 35 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestReview_ApproveCompletesMilestone(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.awaiting(t, p.ID, "Foundation")

	res, err := f.milestones.Review(f.ctx, architect, m.ID, ReviewInput{Decision: "approved", Comments: "looks good"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	got := res.Milestone
	if got.Status != model.MilestoneCompleted || got.Approval.Status != model.ApprovalApproved {
		t.Errorf("expected completed/approved, got %s/%s", got.Status, got.Approval.Status)
	}
	if got.Progress != 100 || got.CompletedDate == nil {
		t.Errorf("expected progress 100 and completed date, got %d %v", got.Progress, got.CompletedDate)
	}
	if res.ProjectProgress != 70 {
		t.Errorf("expected project progress 70, got %d", res.ProjectProgress)
	}

	_, err = f.milestones.Review(f.ctx, architect, m.ID, ReviewInput{Decision: "rejected"})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("completed milestone must not be reviewed again, got %v", err)
	}
}

func TestReview_ContractorForbidden(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.awaiting(t, p.ID, "Foundation")

	_, err := f.milestones.Review(f.ctx, contractor, m.ID, ReviewInput{Decision: "approved"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	got, err := f.milestones.Get(f.ctx, contractor, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.MilestoneAwaitingApproval {
		t.Errorf("milestone must stay awaiting-approval, got %s", got.Status)
	}
}

func TestReview_InvalidDecision(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.awaiting(t, p.ID, "Foundation")

	_, err := f.milestones.Review(f.ctx, architect, m.ID, ReviewInput{Decision: "maybe"})
	if !errors.Is(err, apperr.ErrInvalidDecision) {
		t.Fatalf("expected INVALID_DECISION, got %v", err)
	}
}

func TestReview_NotFoundBeforeMembership(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.awaiting(t, p.ID, "Foundation")

	_, err := f.milestones.Review(f.ctx, outsider, "00000000-0000-0000-0000-000000000000", ReviewInput{Decision: "approved"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	_, err = f.milestones.Review(f.ctx, outsider, m.ID, ReviewInput{Decision: "approved"})
	if !errors.Is(err, apperr.ErrNotProjectMember) {
		t.Errorf("expected NOT_PROJECT_MEMBER, got %v", err)
	}
}

func TestReview_PendingMilestoneCannotBeApproved(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.milestone(t, p.ID, "Foundation", model.MilestonePending, 0)

	_, err := f.milestones.Review(f.ctx, architect, m.ID, ReviewInput{Decision: "approved"})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestSubmit_RequiresFullProgress(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.milestone(t, p.ID, "Foundation", model.MilestoneInProgress, 80)

	_, err := f.milestones.Submit(f.ctx, contractor, m.ID)
	if !errors.Is(err, apperr.ErrProgressIncomplete) {
		t.Fatalf("expected PROGRESS_INCOMPLETE, got %v", err)
	}
	if events := f.store.EventsByRoutingKey(mqcontracts.RoutingMilestoneSubmitted); len(events) != 0 {
		t.Errorf("expected no submitted event, got %d", len(events))
	}
}

func TestSubmit_RejectedCanBeResubmitted(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.awaiting(t, p.ID, "Foundation")

	if _, err := f.milestones.Review(f.ctx, architect, m.ID, ReviewInput{Decision: "rejected", Comments: "gaps"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, err := f.milestones.Submit(f.ctx, contractor, m.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if got.Status != model.MilestoneAwaitingApproval || got.Approval.Status != model.ApprovalPending {
		t.Errorf("expected awaiting-approval/pending, got %s/%s", got.Status, got.Approval.Status)
	}
	if got.Approval.Comments != "gaps" {
		t.Errorf("resubmit keeps previous reviewer comments, got %q", got.Approval.Comments)
	}
}

func TestCreateMilestone_RejectsApprovalStates(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	_, err := f.milestones.Create(f.ctx, contractor, CreateMilestoneInput{
		ProjectID: p.ID,
		Title:     "Shortcut",
		Status:    model.MilestoneCompleted,
		StartDate: "2024-01-02",
		DueDate:   "2024-01-20",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateMilestone_StartDateRequired(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	_, err := f.milestones.Create(f.ctx, contractor, CreateMilestoneInput{
		ProjectID: p.ID,
		Title:     "Foundation",
		DueDate:   "2024-01-20",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateMilestone_PastDueDateAccepted(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	// 截止日早于当前时钟，只要不早于开始日即可
	m, err := f.milestones.Create(f.ctx, contractor, CreateMilestoneInput{
		ProjectID: p.ID,
		Title:     "Site survey",
		StartDate: "2024-01-01",
		DueDate:   "2024-01-05",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !m.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start_date = %v", m.StartDate)
	}
}

func TestCreateMilestone_DependenciesMustShareProject(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	other := f.project(t)
	foreign := f.milestone(t, other.ID, "Elsewhere", model.MilestonePending, 0)

	_, err := f.milestones.Create(f.ctx, contractor, CreateMilestoneInput{
		ProjectID:    p.ID,
		Title:        "Framing",
		StartDate:    "2024-01-02",
		DueDate:      "2024-01-20",
		Dependencies: []string{foreign.ID},
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateMilestone_StatusRestrictedToWorkStates(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.milestone(t, p.ID, "Foundation", model.MilestonePending, 0)

	approved := model.MilestoneApproved
	_, err := f.milestones.Update(f.ctx, contractor, m.ID, UpdateMilestoneInput{Status: &approved})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	inProgress := model.MilestoneInProgress
	progress := 60
	got, err := f.milestones.Update(f.ctx, contractor, m.ID, UpdateMilestoneInput{Status: &inProgress, Progress: &progress})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.MilestoneInProgress || got.Progress != 60 || !got.InLockstep() {
		t.Errorf("unexpected milestone after edit: %s %d %s", got.Status, got.Progress, got.Approval.Status)
	}
	if events := f.store.EventsByRoutingKey(mqcontracts.RoutingProjectRecalculate); len(events) != 2 {
		t.Errorf("expected recalculation requested on create and update, got %d", len(events))
	}
}

func TestDeleteMilestone_CompletedIsFinal(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.completed(t, p.ID, "Foundation")

	err := f.milestones.Delete(f.ctx, contractor, m.ID)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestPendingApprovals_ScopedToMembers(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.awaiting(t, p.ID, "Foundation")
	f.milestone(t, p.ID, "Framing", model.MilestoneInProgress, 50)

	got, err := f.milestones.PendingApprovals(f.ctx, architect)
	if err != nil {
		t.Fatalf("pending approvals: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Foundation" {
		t.Errorf("expected Foundation awaiting approval, got %d items", len(got))
	}

	got, err = f.milestones.PendingApprovals(f.ctx, outsider)
	if err != nil {
		t.Fatalf("pending approvals: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("outsider must see nothing, got %d", len(got))
	}
}

func TestPendingApprovals_ReviewersOnly(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.awaiting(t, p.ID, "Foundation")

	for _, actor := range []model.Actor{contractor, client} {
		if _, err := f.milestones.PendingApprovals(f.ctx, actor); !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("%s: expected forbidden, got %v", actor.Role, err)
		}
	}
}
