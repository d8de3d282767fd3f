package workflow

import (
	"errors"
	"testing"
	"time"

	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
)

func newMilestone(status model.MilestoneStatus, progress int) *model.Milestone {
	m := &model.Milestone{ID: "m-1", Status: status, Progress: progress}
	m.SyncApproval()
	return m
}

func TestReachable_FromAwaitingApproval(t *testing.T) {
	got := Reachable(model.MilestoneAwaitingApproval)
	want := map[model.MilestoneStatus]bool{
		model.MilestoneCompleted: true,
		model.MilestoneRejected:  true,
	}
	if len(got) != len(want) {
		t.Fatalf("expected exactly %d reachable states, got %v", len(want), got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected reachable state %s", s)
		}
	}
}

func TestReachable_TerminalStates(t *testing.T) {
	for _, s := range []model.MilestoneStatus{model.MilestoneCompleted, model.MilestoneApproved} {
		if got := Reachable(s); len(got) != 0 {
			t.Errorf("expected no transitions from %s, got %v", s, got)
		}
		for _, a := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionEdit, ActionDelete} {
			if Allowed(s, a) {
				t.Errorf("action %s must not be allowed from %s", a, s)
			}
		}
	}
}

func TestSubmit_RequiresFullProgress(t *testing.T) {
	m := newMilestone(model.MilestoneInProgress, 80)

	err := Submit(m)
	if !errors.Is(err, apperr.ErrProgressIncomplete) {
		t.Fatalf("expected PROGRESS_INCOMPLETE, got %v", err)
	}
	if m.Status != model.MilestoneInProgress {
		t.Errorf("status must not change on failed submit, got %s", m.Status)
	}
}

func TestSubmit_MovesToAwaitingApproval(t *testing.T) {
	m := newMilestone(model.MilestoneInProgress, 100)

	if err := Submit(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != model.MilestoneAwaitingApproval || m.Approval.Status != model.ApprovalPending {
		t.Errorf("unexpected state after submit: %s / %s", m.Status, m.Approval.Status)
	}
}

func TestSubmit_FromRejectedResubmits(t *testing.T) {
	m := newMilestone(model.MilestoneRejected, 100)

	if err := Submit(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.InLockstep() {
		t.Errorf("approval out of lockstep: %s / %s", m.Status, m.Approval.Status)
	}
}

func TestSubmit_FromPendingIsInvalidTransition(t *testing.T) {
	err := Submit(newMilestone(model.MilestonePending, 100))
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestReview_Approve(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	m := newMilestone(model.MilestoneAwaitingApproval, 90)

	if err := Review(m, DecisionApproved, "arch-1", "looks good", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != model.MilestoneCompleted {
		t.Errorf("expected completed, got %s", m.Status)
	}
	if m.Progress != 100 || m.CompletedDate == nil || !m.CompletedDate.Equal(now) {
		t.Errorf("expected progress 100 and completed date set, got %d / %v", m.Progress, m.CompletedDate)
	}
	if m.Approval.Status != model.ApprovalApproved || m.Approval.ApprovedBy != "arch-1" {
		t.Errorf("unexpected approval: %+v", m.Approval)
	}
}

func TestReview_Reject(t *testing.T) {
	now := time.Now()
	m := newMilestone(model.MilestoneAwaitingApproval, 100)

	if err := Review(m, DecisionRejected, "arch-1", "needs rework", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != model.MilestoneRejected || m.Approval.Status != model.ApprovalRejected {
		t.Errorf("unexpected state: %s / %s", m.Status, m.Approval.Status)
	}
	if m.Approval.Comments != "needs rework" || m.CompletedDate != nil {
		t.Errorf("unexpected approval: %+v completed=%v", m.Approval, m.CompletedDate)
	}
}

func TestReview_OutsideAwaitingApproval(t *testing.T) {
	for _, s := range []model.MilestoneStatus{
		model.MilestonePending, model.MilestoneInProgress, model.MilestoneRejected, model.MilestoneCompleted,
	} {
		err := Review(newMilestone(s, 100), DecisionApproved, "arch-1", "", time.Now())
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("from %s: expected invalid transition, got %v", s, err)
		}
	}
}

func TestParseDecision(t *testing.T) {
	if _, err := ParseDecision("approved"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseDecision("maybe"); !errors.Is(err, apperr.ErrInvalidDecision) {
		t.Errorf("expected INVALID_DECISION, got %v", err)
	}
}

func TestEdit_StatusRestrictions(t *testing.T) {
	m := newMilestone(model.MilestoneRejected, 100)
	if err := Edit(m, model.MilestoneInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != model.MilestoneInProgress || m.Approval.Status != model.ApprovalPending {
		t.Errorf("expected re-synced approval, got %s / %s", m.Status, m.Approval.Status)
	}

	err := Edit(newMilestone(model.MilestoneInProgress, 100), model.MilestoneCompleted)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected setting completed via edit to fail, got %v", err)
	}

	err = Edit(newMilestone(model.MilestoneCompleted, 100), "")
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected editing a completed milestone to fail, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	if err := Delete(newMilestone(model.MilestoneAwaitingApproval, 0)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Delete(newMilestone(model.MilestoneRejected, 0)); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected delete of rejected milestone to fail, got %v", err)
	}
}
