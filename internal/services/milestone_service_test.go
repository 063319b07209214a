package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/worklance/backend/internal/models"
)

func TestCheckSubmittable_StrictOrder(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		stage        int
		currentStage int
		ok           bool
	}{
		{"current stage pending", models.MilestoneStatusPending, 1, 1, true},
		{"resubmit current stage", models.MilestoneStatusSubmitted, 2, 2, true},
		{"after revision request", models.MilestoneStatusRevisionRequested, 1, 1, true},
		{"future stage blocked", models.MilestoneStatusPending, 2, 1, false},
		{"past stage blocked", models.MilestoneStatusPending, 1, 2, false},
		{"approved never submittable", models.MilestoneStatusApproved, 1, 1, false},
		{"claimed never submittable", models.MilestoneStatusClaimed, 1, 1, false},
		{"completed never submittable", models.MilestoneStatusCompleted, 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &models.Milestone{StageNumber: tt.stage, Status: tt.status}
			err := checkSubmittable(m, tt.currentStage, true)
			if tt.ok && err != nil {
				t.Errorf("expected submittable, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected rejection")
			}
			if !tt.ok && !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("rejection must wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCheckSubmittable_PermissiveOrder(t *testing.T) {
	// With strict ordering off, any unlocked stage accepts a submission.
	m := &models.Milestone{StageNumber: 3, Status: models.MilestoneStatusPending}
	if err := checkSubmittable(m, 1, false); err != nil {
		t.Errorf("expected out-of-order submission to pass, got %v", err)
	}

	// Lifecycle locks still apply.
	locked := &models.Milestone{StageNumber: 3, Status: models.MilestoneStatusApproved}
	if err := checkSubmittable(locked, 1, false); err == nil {
		t.Error("approved milestone must stay locked regardless of ordering policy")
	}
}

func TestApprovalSignature(t *testing.T) {
	id := uuid.New()

	sig := "5j2KQx7WpFVEjCuWvnqWZgxTJBA4d9eJfkp8YybD8BUyGVNP3mDo2mrBGyXJ9PqE"
	if got := approvalSignature(&sig, id); got != sig {
		t.Errorf("ledger signature must win, got %q", got)
	}

	empty := ""
	want := "approval:" + id.String()
	if got := approvalSignature(nil, id); got != want {
		t.Errorf("approvalSignature(nil) = %q, want %q", got, want)
	}
	if got := approvalSignature(&empty, id); got != want {
		t.Errorf("approvalSignature(empty) = %q, want %q", got, want)
	}

	// Deterministic: re-running the approval yields the same key, so the
	// unique signature constraint turns a replay into a no-op row.
	if approvalSignature(nil, id) != approvalSignature(nil, id) {
		t.Error("synthetic approval key must be deterministic")
	}
}

func TestProjectLocker_SerializesPerProject(t *testing.T) {
	locker := NewProjectLocker()
	id := uuid.New()

	unlock := locker.Lock(id)
	acquired := make(chan struct{})
	go func() {
		u := locker.Lock(id)
		close(acquired)
		u()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	default:
	}

	unlock()
	<-acquired
}
