package models

import (
	"time"

	"github.com/google/uuid"
)

// Milestone statuses
const (
	MilestoneStatusPending           = "pending"
	MilestoneStatusSubmitted         = "submitted"
	MilestoneStatusRevisionRequested = "revision_requested"
	MilestoneStatusApproved          = "approved"
	MilestoneStatusClaimed           = "claimed"
	MilestoneStatusCompleted         = "completed"
)

// Review actions
const (
	ReviewActionApprove         = "approve"
	ReviewActionRequestRevision = "request_revision"
)

// Valid state transitions: from -> []to.
// A submitted milestone may be re-submitted (payload replacement) before
// the payer reviews it. Claimed and completed are terminal except for the
// claimed -> completed bookkeeping step.
var ValidMilestoneTransitions = map[string][]string{
	MilestoneStatusPending:           {MilestoneStatusSubmitted},
	MilestoneStatusSubmitted:         {MilestoneStatusSubmitted, MilestoneStatusApproved, MilestoneStatusRevisionRequested},
	MilestoneStatusRevisionRequested: {MilestoneStatusSubmitted},
	MilestoneStatusApproved:          {MilestoneStatusClaimed},
	MilestoneStatusClaimed:           {MilestoneStatusCompleted},
	MilestoneStatusCompleted:         {},
}

func IsValidMilestoneTransition(from, to string) bool {
	allowed, ok := ValidMilestoneTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsSubmittable reports whether a milestone in the given status may receive
// a (re-)submission from the payee.
func IsSubmittable(status string) bool {
	switch status {
	case MilestoneStatusPending, MilestoneStatusSubmitted, MilestoneStatusRevisionRequested:
		return true
	}
	return false
}

// Milestone is one of the three fixed stages of a project. Exactly one row
// per (project, stage); stage numbers are contiguous 1..3.
type Milestone struct {
	ID              uuid.UUID `json:"id"`
	ProjectID       uuid.UUID `json:"project_id"`
	StageNumber     int       `json:"stage_number"` // 1-based
	PaymentLamports int64     `json:"payment_lamports"`
	Status          string    `json:"status"`

	// Submission payload
	Description *string    `json:"description,omitempty"`
	Links       []string   `json:"links,omitempty"`
	Files       []string   `json:"files,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// Review payload
	ReviewComments *string    `json:"review_comments,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`

	PaymentReleased bool      `json:"payment_released"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
