package models

import "testing"

func TestIsValidMilestoneTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{MilestoneStatusPending, MilestoneStatusSubmitted, true},
		{MilestoneStatusSubmitted, MilestoneStatusApproved, true},
		{MilestoneStatusSubmitted, MilestoneStatusRevisionRequested, true},
		{MilestoneStatusRevisionRequested, MilestoneStatusSubmitted, true},
		{MilestoneStatusApproved, MilestoneStatusClaimed, true},
		{MilestoneStatusClaimed, MilestoneStatusCompleted, true},

		// Re-submission replaces the payload before review
		{MilestoneStatusSubmitted, MilestoneStatusSubmitted, true},

		// Invalid transitions
		{MilestoneStatusPending, MilestoneStatusApproved, false},
		{MilestoneStatusPending, MilestoneStatusClaimed, false},
		{MilestoneStatusApproved, MilestoneStatusSubmitted, false},
		{MilestoneStatusApproved, MilestoneStatusRevisionRequested, false},
		{MilestoneStatusClaimed, MilestoneStatusApproved, false},
		{MilestoneStatusClaimed, MilestoneStatusSubmitted, false},
		{MilestoneStatusCompleted, MilestoneStatusSubmitted, false},
		{MilestoneStatusCompleted, MilestoneStatusClaimed, false},
		{MilestoneStatusRevisionRequested, MilestoneStatusApproved, false},
		{"nonexistent", MilestoneStatusSubmitted, false},
		{MilestoneStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidMilestoneTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidMilestoneTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllMilestoneStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		MilestoneStatusPending, MilestoneStatusSubmitted, MilestoneStatusRevisionRequested,
		MilestoneStatusApproved, MilestoneStatusClaimed, MilestoneStatusCompleted,
	}

	for _, status := range allStatuses {
		if _, ok := ValidMilestoneTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidMilestoneTransitions map", status)
		}
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	if transitions := ValidMilestoneTransitions[MilestoneStatusCompleted]; len(transitions) != 0 {
		t.Errorf("completed should have no transitions, got %v", transitions)
	}
}

func TestIsSubmittable(t *testing.T) {
	submittable := []string{MilestoneStatusPending, MilestoneStatusSubmitted, MilestoneStatusRevisionRequested}
	for _, s := range submittable {
		if !IsSubmittable(s) {
			t.Errorf("expected %q to be submittable", s)
		}
	}
	locked := []string{MilestoneStatusApproved, MilestoneStatusClaimed, MilestoneStatusCompleted, "nonexistent"}
	for _, s := range locked {
		if IsSubmittable(s) {
			t.Errorf("expected %q to not be submittable", s)
		}
	}
}

func TestSOLToLamports(t *testing.T) {
	tests := []struct {
		sol      float64
		expected int64
	}{
		{1, 1_000_000_000},
		{0.5, 500_000_000},
		{2.5, 2_500_000_000},
		{0.000000001, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := SOLToLamports(tt.sol); got != tt.expected {
			t.Errorf("SOLToLamports(%v) = %d, want %d", tt.sol, got, tt.expected)
		}
	}
}
