package events

import "context"

// Event types published on the escrow stream. Notification delivery is
// fire-and-forget: subscribers (websocket hub, external notifier) consume
// these, the engine never waits on them.
const (
	EventEscrowFunded       = "escrow_funded"
	EventMilestoneSubmitted = "milestone_submitted"
	EventMilestoneApproved  = "milestone_approved"
	EventRevisionRequested  = "revision_requested"
	EventMilestoneClaimed   = "milestone_claimed"
	EventProjectCompleted   = "project_completed"
	EventProjectCancelled   = "project_cancelled"
	EventMirrorCorrected    = "mirror_corrected"
)

// StreamEscrow is the pub/sub channel all escrow events go through.
const StreamEscrow = "events:escrow"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
