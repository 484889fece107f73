package domain

import "fmt"

// Status represents the lifecycle state of a claim.
type Status string

const (
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusPaid        Status = "PAID"
	StatusCancelled   Status = "CANCELLED"
)

// Statuses lists every defined status in lifecycle order.
var Statuses = []Status{
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusPaid,
	StatusCancelled,
}

var descriptions = map[Status]string{
	StatusSubmitted:   "Claim has been submitted and is awaiting initial review",
	StatusUnderReview: "Claim is under review by claims department",
	StatusApproved:    "Claim has been approved for payment",
	StatusRejected:    "Claim has been rejected",
	StatusPaid:        "Claim has been paid",
	StatusCancelled:   "Claim has been cancelled",
}

// Event names an action on a claim. Status-changing events appear in
// Transitions; the rest describe mutations that leave the status alone.
type Event string

const (
	EventReview  Event = "review"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventPay     Event = "pay"
	EventCancel  Event = "cancel"

	EventSubmit   Event = "submit"
	EventAmend    Event = "amend"
	EventWithdraw Event = "withdraw"
)

// Transition defines a valid state change: an event moves a claim from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the claim lifecycle.
// It is the single source of truth for CanTransition, ValidNextStates and
// the FSM adapter.
var Transitions = []Transition{
	{Event: EventReview, Src: StatusSubmitted, Dst: StatusUnderReview},
	{Event: EventCancel, Src: StatusSubmitted, Dst: StatusCancelled},
	{Event: EventApprove, Src: StatusUnderReview, Dst: StatusApproved},
	{Event: EventReject, Src: StatusUnderReview, Dst: StatusRejected},
	{Event: EventCancel, Src: StatusUnderReview, Dst: StatusCancelled},
	{Event: EventPay, Src: StatusApproved, Dst: StatusPaid},
	{Event: EventCancel, Src: StatusApproved, Dst: StatusCancelled},
}

// nextStates is derived once from Transitions.
var nextStates = buildNextStates()

func buildNextStates() map[Status][]Status {
	out := make(map[Status][]Status, len(Statuses))
	for _, s := range Statuses {
		out[s] = nil
	}
	for _, t := range Transitions {
		out[t.Src] = append(out[t.Src], t.Dst)
	}
	return out
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown claim status %q", s)
	}
	return status, nil
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	_, ok := nextStates[s]
	return ok
}

// Description returns a human-readable explanation of the status.
func (s Status) Description() string {
	return descriptions[s]
}

// CanTransition reports whether a claim may move from s to to.
// Self-transitions are never allowed.
func (s Status) CanTransition(to Status) bool {
	for _, next := range nextStates[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidNextStates returns the statuses reachable from s in one step.
func (s Status) ValidNextStates() []Status {
	next := nextStates[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether s has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusPaid || s == StatusCancelled
}

// IsSuccessful reports whether s is the successful end of the lifecycle.
func (s Status) IsSuccessful() bool {
	return s == StatusPaid
}

// CanTransition is the function form of Status.CanTransition.
func CanTransition(from, to Status) bool {
	return from.CanTransition(to)
}

// EventFor returns the event that moves a claim from one status to another.
func EventFor(from, to Status) (Event, bool) {
	for _, t := range Transitions {
		if t.Src == from && t.Dst == to {
			return t.Event, true
		}
	}
	return "", false
}

// TargetOf returns the destination status of a status-changing event.
// Every event in Transitions has exactly one destination.
func TargetOf(event Event) (Status, bool) {
	for _, t := range Transitions {
		if t.Event == event {
			return t.Dst, true
		}
	}
	return "", false
}
