package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/claimflow/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// buildEvents converts transitions into looplab/fsm EventDesc format.
// Transitions sharing an event and destination collapse into one EventDesc
// with several sources (EventCancel fires from three statuses).
func buildEvents(transitions []domain.Transition) []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// looplab/fsm tracks its current state, so every Apply call builds
// short-lived machines seeded with the claim's status.
type Validator struct {
	events []loopfsm.EventDesc
}

// New creates a validator for the claim lifecycle in domain.Transitions.
func New() *Validator {
	return NewFromTransitions(domain.Transitions)
}

// NewFromTransitions creates a validator for an arbitrary transition table.
func NewFromTransitions(transitions []domain.Transition) *Validator {
	return &Validator{events: buildEvents(transitions)}
}

// Apply asks the machine which events the current status allows, fires each
// one and accepts the first that lands in requested. Requests with no such
// event, including staying in the same status, yield a domain.TransitionError.
func (v *Validator) Apply(ctx context.Context, current, requested domain.Status) (domain.Status, error) {
	seed := loopfsm.NewFSM(string(current), v.events, nil)

	for _, event := range seed.AvailableTransitions() {
		machine := loopfsm.NewFSM(string(current), v.events, nil)
		if err := machine.Event(ctx, event); err != nil {
			if isRejection(err) {
				continue
			}
			return "", err
		}
		if domain.Status(machine.Current()) == requested {
			return requested, nil
		}
	}

	return "", &domain.TransitionError{Current: current, Requested: requested}
}

func isRejection(err error) bool {
	var (
		invalidEvent loopfsm.InvalidEventError
		unknownEvent loopfsm.UnknownEventError
		noTransition loopfsm.NoTransitionError
	)
	return errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition)
}
