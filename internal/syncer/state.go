package syncer

import "draftsync/internal/errs"

// State is the per-path sync state machine:
//
//	Idle -> Pulling|Pushing -> Idle (success/failure)
//	Pulling|Pushing -> AwaitingResolution (conflict)
//	AwaitingResolution -> Finalizing|Cancelling -> Idle
type State int

const (
	StateIdle State = iota
	StatePulling
	StatePushing
	StateAwaitingResolution
	StateFinalizing
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulling:
		return "pulling"
	case StatePushing:
		return "pushing"
	case StateAwaitingResolution:
		return "awaiting-resolution"
	case StateFinalizing:
		return "finalizing"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

var validTransitions = map[State][]State{
	StateIdle:               {StatePulling, StatePushing, StateAwaitingResolution},
	StatePulling:            {StateIdle, StateAwaitingResolution},
	StatePushing:            {StateIdle, StateAwaitingResolution},
	StateAwaitingResolution: {StateFinalizing, StateCancelling},
	StateFinalizing:         {StateIdle, StateAwaitingResolution},
	StateCancelling:         {StateIdle, StateAwaitingResolution},
}

// transition moves the session from one state to another, failing with
// InvalidState on anything the machine does not allow. Callers hold s.mu.
func (s *SyncSession) transitionLocked(to State) error {
	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return errs.Newf(errs.KindInvalidState,
		"invalid state transition %s -> %s for %s", s.state, to, s.relPath)
}
