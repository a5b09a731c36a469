package engine

// State is the engine's position in the migration lifecycle. Transitions are
// linear from Idle through Completed; any state may transition to Failed.
type State int

const (
	StateIdle State = iota
	StateBackingUp
	StateInitializingSchema
	StateMigrating
	StateVerifying
	StateFinalizing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBackingUp:
		return "backing-up"
	case StateInitializingSchema:
		return "initializing-schema"
	case StateMigrating:
		return "migrating"
	case StateVerifying:
		return "verifying"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
