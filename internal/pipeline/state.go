package pipeline

// State tracks the pipeline through its linear run. There is no branching
// topology beyond success/failure: any failure up to and including writing
// still passes through health reporting before reaching the terminal state.
type State int

// Pipeline states in execution order. Validation happens inline during
// fetching; it has no state of its own.
const (
	StateIdle State = iota
	StateFetching
	StateDetectingChanges
	StateAggregating
	StateWriting
	StateReportingHealth
	StateDone
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateDetectingChanges:
		return "DETECTING_CHANGES"
	case StateAggregating:
		return "AGGREGATING"
	case StateWriting:
		return "WRITING"
	case StateReportingHealth:
		return "REPORTING_HEALTH"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	}

	return "UNKNOWN"
}

// Terminal reports whether the pipeline has finished.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
