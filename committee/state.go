package committee

// State is one stage of the committee loop's main cycle (spec §4.7):
//
//	IDLE -> FETCHING -> APPLYING -> SIGNING -> SUBMITTING -> COMMITTED -> IDLE
//
// with REORG_REWIND branching off FETCHING when the gateway's declared
// reference_batch_id does not match the locally committed predecessor, and
// FATAL absorbing any error the loop cannot recover from by retrying.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateApplying
	StateSigning
	StateSubmitting
	StateCommitted
	StateReorgRewind
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateApplying:
		return "APPLYING"
	case StateSigning:
		return "SIGNING"
	case StateSubmitting:
		return "SUBMITTING"
	case StateCommitted:
		return "COMMITTED"
	case StateReorgRewind:
		return "REORG_REWIND"
	case StateFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// suspensionPoint reports whether a shutdown signal observed while in s may
// end the loop cleanly (spec §5): only at IDLE, having just returned from
// COMMITTED, or already halted in FATAL.
func (s State) suspensionPoint() bool {
	return s == StateIdle || s == StateFatal
}
