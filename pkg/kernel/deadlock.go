package kernel

// ClassifyDeadlock is a pure function of the observable deadlock inputs.
// Evaluation order matters: an empty authority set with conflict history is
// MIXED, not EMPTY_AUTHORITY, and emptiness dominates open conflicts.
func ClassifyDeadlock(activeCount, openBindingCount int, everHadConflict bool) DeadlockCause {
	switch {
	case activeCount == 0 && everHadConflict:
		return DeadlockMixed
	case activeCount == 0:
		return DeadlockEmptyAuthority
	case openBindingCount > 0:
		return DeadlockConflict
	default:
		return DeadlockNone
	}
}
