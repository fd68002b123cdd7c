package kernel

// OutputType identifies one kind of kernel output.
type OutputType string

const (
	OutputAuthorityExpired   OutputType = "AUTHORITY_EXPIRED"
	OutputAuthorityRenewed   OutputType = "AUTHORITY_RENEWED"
	OutputAuthorityCreated   OutputType = "AUTHORITY_CREATED"
	OutputAuthorityDestroyed OutputType = "AUTHORITY_DESTROYED"
	OutputActionExecuted     OutputType = "ACTION_EXECUTED"
	OutputActionRefused      OutputType = "ACTION_REFUSED"
	OutputDeadlockDeclared   OutputType = "DEADLOCK_DECLARED"
	OutputDeadlockPersisted  OutputType = "DEADLOCK_PERSISTED"
)

// RefusalReason explains an ACTION_REFUSED output. Refusals are normal,
// expected outcomes of admissibility logic and never abort a batch.
type RefusalReason string

const (
	RefusalNoAuthority          RefusalReason = "NO_AUTHORITY"
	RefusalConflictBlocks       RefusalReason = "CONFLICT_BLOCKS"
	RefusalBoundExhausted       RefusalReason = "BOUND_EXHAUSTED"
	RefusalDeadlockState        RefusalReason = "DEADLOCK_STATE"
	RefusalAmplificationBlocked RefusalReason = "AMPLIFICATION_BLOCKED"
	RefusalScopeNotCovered      RefusalReason = "SCOPE_NOT_COVERED"
	RefusalTargetNotActive      RefusalReason = "TARGET_NOT_ACTIVE"
	RefusalAuthorityNotFound    RefusalReason = "AUTHORITY_NOT_FOUND"
)

// Output is one entry in the ordered output stream. EventIndex is a
// strictly monotonic integer starting at 1 within the batch; StateHash is
// the canonical hash of the kernel state immediately after the mutation
// that produced this output (unchanged from the prior hash when the step
// mutated nothing, as for most refusals).
//
// Details carries only canon-encodable values (strings, integers, booleans,
// string slices); it never contains floats.
type Output struct {
	Type       OutputType
	EventIndex int
	StateHash  string
	Details    map[string]any
}

// TraceEntry records a step that consumed an event index without producing
// an output, which is how injections and epoch advancements appear in the
// replay record.
type TraceEntry struct {
	EventIndex int
	Note       string
	EventID    string
}

// BatchResult is everything a caller sees from one step batch: the ordered
// outputs, the trace log, and a deep-copied snapshot of the resulting state.
type BatchResult struct {
	Outputs []Output
	Trace   []TraceEntry
	State   *AuthorityState
}
