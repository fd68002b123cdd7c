package kernel

// Event is the closed sum type over phase-2 event kinds. The sub-phase
// partitioner switches exhaustively on the concrete types; adding a new kind
// without extending the partitioner is a compile-visible gap, not a silent
// drop.
type Event interface {
	isEvent()
}

// EpochAdvancementRequest asks the kernel to advance to NewEpoch. It is
// carried separately from phase-2 events on the step batch, resets the
// instruction budget, activates pending authorities, and eagerly expires
// overdue ones. NewEpoch must be strictly greater than the current epoch.
type EpochAdvancementRequest struct {
	EventID  string
	NewEpoch uint64
}

// AuthorityInjectionEvent inserts a fully-formed authority record directly.
// Setup-only: harnesses use it to seed state. It consumes an event index but
// emits no output.
type AuthorityInjectionEvent struct {
	Authority AuthorityRecord
	Nonce     string
}

func (AuthorityInjectionEvent) isEvent() {}

// AuthorityRenewalRequest mints a brand-new authority, optionally recording
// provenance against a prior one. The new record is wholly independent: it
// inherits nothing from the prior record, which is never mutated.
type AuthorityRenewalRequest struct {
	NewAuthority                AuthorityRecord
	PriorAuthorityID            string // optional; empty means no provenance pointer
	RenewalEventID              string
	ExternalAuthorizingSourceID string // optional
}

func (AuthorityRenewalRequest) isEvent() {}

// GovernanceActionType selects the governance operation being requested.
type GovernanceActionType string

const (
	GovernanceDestroyAuthority GovernanceActionType = "DESTROY_AUTHORITY"
	GovernanceCreateAuthority  GovernanceActionType = "CREATE_AUTHORITY"
)

// GovernanceParams carries the per-action parameters of a governance request.
// DESTROY uses TargetAuthorityID; CREATE uses the remaining fields.
type GovernanceParams struct {
	// DESTROY_AUTHORITY
	TargetAuthorityID string

	// CREATE_AUTHORITY
	NewAuthorityID        string
	ResourceScope         string
	ScopeBasisAuthorityID string
	AAV                   AAV
	ExpiryEpoch           uint64
	HolderID              string   // optional
	Lineage               []string // optional
}

// GovernanceActionRequest asks the kernel to destroy or create an authority
// on the strength of the initiators' existing grants.
type GovernanceActionRequest struct {
	EventID      string
	ActionType   GovernanceActionType
	InitiatorIDs []string
	TargetIDs    []string
	Params       GovernanceParams
}

func (GovernanceActionRequest) isEvent() {}

// ActionRequestEvent is an ordinary, non-governance admissibility check:
// may this transformation be applied to this scope right now.
type ActionRequestEvent struct {
	RequestID          string
	ResourceScope      string
	TransformationType Transformation
}

func (ActionRequestEvent) isEvent() {}

// StepBatch is one unit of kernel work: an optional epoch advancement
// followed by phase-2 events. The kernel partitions the events into
// sub-phases; within a sub-phase, caller order is preserved.
type StepBatch struct {
	EpochAdvancement *EpochAdvancementRequest
	Events           []Event
}

// partition splits phase-2 events into the five processing sub-phases,
// preserving caller order within each.
func partition(events []Event) (injections []AuthorityInjectionEvent,
	renewals []AuthorityRenewalRequest,
	destroys, creates []GovernanceActionRequest,
	actions []ActionRequestEvent) {

	for _, ev := range events {
		switch e := ev.(type) {
		case AuthorityInjectionEvent:
			injections = append(injections, e)
		case AuthorityRenewalRequest:
			renewals = append(renewals, e)
		case GovernanceActionRequest:
			if e.ActionType == GovernanceDestroyAuthority {
				destroys = append(destroys, e)
			} else {
				creates = append(creates, e)
			}
		case ActionRequestEvent:
			actions = append(actions, e)
		}
	}
	return
}
