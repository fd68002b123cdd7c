package kernel

import "sort"

// Transformation identifies one permitted action type as a bit position in
// an AAV. The closed set of transformations and their bit assignments come
// from the constitution; the kernel only cares about bit arithmetic.
type Transformation uint8

// MaxTransformation is the highest assignable bit position. Bits above it
// are reserved and must be zero in every record.
const MaxTransformation Transformation = 55

// AAV is an Authorized-Action Vector: a fixed-width bitset of permitted
// transformation types. The high byte is reserved.
type AAV uint64

// reservedAAVMask covers the reserved high bit-range of every AAV: every
// bit above MaxTransformation.
const reservedAAVMask AAV = ^(^AAV(0) >> (63 - uint64(MaxTransformation)))

// Has reports whether the bit for t is set.
func (a AAV) Has(t Transformation) bool {
	return t <= MaxTransformation && a&(1<<uint(t)) != 0
}

// With returns a copy of a with the bit for t set.
func (a AAV) With(t Transformation) AAV {
	return a | 1<<uint(t)
}

// HasReservedBits reports whether any reserved bit is set. A record carrying
// such an AAV is a construction error, never a refusal.
func (a AAV) HasReservedBits() bool {
	return a&reservedAAVMask != 0
}

// SubsetOf reports whether every bit of a is also set in b. This is the
// non-amplification predicate for governance creation.
func (a AAV) SubsetOf(b AAV) bool {
	return a&^b == 0
}

// Status is the lifecycle state of an authority record.
type Status string

const (
	// StatusPending marks a governance-created record awaiting the next
	// epoch boundary before it becomes effective.
	StatusPending Status = "PENDING"
	// StatusActive marks an effective record consulted by admissibility.
	StatusActive Status = "ACTIVE"
	// StatusExpired is terminal: the record ran past its expiry epoch.
	StatusExpired Status = "EXPIRED"
	// StatusVoid is terminal: the record was destroyed by governance.
	StatusVoid Status = "VOID"
)

// Terminal reports whether s is a non-resurrective end state.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusVoid
}

// RenewalMetadata records the provenance of a renewal-minted authority.
type RenewalMetadata struct {
	PriorAuthorityID string
}

// CreationMetadata records the provenance of a governance-created authority.
type CreationMetadata struct {
	AdmittingAuthorityIDs []string
	Lineage               []string
}

// ExpiryMetadata is attached when a record reaches EXPIRED.
type ExpiryMetadata struct {
	ExpiredAtEpoch uint64
}

// DestructionMetadata is attached when a record reaches VOID.
type DestructionMetadata struct {
	DestroyedAtEpoch      uint64
	AdmittingAuthorityIDs []string
	GovernanceEventID     string
}

// AuthorityRecord is one grant of permission: a holder, an opaque resource
// scope compared byte-for-byte, a permitted-action bitset, and an epoch
// window. The AuthorityID is immutable and never reused across the lifetime
// of a kernel instance, including by records that are now EXPIRED or VOID.
type AuthorityRecord struct {
	AuthorityID   string
	HolderID      string
	ResourceScope string
	Status        Status
	AAV           AAV
	StartEpoch    uint64
	ExpiryEpoch   uint64

	// ConflictIDs back-references every conflict this authority
	// participates in, kept sorted for deterministic iteration.
	ConflictIDs []string

	// Provenance. At most one of Renewal/Creation is set (nil for direct
	// injection); Expiry or Destruction is added once the record is terminal.
	Renewal     *RenewalMetadata
	Creation    *CreationMetadata
	Expiry      *ExpiryMetadata
	Destruction *DestructionMetadata
}

// clone returns an independent deep copy of the record.
func (r *AuthorityRecord) clone() *AuthorityRecord {
	cp := *r
	cp.ConflictIDs = append([]string(nil), r.ConflictIDs...)
	if r.Renewal != nil {
		m := *r.Renewal
		cp.Renewal = &m
	}
	if r.Creation != nil {
		m := *r.Creation
		m.AdmittingAuthorityIDs = append([]string(nil), r.Creation.AdmittingAuthorityIDs...)
		m.Lineage = append([]string(nil), r.Creation.Lineage...)
		cp.Creation = &m
	}
	if r.Expiry != nil {
		m := *r.Expiry
		cp.Expiry = &m
	}
	if r.Destruction != nil {
		m := *r.Destruction
		m.AdmittingAuthorityIDs = append([]string(nil), r.Destruction.AdmittingAuthorityIDs...)
		cp.Destruction = &m
	}
	return &cp
}

func (r *AuthorityRecord) addConflictID(id string) {
	for _, existing := range r.ConflictIDs {
		if existing == id {
			return
		}
	}
	r.ConflictIDs = append(r.ConflictIDs, id)
	sort.Strings(r.ConflictIDs)
}

// ConflictStatus is the lifecycle state of a conflict record.
type ConflictStatus string

const (
	// ConflictOpenBinding blocks all actions referencing the scope.
	ConflictOpenBinding ConflictStatus = "OPEN_BINDING"
	// ConflictOpenNonbinding is historical: at least one participant left
	// ACTIVE status, so the conflict no longer blocks. The transition is
	// one-directional; a non-binding conflict never re-binds.
	ConflictOpenNonbinding ConflictStatus = "OPEN_NONBINDING"
)

// ConflictRecord is a structural disagreement about a scope: some ACTIVE
// authorities covering it permit a transformation and some do not. Conflicts
// are created lazily, assigned sequential IDs, and never deleted.
type ConflictRecord struct {
	ConflictID    string
	EpochDetected uint64
	ResourceScope string
	// AuthorityIDs is the frozen, sorted set of all participants, both
	// permitting and forbidding.
	AuthorityIDs []string
	Status       ConflictStatus

	// GovernanceActionType is set when the conflict arose from a governance
	// action rather than an ordinary admissibility check.
	GovernanceActionType GovernanceActionType
}

func (c *ConflictRecord) clone() *ConflictRecord {
	cp := *c
	cp.AuthorityIDs = append([]string(nil), c.AuthorityIDs...)
	return &cp
}

// DeadlockCause classifies why the kernel is deadlocked.
type DeadlockCause string

const (
	// DeadlockNone means no deadlock condition holds.
	DeadlockNone DeadlockCause = ""
	// DeadlockEmptyAuthority: no ACTIVE authorities remain and no conflict
	// was ever recorded.
	DeadlockEmptyAuthority DeadlockCause = "EMPTY_AUTHORITY"
	// DeadlockConflict: at least one OPEN_BINDING conflict exists.
	DeadlockConflict DeadlockCause = "CONFLICT"
	// DeadlockMixed: no ACTIVE authorities remain and the kernel has
	// conflict history.
	DeadlockMixed DeadlockCause = "MIXED"
)

// AuthorityState is the full kernel snapshot. StateID is the canonical
// SHA-256 of the snapshot and is recomputed after every mutation; it is the
// replay anchor stamped onto every emitted output.
type AuthorityState struct {
	CurrentEpoch       uint64
	Authorities        map[string]*AuthorityRecord
	PendingAuthorities map[string]*AuthorityRecord
	Conflicts          map[string]*ConflictRecord
	Deadlock           bool
	DeadlockCause      DeadlockCause
	StateID            string
}

// clone returns an independent deep copy of the snapshot.
func (s *AuthorityState) clone() *AuthorityState {
	cp := &AuthorityState{
		CurrentEpoch:       s.CurrentEpoch,
		Authorities:        make(map[string]*AuthorityRecord, len(s.Authorities)),
		PendingAuthorities: make(map[string]*AuthorityRecord, len(s.PendingAuthorities)),
		Conflicts:          make(map[string]*ConflictRecord, len(s.Conflicts)),
		Deadlock:           s.Deadlock,
		DeadlockCause:      s.DeadlockCause,
		StateID:            s.StateID,
	}
	for id, r := range s.Authorities {
		cp.Authorities[id] = r.clone()
	}
	for id, r := range s.PendingAuthorities {
		cp.PendingAuthorities[id] = r.clone()
	}
	for id, c := range s.Conflicts {
		cp.Conflicts[id] = c.clone()
	}
	return cp
}

// sortedIDs returns the keys of a record map in ascending order. Every
// iteration whose order affects output or hashing goes through this.
func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
