package kernel

import (
	"fmt"

	"github.com/macterra/Axio-sub003/pkg/canon"
)

// hashable returns the canonical-encoder view of a record. Only canon-safe
// value types appear: strings, unsigned integers, booleans, string slices.
func (r *AuthorityRecord) hashable() map[string]any {
	m := map[string]any{
		"authority_id":   r.AuthorityID,
		"holder_id":      r.HolderID,
		"resource_scope": r.ResourceScope,
		"status":         string(r.Status),
		"aav":            uint64(r.AAV),
		"start_epoch":    r.StartEpoch,
		"expiry_epoch":   r.ExpiryEpoch,
		"conflict_ids":   append([]string{}, r.ConflictIDs...),
	}
	prov := map[string]any{}
	if r.Renewal != nil {
		prov["renewal"] = map[string]any{
			"prior_authority_id": r.Renewal.PriorAuthorityID,
		}
	}
	if r.Creation != nil {
		prov["creation"] = map[string]any{
			"admitting_authority_ids": append([]string{}, r.Creation.AdmittingAuthorityIDs...),
			"lineage":                 append([]string{}, r.Creation.Lineage...),
		}
	}
	if r.Expiry != nil {
		prov["expiry"] = map[string]any{
			"expired_at_epoch": r.Expiry.ExpiredAtEpoch,
		}
	}
	if r.Destruction != nil {
		prov["destruction"] = map[string]any{
			"destroyed_at_epoch":      r.Destruction.DestroyedAtEpoch,
			"admitting_authority_ids": append([]string{}, r.Destruction.AdmittingAuthorityIDs...),
			"governance_event_id":     r.Destruction.GovernanceEventID,
		}
	}
	m["provenance"] = prov
	return m
}

func (c *ConflictRecord) hashable() map[string]any {
	return map[string]any{
		"conflict_id":            c.ConflictID,
		"epoch_detected":         c.EpochDetected,
		"resource_scope":         c.ResourceScope,
		"authority_ids":          append([]string{}, c.AuthorityIDs...),
		"status":                 string(c.Status),
		"governance_action_type": string(c.GovernanceActionType),
	}
}

// hashable returns the full-snapshot view that StateID is computed over.
// StateID itself is excluded; everything else in the snapshot participates.
func (s *AuthorityState) hashable() map[string]any {
	authorities := map[string]any{}
	for id, rec := range s.Authorities {
		authorities[id] = rec.hashable()
	}
	pending := map[string]any{}
	for id, rec := range s.PendingAuthorities {
		pending[id] = rec.hashable()
	}
	conflicts := map[string]any{}
	for id, c := range s.Conflicts {
		conflicts[id] = c.hashable()
	}
	return map[string]any{
		"current_epoch":       s.CurrentEpoch,
		"authorities":         authorities,
		"pending_authorities": pending,
		"conflicts":           conflicts,
		"deadlock":            s.Deadlock,
		"deadlock_cause":      string(s.DeadlockCause),
	}
}

// rehash recomputes StateID from the current snapshot. Every state-mutating
// step calls this before stamping an output. Encoding cannot fail for
// snapshots built by this package (no floats can enter them), so a failure
// here is a programming error, not a runtime condition.
func (k *Kernel) rehash() {
	h, err := canon.HashHex(k.state.hashable())
	if err != nil {
		panic(fmt.Sprintf("kernel: state snapshot not canonically encodable: %v", err))
	}
	k.state.StateID = h
}
