package kernel

import (
	"fmt"
	"sort"
)

// nextConflictID mints the next sequential conflict ID (C:0001, C:0002, …).
// IDs are never reused; the counter lives on the kernel instance so separate
// kernels cannot interfere.
func (k *Kernel) nextConflictID() string {
	k.conflictSeq++
	return fmt.Sprintf("C:%04d", k.conflictSeq)
}

// openBindingFor returns the OPEN_BINDING conflict covering scope, if any.
// At most one exists per scope: registration is idempotent while a binding
// conflict is open.
func (k *Kernel) openBindingFor(scope string) *ConflictRecord {
	for _, id := range sortedIDs(k.state.Conflicts) {
		c := k.state.Conflicts[id]
		if c.Status == ConflictOpenBinding && c.ResourceScope == scope {
			return c
		}
	}
	return nil
}

// openBindingCount returns the number of OPEN_BINDING conflicts.
func (k *Kernel) openBindingCount() int {
	n := 0
	for _, c := range k.state.Conflicts {
		if c.Status == ConflictOpenBinding {
			n++
		}
	}
	return n
}

// everHadConflict reports whether any conflict was ever registered.
// Conflicts are never deleted, so map occupancy is the full history.
func (k *Kernel) everHadConflict() bool {
	return len(k.state.Conflicts) > 0
}

// registerConflict records a new OPEN_BINDING conflict over the given
// participants and wires the back-references. Participants are frozen
// sorted at registration.
func (k *Kernel) registerConflict(scope string, participants []string, govType GovernanceActionType) *ConflictRecord {
	ids := append([]string(nil), participants...)
	sort.Strings(ids)

	c := &ConflictRecord{
		ConflictID:           k.nextConflictID(),
		EpochDetected:        k.state.CurrentEpoch,
		ResourceScope:        scope,
		AuthorityIDs:         ids,
		Status:               ConflictOpenBinding,
		GovernanceActionType: govType,
	}
	k.state.Conflicts[c.ConflictID] = c

	for _, id := range ids {
		if rec, ok := k.state.Authorities[id]; ok {
			rec.addConflictID(c.ConflictID)
		}
	}

	k.log.Debug("conflict registered",
		"conflict_id", c.ConflictID,
		"scope", scope,
		"participants", len(ids))
	return c
}

// demoteConflictsOf flips every OPEN_BINDING conflict the record
// participates in to OPEN_NONBINDING. A participant leaving ACTIVE status is
// the only demotion trigger, and the flip is one-directional.
func (k *Kernel) demoteConflictsOf(rec *AuthorityRecord) {
	for _, cid := range rec.ConflictIDs {
		c, ok := k.state.Conflicts[cid]
		if !ok || c.Status != ConflictOpenBinding {
			continue
		}
		c.Status = ConflictOpenNonbinding
		k.log.Debug("conflict demoted",
			"conflict_id", c.ConflictID,
			"departed_authority", rec.AuthorityID)
	}
}
