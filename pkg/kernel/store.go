package kernel

import "sort"

// scopeIndex maps a resource scope to the sorted IDs of the ACTIVE
// authorities covering it. It is a kernel-private derived cache, maintained
// transactionally alongside every status transition: insert on entry to
// ACTIVE, remove on exit. It is never serialized and never rebuilt lazily,
// so it cannot diverge from the authoritative map.
type scopeIndex map[string][]string

func (idx scopeIndex) insert(scope, authorityID string) {
	ids := idx[scope]
	pos := sort.SearchStrings(ids, authorityID)
	if pos < len(ids) && ids[pos] == authorityID {
		return
	}
	ids = append(ids, "")
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = authorityID
	idx[scope] = ids
}

func (idx scopeIndex) remove(scope, authorityID string) {
	ids := idx[scope]
	pos := sort.SearchStrings(ids, authorityID)
	if pos >= len(ids) || ids[pos] != authorityID {
		return
	}
	ids = append(ids[:pos], ids[pos+1:]...)
	if len(ids) == 0 {
		delete(idx, scope)
	} else {
		idx[scope] = ids
	}
}

// covering returns the sorted ACTIVE authority IDs for a scope. The scope is
// opaque: two scopes match iff byte-for-byte identical, so a plain map
// lookup is the whole matching algorithm.
func (idx scopeIndex) covering(scope string) []string {
	return idx[scope]
}

// insertActive places a record into the authorities map as ACTIVE and
// indexes its scope. The ID must already be registered in usedIDs.
func (k *Kernel) insertActive(rec *AuthorityRecord) {
	rec.Status = StatusActive
	k.state.Authorities[rec.AuthorityID] = rec
	k.scopes.insert(rec.ResourceScope, rec.AuthorityID)
}

// expireRecord moves an ACTIVE record to EXPIRED, unindexes it, attaches
// expiry metadata, and demotes its open-binding conflicts.
func (k *Kernel) expireRecord(rec *AuthorityRecord) {
	rec.Status = StatusExpired
	rec.Expiry = &ExpiryMetadata{ExpiredAtEpoch: k.state.CurrentEpoch}
	k.scopes.remove(rec.ResourceScope, rec.AuthorityID)
	k.demoteConflictsOf(rec)
}

// voidRecord moves an ACTIVE record to VOID, unindexes it, attaches
// destruction metadata, and demotes its open-binding conflicts.
func (k *Kernel) voidRecord(rec *AuthorityRecord, admitting []string, eventID string) {
	rec.Status = StatusVoid
	rec.Destruction = &DestructionMetadata{
		DestroyedAtEpoch:      k.state.CurrentEpoch,
		AdmittingAuthorityIDs: append([]string(nil), admitting...),
		GovernanceEventID:     eventID,
	}
	k.scopes.remove(rec.ResourceScope, rec.AuthorityID)
	k.demoteConflictsOf(rec)
}

// activeCount returns the number of ACTIVE authorities.
func (k *Kernel) activeCount() int {
	n := 0
	for _, rec := range k.state.Authorities {
		if rec.Status == StatusActive {
			n++
		}
	}
	return n
}

// activeRecords resolves the scope index entries for a scope into records.
func (k *Kernel) activeRecords(scope string) []*AuthorityRecord {
	ids := k.scopes.covering(scope)
	recs := make([]*AuthorityRecord, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, k.state.Authorities[id])
	}
	return recs
}
