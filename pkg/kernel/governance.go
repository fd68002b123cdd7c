package kernel

import "sort"

// applyGovernance processes one governance action request. Cost is a
// conservative upper bound charged before any mutation, so a budget refusal
// can never land mid-mutation. The deadlock condition is re-checked after
// every processed action; exhaustion-converted events are not processed and
// skip the re-check.
func (k *Kernel) applyGovernance(run *batchRun, ev GovernanceActionRequest) error {
	if run.exhausted || !k.acct.Charge(k.cfg.Costs.Governance) {
		run.exhausted = true
		run.refuse(k, RefusalBoundExhausted, map[string]any{
			"event_id":    ev.EventID,
			"action_type": string(ev.ActionType),
		})
		return nil
	}

	var err error
	switch ev.ActionType {
	case GovernanceDestroyAuthority:
		k.governanceDestroy(run, ev)
	case GovernanceCreateAuthority:
		err = k.governanceCreate(run, ev)
	}
	if err != nil {
		return err
	}

	k.checkDeadlock(run)
	return nil
}

// governanceSupport partitions the ACTIVE coverage of a scope for one
// governance transformation. Admitting authorities are the ACTIVE initiators
// that hold the governance bit and cover the scope exactly; conflicting
// authorities are every ACTIVE coverer of the scope that lacks the bit.
// There is no explicit deny vote: absence of the bit is the disagreement
// signal.
func (k *Kernel) governanceSupport(initiatorIDs []string, scope string, bit Transformation) (admitting, conflicting []string) {
	initiators := append([]string(nil), initiatorIDs...)
	sort.Strings(initiators)

	for _, id := range initiators {
		rec, ok := k.state.Authorities[id]
		if !ok || rec.Status != StatusActive {
			continue
		}
		if rec.ResourceScope == scope && rec.AAV.Has(bit) {
			admitting = append(admitting, id)
		}
	}
	for _, id := range k.scopes.covering(scope) {
		if !k.state.Authorities[id].AAV.Has(bit) {
			conflicting = append(conflicting, id)
		}
	}
	return admitting, conflicting
}

// governanceDestroy voids a target authority on the strength of the
// initiators' grants. Nothing in the destroy path is fatal: a bad target is
// a refusal, not a protocol violation.
func (k *Kernel) governanceDestroy(run *batchRun, ev GovernanceActionRequest) {
	details := map[string]any{
		"event_id":            ev.EventID,
		"action_type":         string(ev.ActionType),
		"target_authority_id": ev.Params.TargetAuthorityID,
	}

	target, ok := k.state.Authorities[ev.Params.TargetAuthorityID]
	if !ok {
		if _, pending := k.state.PendingAuthorities[ev.Params.TargetAuthorityID]; pending {
			run.refuse(k, RefusalTargetNotActive, details)
			return
		}
		run.refuse(k, RefusalAuthorityNotFound, details)
		return
	}
	if target.Status != StatusActive {
		run.refuse(k, RefusalTargetNotActive, details)
		return
	}

	scope := target.ResourceScope
	if c := k.openBindingFor(scope); c != nil {
		details["conflict_id"] = c.ConflictID
		run.refuse(k, RefusalConflictBlocks, details)
		return
	}

	admitting, conflicting := k.governanceSupport(ev.InitiatorIDs, scope, k.cfg.DestroyTransformation)
	if len(admitting) == 0 {
		run.refuse(k, RefusalNoAuthority, details)
		return
	}
	if len(conflicting) > 0 {
		c := k.registerConflict(scope, append(admitting, conflicting...), ev.ActionType)
		k.rehash()
		details["conflict_id"] = c.ConflictID
		run.refuse(k, RefusalConflictBlocks, details)
		return
	}

	k.voidRecord(target, admitting, ev.EventID)
	k.rehash()
	run.emit(k, OutputAuthorityDestroyed, map[string]any{
		"event_id":                ev.EventID,
		"authority_id":            target.AuthorityID,
		"resource_scope":          scope,
		"admitting_authority_ids": append([]string{}, admitting...),
	})
	k.log.Info("authority destroyed",
		"authority_id", target.AuthorityID,
		"admitting", len(admitting))
}

// governanceCreate mints a new PENDING authority, active from the next
// epoch. Beyond the shared governance gates it enforces non-amplification
// (the new AAV must be a subset of the admitting union) and scope
// containment (the scope must byte-match the named basis authority, itself
// one of the admitting set). Reserved-bit and ID-reuse violations are
// fatal, exactly as in renewal.
func (k *Kernel) governanceCreate(run *batchRun, ev GovernanceActionRequest) error {
	p := ev.Params

	if p.AAV.HasReservedBits() {
		return fatalf(FailureAAVReservedBitSet, run.pendingIndex(),
			"created authority %s has reserved AAV bits set", p.NewAuthorityID)
	}
	if _, used := k.usedIDs[p.NewAuthorityID]; used {
		return fatalf(FailureAuthorityIDReuse, run.pendingIndex(),
			"authority ID %s already assigned", p.NewAuthorityID)
	}

	details := map[string]any{
		"event_id":         ev.EventID,
		"action_type":      string(ev.ActionType),
		"new_authority_id": p.NewAuthorityID,
		"resource_scope":   p.ResourceScope,
	}

	// The governed scope is the basis authority's scope; the requested scope
	// is compared to it after the admitting set is established. An
	// unresolvable basis leaves nothing to contain the new scope in.
	basis, ok := k.state.Authorities[p.ScopeBasisAuthorityID]
	if !ok || basis.Status != StatusActive {
		run.refuse(k, RefusalScopeNotCovered, details)
		return nil
	}
	scope := basis.ResourceScope

	if c := k.openBindingFor(scope); c != nil {
		details["conflict_id"] = c.ConflictID
		run.refuse(k, RefusalConflictBlocks, details)
		return nil
	}

	admitting, conflicting := k.governanceSupport(ev.InitiatorIDs, scope, k.cfg.CreateTransformation)
	if len(admitting) == 0 {
		run.refuse(k, RefusalNoAuthority, details)
		return nil
	}
	if len(conflicting) > 0 {
		c := k.registerConflict(scope, append(admitting, conflicting...), ev.ActionType)
		k.rehash()
		details["conflict_id"] = c.ConflictID
		run.refuse(k, RefusalConflictBlocks, details)
		return nil
	}

	var admittingUnion AAV
	for _, id := range admitting {
		admittingUnion |= k.state.Authorities[id].AAV
	}
	if !p.AAV.SubsetOf(admittingUnion) {
		run.refuse(k, RefusalAmplificationBlocked, details)
		return nil
	}

	basisAdmits := false
	for _, id := range admitting {
		if id == p.ScopeBasisAuthorityID {
			basisAdmits = true
		}
	}
	if !basisAdmits || p.ResourceScope != scope {
		run.refuse(k, RefusalScopeNotCovered, details)
		return nil
	}

	rec := &AuthorityRecord{
		AuthorityID:   p.NewAuthorityID,
		HolderID:      p.HolderID,
		ResourceScope: p.ResourceScope,
		Status:        StatusPending,
		AAV:           p.AAV,
		StartEpoch:    k.state.CurrentEpoch + 1,
		ExpiryEpoch:   p.ExpiryEpoch,
		Creation: &CreationMetadata{
			AdmittingAuthorityIDs: append([]string(nil), admitting...),
			Lineage:               append([]string(nil), p.Lineage...),
		},
	}
	k.usedIDs[rec.AuthorityID] = struct{}{}
	k.state.PendingAuthorities[rec.AuthorityID] = rec
	k.rehash()

	run.emit(k, OutputAuthorityCreated, map[string]any{
		"event_id":                ev.EventID,
		"authority_id":            rec.AuthorityID,
		"resource_scope":          rec.ResourceScope,
		"creation_epoch":          k.state.CurrentEpoch,
		"activation_epoch":        rec.StartEpoch,
		"admitting_authority_ids": append([]string{}, admitting...),
	})
	k.log.Info("authority created",
		"authority_id", rec.AuthorityID,
		"activation_epoch", rec.StartEpoch)
	return nil
}
