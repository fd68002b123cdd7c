package kernel

// applyActionRequest evaluates one non-governance action request.
//
// Check order is load-bearing for determinism:
//  1. budget exhaustion converts the event without processing it
//  2. EMPTY_AUTHORITY deadlock refuses before scope lookup; only a renewal
//     or governance creation can end that deadlock, so evaluating the scope
//     would be wasted work with a fixed answer
//  3. an existing OPEN_BINDING conflict on the scope refuses without
//     re-evaluating permits; open conflicts block until a participant
//     leaves ACTIVE status
//  4. scope lookup, permit/deny partition, conflict registration, execute
func (k *Kernel) applyActionRequest(run *batchRun, ev ActionRequestEvent) {
	details := map[string]any{
		"request_id":          ev.RequestID,
		"resource_scope":      ev.ResourceScope,
		"transformation_type": uint8(ev.TransformationType),
	}

	if run.exhausted || !k.acct.Charge(k.cfg.Costs.ActionRequest) {
		run.exhausted = true
		run.refuse(k, RefusalBoundExhausted, details)
		return
	}

	if k.state.Deadlock {
		switch k.state.DeadlockCause {
		case DeadlockEmptyAuthority:
			run.refuse(k, RefusalNoAuthority, details)
			k.checkDeadlock(run)
			return
		case DeadlockMixed:
			run.refuse(k, RefusalDeadlockState, details)
			k.checkDeadlock(run)
			return
		}
	}

	if c := k.openBindingFor(ev.ResourceScope); c != nil {
		details["conflict_id"] = c.ConflictID
		run.refuse(k, RefusalConflictBlocks, details)
		k.checkDeadlock(run)
		return
	}

	matches := k.activeRecords(ev.ResourceScope)
	if len(matches) == 0 {
		run.refuse(k, RefusalNoAuthority, details)
		k.checkDeadlock(run)
		return
	}

	var permits, denies []string
	for _, rec := range matches {
		if rec.AAV.Has(ev.TransformationType) {
			permits = append(permits, rec.AuthorityID)
		} else {
			denies = append(denies, rec.AuthorityID)
		}
	}

	switch {
	case len(permits) > 0 && len(denies) > 0:
		c := k.registerConflict(ev.ResourceScope, append(permits, denies...), "")
		k.rehash()
		details["conflict_id"] = c.ConflictID
		run.refuse(k, RefusalConflictBlocks, details)
	case len(permits) == 0:
		// Unanimous absence of the bit is no structural conflict; it is
		// simply the lack of any authority permitting the transformation.
		run.refuse(k, RefusalNoAuthority, details)
	default:
		run.emit(k, OutputActionExecuted, map[string]any{
			"request_id":               ev.RequestID,
			"resource_scope":           ev.ResourceScope,
			"transformation_type":      uint8(ev.TransformationType),
			"permitting_authority_ids": append([]string{}, permits...),
		})
	}

	k.checkDeadlock(run)
}
