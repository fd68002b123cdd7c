package kernel

// applyInjection installs a fully-formed authority record. Setup-only: it
// consumes an event index and leaves a trace entry but emits no output.
// Reserved AAV bits and ID reuse are fatal even here; a trusted harness that
// re-mints an ID would break non-resurrection.
func (k *Kernel) applyInjection(run *batchRun, ev AuthorityInjectionEvent) error {
	rec := ev.Authority.clone()

	if rec.AAV.HasReservedBits() {
		return fatalf(FailureAAVReservedBitSet, run.pendingIndex(),
			"injected authority %s has reserved AAV bits set", rec.AuthorityID)
	}
	if _, used := k.usedIDs[rec.AuthorityID]; used {
		return fatalf(FailureAuthorityIDReuse, run.pendingIndex(),
			"authority ID %s already assigned", rec.AuthorityID)
	}

	k.acct.Consume(k.cfg.Costs.Injection)
	k.usedIDs[rec.AuthorityID] = struct{}{}
	k.installRecord(rec)
	k.rehash()

	run.traceStep("authority injected", rec.AuthorityID)
	k.checkDeadlock(run)
	return nil
}

// applyRenewal mints a brand-new ACTIVE authority. The prior record, when
// named, must exist — but existence is the only check: the new record
// inherits nothing and the prior record is never touched. Renewal is
// synchronous; unlike governance creation there is no PENDING stage.
func (k *Kernel) applyRenewal(run *batchRun, ev AuthorityRenewalRequest) error {
	rec := ev.NewAuthority.clone()

	if rec.AAV.HasReservedBits() {
		return fatalf(FailureAAVReservedBitSet, run.pendingIndex(),
			"renewal authority %s has reserved AAV bits set", rec.AuthorityID)
	}
	if _, used := k.usedIDs[rec.AuthorityID]; used {
		return fatalf(FailureAuthorityIDReuse, run.pendingIndex(),
			"authority ID %s already assigned", rec.AuthorityID)
	}
	if ev.PriorAuthorityID != "" {
		_, inCurrent := k.state.Authorities[ev.PriorAuthorityID]
		_, inPending := k.state.PendingAuthorities[ev.PriorAuthorityID]
		if !inCurrent && !inPending {
			return fatalf(FailurePriorAuthorityNotFound, run.pendingIndex(),
				"prior authority %s not found", ev.PriorAuthorityID)
		}
		rec.Renewal = &RenewalMetadata{PriorAuthorityID: ev.PriorAuthorityID}
	}

	k.acct.Consume(k.cfg.Costs.Renewal)
	k.usedIDs[rec.AuthorityID] = struct{}{}
	k.insertActive(rec)
	k.rehash()

	run.emit(k, OutputAuthorityRenewed, map[string]any{
		"authority_id":       rec.AuthorityID,
		"prior_authority_id": ev.PriorAuthorityID,
		"renewal_event_id":   ev.RenewalEventID,
	})
	k.log.Debug("authority renewed",
		"authority_id", rec.AuthorityID,
		"prior_authority_id", ev.PriorAuthorityID)
	k.checkDeadlock(run)
	return nil
}
