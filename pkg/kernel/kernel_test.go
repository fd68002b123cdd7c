package kernel

import (
	"io"
	"log/slog"
	"testing"
)

const (
	tExecute Transformation = 0
	tWrite   Transformation = 1
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestKernel(t *testing.T, seed ...AuthorityRecord) *Kernel {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = discardLogger()
	cfg.Seed = seed
	k, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func activeAuthority(id, scope string, aav AAV, expiry uint64) AuthorityRecord {
	return AuthorityRecord{
		AuthorityID:   id,
		HolderID:      "holder_" + id,
		ResourceScope: scope,
		Status:        StatusActive,
		AAV:           aav,
		StartEpoch:    0,
		ExpiryEpoch:   expiry,
	}
}

func TestKernel_ExecuteThenExpireThenDeadlock(t *testing.T) {
	t.Parallel()
	t.Log("Testing: single authority executes, expires at epoch boundary, kernel deadlocks empty")

	k := newTestKernel(t, activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 2))

	t.Log("Epoch 0: action request on scope:S/EXECUTE should execute")
	res, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		ActionRequestEvent{RequestID: "req-1", ResourceScope: "scope:S", TransformationType: tExecute},
	}})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}
	if len(res.Outputs) != 1 || res.Outputs[0].Type != OutputActionExecuted {
		t.Fatalf("expected single ACTION_EXECUTED, got %+v", res.Outputs)
	}
	if res.Outputs[0].EventIndex != 1 {
		t.Errorf("expected event index 1, got %d", res.Outputs[0].EventIndex)
	}

	t.Log("Advancing to epoch 3 (past expiry 2): VK-A1 must expire and EMPTY_AUTHORITY be declared")
	res, err = k.ProcessStepBatch(StepBatch{
		EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-1", NewEpoch: 3},
	})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}
	if len(res.Outputs) != 2 {
		t.Fatalf("expected expiry + deadlock outputs, got %+v", res.Outputs)
	}
	if res.Outputs[0].Type != OutputAuthorityExpired {
		t.Errorf("expected AUTHORITY_EXPIRED first, got %s", res.Outputs[0].Type)
	}
	if res.Outputs[1].Type != OutputDeadlockDeclared {
		t.Errorf("expected DEADLOCK_DECLARED second, got %s", res.Outputs[1].Type)
	}
	if res.Outputs[1].Details["cause"] != string(DeadlockEmptyAuthority) {
		t.Errorf("expected EMPTY_AUTHORITY cause, got %v", res.Outputs[1].Details["cause"])
	}
	if got := res.State.Authorities["VK-A1"].Status; got != StatusExpired {
		t.Errorf("expected VK-A1 EXPIRED, got %s", got)
	}

	t.Log("Same action request now: NO_AUTHORITY refusal under empty-authority deadlock")
	res, err = k.ProcessStepBatch(StepBatch{Events: []Event{
		ActionRequestEvent{RequestID: "req-2", ResourceScope: "scope:S", TransformationType: tExecute},
	}})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}
	// Batch-open check persists the deadlock, then the refusal, then the
	// post-event check persists it again.
	if len(res.Outputs) != 3 {
		t.Fatalf("expected persisted/refused/persisted, got %+v", res.Outputs)
	}
	if res.Outputs[0].Type != OutputDeadlockPersisted {
		t.Errorf("expected DEADLOCK_PERSISTED at batch open, got %s", res.Outputs[0].Type)
	}
	if res.Outputs[1].Type != OutputActionRefused ||
		res.Outputs[1].Details["reason"] != string(RefusalNoAuthority) {
		t.Errorf("expected NO_AUTHORITY refusal, got %+v", res.Outputs[1])
	}
	if res.Outputs[2].Type != OutputDeadlockPersisted {
		t.Errorf("expected DEADLOCK_PERSISTED after event, got %s", res.Outputs[2].Type)
	}
}

func TestKernel_RenewalEndsEmptyDeadlockWithinBatch(t *testing.T) {
	t.Parallel()
	t.Log("Testing: a renewal restoring an ACTIVE authority ends EMPTY_AUTHORITY deadlock before later events in the same batch")

	k := newTestKernel(t, activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 1))

	res, err := k.ProcessStepBatch(StepBatch{
		EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-1", NewEpoch: 2},
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	last := res.Outputs[len(res.Outputs)-1]
	if last.Type != OutputDeadlockDeclared ||
		last.Details["cause"] != string(DeadlockEmptyAuthority) {
		t.Fatalf("expected EMPTY_AUTHORITY declared after expiry, got %+v", last)
	}

	t.Log("One batch: renewal of the expired grant followed by an action request on its scope")
	res, err = k.ProcessStepBatch(StepBatch{Events: []Event{
		AuthorityRenewalRequest{
			NewAuthority:     activeAuthority("VK-A2", "scope:S", AAV(0).With(tExecute), 9),
			PriorAuthorityID: "VK-A1",
			RenewalEventID:   "ren-1",
		},
		ActionRequestEvent{RequestID: "req-1", ResourceScope: "scope:S", TransformationType: tExecute},
	}})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}

	if len(res.Outputs) != 3 {
		t.Fatalf("expected persisted/renewed/executed, got %+v", res.Outputs)
	}
	if res.Outputs[0].Type != OutputDeadlockPersisted {
		t.Errorf("expected DEADLOCK_PERSISTED at batch open, got %s", res.Outputs[0].Type)
	}
	if res.Outputs[1].Type != OutputAuthorityRenewed {
		t.Errorf("expected AUTHORITY_RENEWED, got %s", res.Outputs[1].Type)
	}
	if res.Outputs[2].Type != OutputActionExecuted {
		t.Errorf("expected ACTION_EXECUTED after the renewal ended the deadlock, got %+v", res.Outputs[2])
	}
	if res.State.Deadlock {
		t.Error("expected deadlock cleared by the renewal")
	}
}

func TestKernel_StructuralConflictIsIdempotentPerScope(t *testing.T) {
	t.Parallel()
	t.Log("Testing: permit/deny split registers one conflict; repeat request reuses it")

	k := newTestKernel(t,
		activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 10),
		activeAuthority("VK-A2", "scope:S", AAV(0).With(tWrite), 10),
	)

	res, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		ActionRequestEvent{RequestID: "req-1", ResourceScope: "scope:S", TransformationType: tExecute},
		ActionRequestEvent{RequestID: "req-2", ResourceScope: "scope:S", TransformationType: tExecute},
	}})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}

	t.Logf("Outputs: %d", len(res.Outputs))
	if len(res.Outputs) != 4 {
		t.Fatalf("expected refused/declared/refused/persisted, got %+v", res.Outputs)
	}
	if res.Outputs[0].Details["reason"] != string(RefusalConflictBlocks) {
		t.Errorf("first request: expected CONFLICT_BLOCKS, got %+v", res.Outputs[0])
	}
	if res.Outputs[1].Type != OutputDeadlockDeclared ||
		res.Outputs[1].Details["cause"] != string(DeadlockConflict) {
		t.Errorf("expected CONFLICT deadlock declared, got %+v", res.Outputs[1])
	}
	if res.Outputs[2].Details["reason"] != string(RefusalConflictBlocks) {
		t.Errorf("second request: expected CONFLICT_BLOCKS, got %+v", res.Outputs[2])
	}
	if res.Outputs[0].Details["conflict_id"] != res.Outputs[2].Details["conflict_id"] {
		t.Errorf("expected both refusals to cite the same conflict")
	}

	if len(res.State.Conflicts) != 1 {
		t.Fatalf("expected exactly one conflict record, got %d", len(res.State.Conflicts))
	}
	c := res.State.Conflicts["C:0001"]
	if c == nil || c.Status != ConflictOpenBinding {
		t.Fatalf("expected C:0001 OPEN_BINDING, got %+v", c)
	}
	if len(c.AuthorityIDs) != 2 {
		t.Errorf("expected both participants frozen on the conflict, got %v", c.AuthorityIDs)
	}
}

func TestKernel_ConflictDemotionOnExpiry(t *testing.T) {
	t.Parallel()
	t.Log("Testing: a participant expiring demotes OPEN_BINDING to OPEN_NONBINDING, never back")

	k := newTestKernel(t,
		activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 10),
		activeAuthority("VK-A2", "scope:S", AAV(0).With(tWrite), 1),
	)

	_, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		ActionRequestEvent{RequestID: "req-1", ResourceScope: "scope:S", TransformationType: tExecute},
	}})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}

	t.Log("Advancing past VK-A2 expiry; conflict should demote and the scope unblock")
	res, err := k.ProcessStepBatch(StepBatch{
		EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-1", NewEpoch: 2},
		Events: []Event{
			ActionRequestEvent{RequestID: "req-2", ResourceScope: "scope:S", TransformationType: tExecute},
		},
	})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}

	if got := res.State.Conflicts["C:0001"].Status; got != ConflictOpenNonbinding {
		t.Fatalf("expected OPEN_NONBINDING after participant expiry, got %s", got)
	}
	last := res.Outputs[len(res.Outputs)-1]
	if last.Type != OutputActionExecuted {
		t.Errorf("expected action to execute once conflict demoted, got %+v", last)
	}
}

func TestKernel_ReplayDeterminism(t *testing.T) {
	t.Parallel()
	t.Log("Testing: identical event sequences on fresh kernels yield identical hash streams")

	batches := []StepBatch{
		{Events: []Event{
			AuthorityInjectionEvent{Authority: activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute).With(55), 9), Nonce: "n1"},
			AuthorityInjectionEvent{Authority: activeAuthority("VK-A2", "scope:T", AAV(0).With(tWrite), 9), Nonce: "n2"},
			ActionRequestEvent{RequestID: "req-1", ResourceScope: "scope:S", TransformationType: tExecute},
		}},
		{EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-1", NewEpoch: 1}, Events: []Event{
			GovernanceActionRequest{
				EventID:      "gov-1",
				ActionType:   GovernanceCreateAuthority,
				InitiatorIDs: []string{"VK-A1"},
				Params: GovernanceParams{
					NewAuthorityID:        "VK-A3",
					ResourceScope:         "scope:S",
					ScopeBasisAuthorityID: "VK-A1",
					AAV:                   AAV(0).With(tExecute),
					ExpiryEpoch:           9,
				},
			},
			ActionRequestEvent{RequestID: "req-2", ResourceScope: "scope:T", TransformationType: tExecute},
		}},
		{EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-2", NewEpoch: 2}},
	}

	run := func() []string {
		k := newTestKernel(t)
		var hashes []string
		for _, b := range batches {
			res, err := k.ProcessStepBatch(b)
			if err != nil {
				t.Fatalf("ProcessStepBatch: %v", err)
			}
			for _, out := range res.Outputs {
				hashes = append(hashes, out.StateHash)
			}
			hashes = append(hashes, res.State.StateID)
		}
		return hashes
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("hash stream lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("hash stream diverges at %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestKernel_FatalEventLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	t.Log("Testing: a fatal-failing event aborts the batch with state_id unchanged")

	k := newTestKernel(t, activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 9))
	before := k.State().StateID

	_, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		AuthorityRenewalRequest{
			NewAuthority:   activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 9),
			RenewalEventID: "ren-1",
		},
	}})
	if err == nil {
		t.Fatal("expected AUTHORITY_ID_REUSE failure")
	}
	fe, ok := err.(*FailureError)
	if !ok || fe.Code != FailureAuthorityIDReuse {
		t.Fatalf("expected FailureError{AUTHORITY_ID_REUSE}, got %v", err)
	}
	if after := k.State().StateID; after != before {
		t.Errorf("state mutated across fatal event: %s -> %s", before, after)
	}
}

func TestKernel_TemporalRegressionIsFatal(t *testing.T) {
	t.Parallel()

	k := newTestKernel(t, activeAuthority("VK-A1", "scope:S", AAV(0), 9))
	if _, err := k.ProcessStepBatch(StepBatch{
		EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-1", NewEpoch: 5},
	}); err != nil {
		t.Fatalf("advance to 5: %v", err)
	}

	_, err := k.ProcessStepBatch(StepBatch{
		EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-2", NewEpoch: 5},
	})
	fe, ok := err.(*FailureError)
	if !ok || fe.Code != FailureTemporalRegression {
		t.Fatalf("expected TEMPORAL_REGRESSION, got %v", err)
	}
}

func TestKernel_NonResurrection(t *testing.T) {
	t.Parallel()
	t.Log("Testing: terminal records never return to ACTIVE and their IDs are never reusable")

	k := newTestKernel(t, activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 0))
	if _, err := k.ProcessStepBatch(StepBatch{
		EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-1", NewEpoch: 1},
	}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	t.Log("Renewal against the expired prior mints a fresh ID; the prior is untouched")
	res, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		AuthorityRenewalRequest{
			NewAuthority:     activeAuthority("VK-A2", "scope:S", AAV(0).With(tExecute), 9),
			PriorAuthorityID: "VK-A1",
			RenewalEventID:   "ren-1",
		},
	}})
	if err != nil {
		t.Fatalf("renewal: %v", err)
	}
	if res.State.Authorities["VK-A1"].Status != StatusExpired {
		t.Error("prior record must stay EXPIRED after renewal")
	}
	a2 := res.State.Authorities["VK-A2"]
	if a2 == nil || a2.Status != StatusActive {
		t.Fatalf("expected VK-A2 ACTIVE, got %+v", a2)
	}
	if a2.Renewal == nil || a2.Renewal.PriorAuthorityID != "VK-A1" {
		t.Errorf("expected renewal provenance pointing at VK-A1, got %+v", a2.Renewal)
	}

	t.Log("Re-minting the expired ID must fail fatally")
	_, err = k.ProcessStepBatch(StepBatch{Events: []Event{
		AuthorityInjectionEvent{Authority: activeAuthority("VK-A1", "scope:T", AAV(0), 9)},
	}})
	fe, ok := err.(*FailureError)
	if !ok || fe.Code != FailureAuthorityIDReuse {
		t.Fatalf("expected AUTHORITY_ID_REUSE, got %v", err)
	}
}

func TestKernel_RenewalPriorNotFoundIsFatal(t *testing.T) {
	t.Parallel()

	k := newTestKernel(t)
	_, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		AuthorityRenewalRequest{
			NewAuthority:     activeAuthority("VK-A1", "scope:S", AAV(0), 9),
			PriorAuthorityID: "VK-missing",
			RenewalEventID:   "ren-1",
		},
	}})
	fe, ok := err.(*FailureError)
	if !ok || fe.Code != FailurePriorAuthorityNotFound {
		t.Fatalf("expected PRIOR_AUTHORITY_NOT_FOUND, got %v", err)
	}
}

func TestKernel_ReservedAAVBitIsFatal(t *testing.T) {
	t.Parallel()

	k := newTestKernel(t)
	bad := activeAuthority("VK-A1", "scope:S", AAV(1)<<60, 9)
	_, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		AuthorityInjectionEvent{Authority: bad},
	}})
	fe, ok := err.(*FailureError)
	if !ok || fe.Code != FailureAAVReservedBitSet {
		t.Fatalf("expected AAV_RESERVED_BIT_SET, got %v", err)
	}
}

func TestKernel_InjectionConsumesIndexWithoutOutput(t *testing.T) {
	t.Parallel()

	k := newTestKernel(t)
	res, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		AuthorityInjectionEvent{Authority: activeAuthority("VK-A1", "scope:S", AAV(0).With(tExecute), 9)},
		ActionRequestEvent{RequestID: "req-1", ResourceScope: "scope:S", TransformationType: tExecute},
	}})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}
	// The empty kernel declares deadlock at batch open, so index 1 belongs
	// to DEADLOCK_DECLARED and the injection trace lands at index 2.
	if len(res.Outputs) != 2 || res.Outputs[0].Type != OutputDeadlockDeclared || res.Outputs[0].EventIndex != 1 {
		t.Fatalf("expected deadlock declared at index 1, got %+v", res.Outputs)
	}
	if len(res.Trace) != 1 || res.Trace[0].EventIndex != 2 {
		t.Fatalf("expected injection trace at index 2, got %+v", res.Trace)
	}
	if res.Outputs[1].Type != OutputActionExecuted || res.Outputs[1].EventIndex != 3 {
		t.Fatalf("expected action executed at index 3, got %+v", res.Outputs[1])
	}
}

func TestKernel_PendingActivatesAtEpochBoundary(t *testing.T) {
	t.Parallel()
	t.Log("Testing: PENDING authorities become ACTIVE only at the next epoch boundary")

	pending := activeAuthority("VK-P1", "scope:S", AAV(0).With(tExecute), 9)
	pending.Status = StatusPending
	k := newTestKernel(t, pending)

	res, err := k.ProcessStepBatch(StepBatch{Events: []Event{
		ActionRequestEvent{RequestID: "req-1", ResourceScope: "scope:S", TransformationType: tExecute},
	}})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}
	// A pending-only kernel has zero ACTIVE authorities: empty deadlock.
	if res.Outputs[0].Type != OutputDeadlockDeclared {
		t.Fatalf("expected empty-authority deadlock before activation, got %+v", res.Outputs[0])
	}

	res, err = k.ProcessStepBatch(StepBatch{
		EpochAdvancement: &EpochAdvancementRequest{EventID: "adv-1", NewEpoch: 1},
		Events: []Event{
			ActionRequestEvent{RequestID: "req-2", ResourceScope: "scope:S", TransformationType: tExecute},
		},
	})
	if err != nil {
		t.Fatalf("ProcessStepBatch: %v", err)
	}
	last := res.Outputs[len(res.Outputs)-1]
	if last.Type != OutputActionExecuted {
		t.Fatalf("expected execution after activation, got %+v", last)
	}
	if res.State.Authorities["VK-P1"].Status != StatusActive {
		t.Error("expected VK-P1 ACTIVE after epoch boundary")
	}
	if len(res.State.PendingAuthorities) != 0 {
		t.Error("expected pending map drained at epoch boundary")
	}
}
