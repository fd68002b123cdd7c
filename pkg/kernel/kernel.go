package kernel

import (
	"log/slog"
)

// Config contains options for the Kernel.
type Config struct {
	// Logger for structured kernel logging. If nil, uses slog.Default().
	Logger *slog.Logger

	// InstructionBudget is the consumable per-epoch instruction budget.
	// Zero selects DefaultInstructionBudget.
	InstructionBudget int64

	// Costs fixes per-operation instruction costs. The zero value selects
	// DefaultCostTable.
	Costs CostTable

	// DestroyTransformation and CreateTransformation name the AAV bits an
	// initiator must hold to admit the corresponding governance action.
	// Assigned by the constitution.
	DestroyTransformation Transformation
	CreateTransformation  Transformation

	// Seed is the initial authority set, consumed once at construction.
	Seed []AuthorityRecord
}

// DefaultInstructionBudget is the per-epoch budget when none is configured.
const DefaultInstructionBudget int64 = 256

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		InstructionBudget:     DefaultInstructionBudget,
		Costs:                 DefaultCostTable(),
		DestroyTransformation: 54,
		CreateTransformation:  55,
	}
}

// Kernel is the authority kernel instance. It exclusively owns its
// AuthorityState; callers interact only through the event API and see
// deep-copied snapshots. All counters (event index, conflict sequence) are
// instance state, so independent kernels never interfere.
type Kernel struct {
	log   *slog.Logger
	cfg   Config
	state *AuthorityState

	// usedIDs is the append-only set of every authority ID ever assigned,
	// including by records now EXPIRED or VOID. Uniqueness is checked here,
	// not against current map keys; that is what makes renewal
	// non-resurrective.
	usedIDs map[string]struct{}

	scopes      scopeIndex
	conflictSeq int
	acct        *Accountant
}

// New constructs a kernel, validates and installs the seed authorities, and
// computes the initial state hash. Seed records with reserved AAV bits or
// duplicate IDs return a FailureError: they are construction errors, not
// refusals.
func New(cfg Config) (*Kernel, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InstructionBudget == 0 {
		cfg.InstructionBudget = DefaultInstructionBudget
	}
	if cfg.Costs == (CostTable{}) {
		cfg.Costs = DefaultCostTable()
	}

	k := &Kernel{
		log: logger,
		cfg: cfg,
		state: &AuthorityState{
			Authorities:        map[string]*AuthorityRecord{},
			PendingAuthorities: map[string]*AuthorityRecord{},
			Conflicts:          map[string]*ConflictRecord{},
		},
		usedIDs: map[string]struct{}{},
		scopes:  scopeIndex{},
		acct:    NewAccountant(cfg.InstructionBudget),
	}

	for i := range cfg.Seed {
		rec := cfg.Seed[i].clone()
		if rec.AAV.HasReservedBits() {
			return nil, fatalf(FailureAAVReservedBitSet, 0,
				"seed authority %s has reserved AAV bits set", rec.AuthorityID)
		}
		if _, used := k.usedIDs[rec.AuthorityID]; used {
			return nil, fatalf(FailureAuthorityIDReuse, 0,
				"seed authority ID %s already assigned", rec.AuthorityID)
		}
		k.usedIDs[rec.AuthorityID] = struct{}{}
		k.installRecord(rec)
	}
	k.rehash()

	logger.Debug("kernel constructed",
		"seed_authorities", len(cfg.Seed),
		"instruction_budget", cfg.InstructionBudget,
		"state_id", k.state.StateID)
	return k, nil
}

// installRecord places a validated record according to its declared status.
// Terminal records are stored unindexed; PENDING records await the next
// epoch boundary; everything else becomes ACTIVE.
func (k *Kernel) installRecord(rec *AuthorityRecord) {
	switch {
	case rec.Status == StatusPending:
		k.state.PendingAuthorities[rec.AuthorityID] = rec
	case rec.Status.Terminal():
		k.state.Authorities[rec.AuthorityID] = rec
	default:
		k.insertActive(rec)
	}
}

// State returns a deep-copied snapshot of the current authority state.
func (k *Kernel) State() *AuthorityState {
	return k.state.clone()
}

// BudgetRemaining returns the unconsumed instruction budget for this epoch.
func (k *Kernel) BudgetRemaining() int64 {
	return k.acct.Remaining()
}

// batchRun accumulates the outputs, trace, and event-index counter of one
// step batch. Indices start at 1 and every kernel step (output or
// trace-only) consumes exactly one.
type batchRun struct {
	outputs   []Output
	trace     []TraceEntry
	nextIndex int
	exhausted bool
}

func (r *batchRun) index() int {
	r.nextIndex++
	return r.nextIndex
}

// pendingIndex is the index the next step would consume. Fatal failures
// report it without consuming it.
func (r *batchRun) pendingIndex() int {
	return r.nextIndex + 1
}

func (r *batchRun) emit(k *Kernel, t OutputType, details map[string]any) {
	r.outputs = append(r.outputs, Output{
		Type:       t,
		EventIndex: r.index(),
		StateHash:  k.state.StateID,
		Details:    details,
	})
}

func (r *batchRun) refuse(k *Kernel, reason RefusalReason, details map[string]any) {
	details["reason"] = string(reason)
	r.emit(k, OutputActionRefused, details)
}

func (r *batchRun) traceStep(note, eventID string) {
	r.trace = append(r.trace, TraceEntry{
		EventIndex: r.index(),
		Note:       note,
		EventID:    eventID,
	})
}

// ProcessStepBatch processes one step batch to completion.
//
// Order: epoch advancement (if present), deadlock check, then the phase-2
// sub-phases — injection, renewal, governance destroy, governance create,
// action requests — with deadlock re-checked after every processed event,
// so a renewal or injection that restores an ACTIVE authority ends an
// EMPTY_AUTHORITY deadlock before later events in the same batch are
// evaluated. A fatal FailureError aborts the
// batch at the offending event with no mutation from that event; earlier
// events' effects stand.
func (k *Kernel) ProcessStepBatch(batch StepBatch) (*BatchResult, error) {
	run := &batchRun{}

	if adv := batch.EpochAdvancement; adv != nil {
		if err := k.advanceEpoch(run, adv); err != nil {
			return nil, err
		}
	}

	k.checkDeadlock(run)

	injections, renewals, destroys, creates, actions := partition(batch.Events)

	for _, ev := range injections {
		if err := k.applyInjection(run, ev); err != nil {
			return nil, err
		}
	}
	for _, ev := range renewals {
		if err := k.applyRenewal(run, ev); err != nil {
			return nil, err
		}
	}
	for _, ev := range destroys {
		if err := k.applyGovernance(run, ev); err != nil {
			return nil, err
		}
	}
	for _, ev := range creates {
		if err := k.applyGovernance(run, ev); err != nil {
			return nil, err
		}
	}
	for _, ev := range actions {
		k.applyActionRequest(run, ev)
	}

	k.log.Debug("step batch processed",
		"outputs", len(run.outputs),
		"trace_entries", len(run.trace),
		"state_id", k.state.StateID)

	return &BatchResult{
		Outputs: run.outputs,
		Trace:   run.trace,
		State:   k.state.clone(),
	}, nil
}

// advanceEpoch validates and applies an epoch advancement: budget reset,
// pending activation in sorted-ID order, then eager expiry in sorted-ID
// order, each expiry demoting the open-binding conflicts it participates in.
func (k *Kernel) advanceEpoch(run *batchRun, adv *EpochAdvancementRequest) error {
	if adv.NewEpoch <= k.state.CurrentEpoch {
		return fatalf(FailureTemporalRegression, run.pendingIndex(),
			"epoch %d does not advance current epoch %d", adv.NewEpoch, k.state.CurrentEpoch)
	}

	run.traceStep("epoch advanced", adv.EventID)
	k.acct.Reset()

	for _, id := range sortedIDs(k.state.PendingAuthorities) {
		rec := k.state.PendingAuthorities[id]
		delete(k.state.PendingAuthorities, id)
		k.insertActive(rec)
		k.log.Debug("pending authority activated", "authority_id", id)
	}

	k.state.CurrentEpoch = adv.NewEpoch
	k.rehash()

	for _, id := range sortedIDs(k.state.Authorities) {
		rec := k.state.Authorities[id]
		if rec.Status != StatusActive || rec.ExpiryEpoch >= k.state.CurrentEpoch {
			continue
		}
		k.expireRecord(rec)
		k.rehash()
		run.emit(k, OutputAuthorityExpired, map[string]any{
			"authority_id":     rec.AuthorityID,
			"resource_scope":   rec.ResourceScope,
			"expired_at_epoch": k.state.CurrentEpoch,
		})
	}
	return nil
}

// checkDeadlock reclassifies the deadlock condition and emits
// DEADLOCK_DECLARED on entry or DEADLOCK_PERSISTED while the condition
// holds. Clearing is silent: time alone never clears a deadlock, but a
// state change (a conflict demotion, a new ACTIVE authority) does, and the
// next check simply stops emitting.
func (k *Kernel) checkDeadlock(run *batchRun) {
	cause := ClassifyDeadlock(k.activeCount(), k.openBindingCount(), k.everHadConflict())
	wasDeadlocked := k.state.Deadlock

	if cause == DeadlockNone {
		if wasDeadlocked {
			k.state.Deadlock = false
			k.state.DeadlockCause = DeadlockNone
			k.rehash()
		}
		return
	}

	if !wasDeadlocked || k.state.DeadlockCause != cause {
		k.state.Deadlock = true
		k.state.DeadlockCause = cause
		k.rehash()
	}

	outputType := OutputDeadlockPersisted
	if !wasDeadlocked {
		outputType = OutputDeadlockDeclared
		k.log.Info("deadlock declared", "cause", string(cause))
	}
	run.emit(k, outputType, map[string]any{
		"cause": string(cause),
	})
}
