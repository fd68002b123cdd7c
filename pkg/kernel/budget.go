package kernel

// CostTable fixes the instruction cost of each kernel operation. Governance
// cost is a conservative upper bound across the action's internal sub-steps,
// charged and checked before any mutation so a budget refusal can never land
// mid-mutation.
type CostTable struct {
	Injection     int64
	Renewal       int64
	Governance    int64
	ActionRequest int64
}

// DefaultCostTable returns the standard operation costs.
func DefaultCostTable() CostTable {
	return CostTable{
		Injection:     1,
		Renewal:       2,
		Governance:    8,
		ActionRequest: 1,
	}
}

// Accountant meters the per-epoch instruction budget. The budget is reset
// exactly once per epoch advancement and only ever decreases in between.
// There is no rollback: instructions consumed by an event stay consumed even
// if the event is later refused.
type Accountant struct {
	limit     int64
	remaining int64
}

// NewAccountant returns an accountant with a full budget of limit.
func NewAccountant(limit int64) *Accountant {
	return &Accountant{limit: limit, remaining: limit}
}

// Reset restores the full budget. Called at each epoch advancement.
func (a *Accountant) Reset() {
	a.remaining = a.limit
}

// Remaining returns the unconsumed budget.
func (a *Accountant) Remaining() int64 {
	return a.remaining
}

// Charge deducts cost if the remaining budget covers it and reports whether
// the deduction happened. A false return deducts nothing; the caller
// converts the operation into a BOUND_EXHAUSTED refusal.
func (a *Accountant) Charge(cost int64) bool {
	if cost > a.remaining {
		return false
	}
	a.remaining -= cost
	return true
}

// Consume deducts cost unconditionally, saturating at zero. Used for the
// setup sub-phases (injection, renewal), which are never converted into
// exhaustion refusals but still draw down the epoch budget.
func (a *Accountant) Consume(cost int64) {
	a.remaining -= cost
	if a.remaining < 0 {
		a.remaining = 0
	}
}
