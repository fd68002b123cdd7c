// Package kernel implements the deterministic authority kernel: a
// single-threaded state machine that grants, conflicts, expires, renews,
// and governs revocable authorities over named resource scopes, and admits
// or refuses actions against those scopes.
//
// The kernel is the single source of truth for admissibility. Callers feed
// step batches (an optional epoch advancement plus a list of phase-2 events)
// through [Kernel.ProcessStepBatch] and observe an ordered output stream,
// each output stamped with a monotonic event index and the canonical hash of
// the post-mutation state. Two fresh kernels fed identical batches produce
// identical hash streams; that property is what every harness on top of this
// package verifies.
//
// # Event model
//
// Phase-2 events form a closed sum type ([Event]) with four kinds: authority
// injection, authority renewal, governance action, and action request. The
// batch processor partitions them into fixed sub-phases (injection, renewal,
// governance destroy, governance create, action requests) and processes each
// sub-phase in caller order.
//
// # Failure taxonomy
//
// Caller/protocol violations (temporal regression, authority ID reuse,
// reserved AAV bits, missing prior authority) are fatal: the offending event
// aborts the batch with zero state mutation and surfaces as a [FailureError].
// Everything else an event can do wrong is a refusal: an ACTION_REFUSED
// output carrying a [RefusalReason], after which processing continues.
//
// # Concurrency
//
// A Kernel instance is not safe for concurrent use. It owns its
// AuthorityState exclusively; one batch is processed to completion before
// the next is accepted.
package kernel
