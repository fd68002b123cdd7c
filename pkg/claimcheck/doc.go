// Package claimcheck is the claim/signature classifier that sits upstream of
// the kernel. It verifies Ed25519-signed claim envelopes and evaluates a
// Cedar policy set to answer one question: does this principal legitimately
// hold this authority. The answer is a boolean admitting fact that drivers
// use to construct injection and renewal events; the kernel itself never
// imports this package and never sees a signature.
package claimcheck
