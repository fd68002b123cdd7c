package claimcheck

import (
	"context"
	"crypto/ed25519"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/cedar-policy/cedar-go"
)

//go:embed policies.cedar
var policiesContent []byte

// Config contains options for the Classifier.
type Config struct {
	// Logger for structured decision logging. If nil, uses slog.Default().
	Logger *slog.Logger

	// PolicyBytes allows loading policies from a custom source (for testing).
	// If nil, embedded policies.cedar is used.
	PolicyBytes []byte
}

// Decision is the classifier's answer: a boolean admitting fact plus the
// verified claim and a reason for the negative case.
type Decision struct {
	Admitting bool
	Reason    string
	Claim     Claim
}

// Classifier wraps envelope verification and the Cedar claim policy.
// All claim-admission decisions flow through this single component.
type Classifier struct {
	policies *cedar.PolicySet
	logger   *slog.Logger
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg Config) (*Classifier, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policyData := cfg.PolicyBytes
	if policyData == nil {
		policyData = policiesContent
	}
	ps, err := cedar.NewPolicySetFromBytes("policies.cedar", policyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policies: %w", err)
	}
	return &Classifier{policies: ps, logger: logger}, nil
}

// Classify verifies the envelope against the holder's public key and
// evaluates the claim policy. The context parameter is available for future
// use (cancellation, tracing).
//
// A failed signature never reaches policy evaluation: the claim text inside
// an unverifiable envelope is untrusted and is not returned.
func (c *Classifier) Classify(ctx context.Context, envelope string, holderKey ed25519.PublicKey, registered bool) Decision {
	claim, err := VerifyClaim(holderKey, envelope)
	if err != nil {
		c.logger.Warn("claim envelope rejected", "error", err)
		return Decision{Admitting: false, Reason: "signature verification failed"}
	}

	entities := buildClaimEntities(claim, registered)
	req := cedar.Request{
		Principal: cedar.NewEntityUID("Holder", cedar.String(claim.HolderID)),
		Action:    cedar.NewEntityUID("Action", cedar.String("authority:"+claim.Operation)),
		Resource:  cedar.NewEntityUID("Scope", cedar.String(claim.ResourceScope)),
		Context: cedar.NewRecord(cedar.RecordMap{
			"signature_verified": cedar.Boolean(true),
		}),
	}

	decision, diagnostic := cedar.Authorize(c.policies, entities, req)
	allowed := decision == cedar.Allow

	reason := "policy denied claim"
	if allowed {
		reason = "claim admitted"
	}
	c.logger.Debug("claim classified",
		"holder_id", claim.HolderID,
		"authority_id", claim.AuthorityID,
		"operation", claim.Operation,
		"admitting", allowed,
		"policy_errors", len(diagnostic.Errors))

	return Decision{Admitting: allowed, Reason: reason, Claim: claim}
}

// buildClaimEntities constructs the Cedar entity map for one claim.
func buildClaimEntities(claim Claim, registered bool) cedar.EntityMap {
	holderUID := cedar.NewEntityUID("Holder", cedar.String(claim.HolderID))
	scopeUID := cedar.NewEntityUID("Scope", cedar.String(claim.ResourceScope))

	return cedar.EntityMap{
		holderUID: cedar.Entity{
			UID:     holderUID,
			Parents: cedar.NewEntityUIDSet(),
			Attributes: cedar.NewRecord(cedar.RecordMap{
				"registered": cedar.Boolean(registered),
			}),
		},
		scopeUID: cedar.Entity{
			UID:        scopeUID,
			Parents:    cedar.NewEntityUIDSet(),
			Attributes: cedar.NewRecord(cedar.RecordMap{}),
		},
	}
}
