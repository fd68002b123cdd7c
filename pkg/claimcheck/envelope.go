package claimcheck

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// Claim is the signed statement a holder presents: "I hold (or am renewing)
// this authority over this scope." The nonce prevents envelope replay across
// harness runs.
type Claim struct {
	HolderID      string `json:"holder_id"`
	AuthorityID   string `json:"authority_id"`
	ResourceScope string `json:"resource_scope"`
	Operation     string `json:"operation"` // "inject" or "renew"
	Nonce         string `json:"nonce"`
}

// SignClaim wraps a claim in a compact Ed25519 JWS envelope.
func SignClaim(key ed25519.PrivateKey, c Claim) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key}, nil)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal claim: %w", err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign claim: %w", err)
	}
	return sig.CompactSerialize()
}

// VerifyClaim checks an envelope's signature against the holder's public key
// and returns the embedded claim. Only EdDSA envelopes are accepted;
// algorithm confusion is rejected at parse time.
func VerifyClaim(key ed25519.PublicKey, envelope string) (Claim, error) {
	sig, err := jose.ParseSigned(envelope, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return Claim{}, fmt.Errorf("parse envelope: %w", err)
	}
	payload, err := sig.Verify(key)
	if err != nil {
		return Claim{}, fmt.Errorf("verify envelope: %w", err)
	}
	var c Claim
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claim{}, fmt.Errorf("unmarshal claim: %w", err)
	}
	return c, nil
}
