package domain

import (
	"strconv"
	"time"
)

// PublicContext is what the holder binds a proof to.
type PublicContext struct {
	VerifierID string `json:"verifier_id"`
	Domain     string `json:"domain"`
	Nonce      string `json:"nonce"`
	// Reference is the verifier-supplied reference value for time-relative
	// predicates, e.g. the current year for age checks.
	Reference int64 `json:"reference"`
}

// ContextID identifies the verifier context a nullifier is scoped to. The
// nonce is excluded so repeated presentations to one verifier collide. The
// verifier id is length-prefixed so no two (verifier, domain) pairs share an id.
func (c PublicContext) ContextID() string {
	return strconv.Itoa(len(c.VerifierID)) + ":" + c.VerifierID + "|" + c.Domain
}

// ExpectedContext is what a verifier requires of a submission.
type ExpectedContext struct {
	PublicContext
	RequiredDisclosures []string `json:"required_disclosures,omitempty"`
}

type Commitment struct {
	Value          FieldElement `json:"value"`
	BlindingFactor FieldElement `json:"blinding_factor"`
}

// DisclosurePolicy is the ordered set of attribute keys the holder reveals.
type DisclosurePolicy []string

// Normalized drops empty and repeated keys, keeping first occurrence order.
func (p DisclosurePolicy) Normalized() DisclosurePolicy {
	out := make(DisclosurePolicy, 0, len(p))
	seen := make(map[string]struct{}, len(p))
	for _, key := range p {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

type OpenedSlot struct {
	Slot    int          `json:"slot"`
	Key     string       `json:"key"`
	Encoded FieldElement `json:"encoded"`
}

// OpeningProof shows that the listed slots belong to the committed vector.
type OpeningProof struct {
	Commitment FieldElement `json:"commitment"`
	Opened     []OpenedSlot `json:"opened"`
}

type DisclosedAttribute struct {
	Slot  int    `json:"slot"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type ProofSubmission struct {
	CircuitID     string               `json:"circuit_id"`
	CredentialID  string               `json:"credential_id"`
	Proof         []byte               `json:"proof"`
	PublicSignals []FieldElement       `json:"public_signals"`
	Nullifier     FieldElement         `json:"nullifier"`
	Context       PublicContext        `json:"context"`
	Disclosed     []DisclosedAttribute `json:"disclosed,omitempty"`
}

// ProofRecord is the persisted outcome of one submission.
type ProofRecord struct {
	ID               string       `json:"id"`
	CircuitID        string       `json:"circuit_id"`
	Nullifier        FieldElement `json:"nullifier"`
	ContextID        string       `json:"context_id"`
	Verified         bool         `json:"verified"`
	Reasons          []Reason     `json:"reasons,omitempty"`
	VerifyingKeyHash string       `json:"verifying_key_hash,omitempty"`
	SubmittedAt      time.Time    `json:"submitted_at"`
	VerifiedAt       *time.Time   `json:"verified_at,omitempty"`
}
