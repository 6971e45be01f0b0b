package domain

// Reason is a coarse failure category safe to return to an untrusted verifier.
type Reason string

const (
	ReasonMalformedSignals        Reason = "MalformedSignals"
	ReasonInvalidProof            Reason = "InvalidProof"
	ReasonContextMismatch         Reason = "ContextMismatch"
	ReasonDisclosureMismatch      Reason = "DisclosureMismatch"
	ReasonNullifierMismatch       Reason = "NullifierMismatch"
	ReasonNullifierAlreadyUsed    Reason = "NullifierAlreadyUsed"
	ReasonLedgerUnavailable       Reason = "LedgerUnavailable"
	ReasonCredentialRevoked       Reason = "CredentialRevoked"
	ReasonCredentialExpired       Reason = "CredentialExpired"
	ReasonCredentialStatusUnknown Reason = "CredentialStatusUnknown"
	ReasonCircuitNotFound         Reason = "CircuitNotFound"
	ReasonCircuitRevoked          Reason = "CircuitRevoked"
	ReasonCircuitInactive         Reason = "CircuitInactive"
)

type VerificationResult struct {
	Verified  bool           `json:"verified"`
	Reasons   []Reason       `json:"reasons"`
	Receipt   *LedgerReceipt `json:"receipt,omitempty"`
	Disclosed map[string]any `json:"disclosed,omitempty"`
}

// Has reports whether r carries reason.
func (r VerificationResult) Has(reason Reason) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

// Rejected builds a negative result.
func Rejected(reasons ...Reason) VerificationResult {
	return VerificationResult{Verified: false, Reasons: reasons}
}
