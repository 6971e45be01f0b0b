package domain

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	ErrUnsupportedSchema = errors.New("unsupported schema")
	ErrMissingField      = errors.New("missing field")

	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrPolicyViolation   = errors.New("policy violation")
	ErrBindingMismatch   = errors.New("binding mismatch")
	ErrProvingFailed     = errors.New("proving failed")
	ErrTransientResource = errors.New("transient resource error")

	ErrCircuitNotFound   = errors.New("circuit not found")
	ErrCircuitRevoked    = errors.New("circuit revoked")
	ErrCircuitInactive   = errors.New("circuit inactive")
	ErrDuplicateCircuit  = errors.New("duplicate circuit")
	ErrInvalidDescriptor = errors.New("invalid circuit descriptor")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrAlreadyUsed        = errors.New("nullifier already used")
	ErrVerificationFailed = errors.New("verification failed")
	ErrCredentialExpired  = errors.New("credential expired")
	ErrInvalidCredential  = errors.New("invalid credential")
)
