package domain

import (
	"fmt"
	"time"
)

type FieldType string

const (
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldScalar  FieldType = "field_element"
)

type FieldSpec struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

type CircuitStatus string

const (
	CircuitDraft      CircuitStatus = "draft"
	CircuitActive     CircuitStatus = "active"
	CircuitDeprecated CircuitStatus = "deprecated"
	CircuitRevoked    CircuitStatus = "revoked"
)

// CanTransition reports whether s may move to next. Transitions only go forward.
func (s CircuitStatus) CanTransition(next CircuitStatus) bool {
	switch s {
	case CircuitDraft:
		return next == CircuitActive || next == CircuitRevoked
	case CircuitActive:
		return next == CircuitDeprecated || next == CircuitRevoked
	case CircuitDeprecated:
		return next == CircuitRevoked
	default:
		return false
	}
}

// CircuitKind selects the predicate a circuit enforces over its subject attribute.
type CircuitKind string

const (
	KindAgeAtLeast CircuitKind = "age_at_least"
	KindAtLeast    CircuitKind = "at_least"
	KindEquals     CircuitKind = "equals"
	KindPossession CircuitKind = "possession"
)

func (k CircuitKind) Valid() bool {
	switch k {
	case KindAgeAtLeast, KindAtLeast, KindEquals, KindPossession:
		return true
	default:
		return false
	}
}

// NumericSubject reports whether the predicate compares the subject as an integer.
func (k CircuitKind) NumericSubject() bool {
	return k == KindAgeAtLeast || k == KindAtLeast || k == KindEquals
}

type PredicateSpec struct {
	Kind          CircuitKind `json:"kind"`
	SchemaVersion string      `json:"schema_version"`
	Subject       string      `json:"subject"`
	Threshold     int64       `json:"threshold"`
	// Private lists attributes that may never be disclosed in addition to Subject.
	Private []string `json:"private,omitempty"`
}

// AlwaysPrivate returns the subject followed by the extra private attributes.
func (p PredicateSpec) AlwaysPrivate() []string {
	out := make([]string, 0, len(p.Private)+1)
	out = append(out, p.Subject)
	for _, key := range p.Private {
		if key != p.Subject {
			out = append(out, key)
		}
	}
	return out
}

func (p PredicateSpec) IsPrivate(key string) bool {
	for _, k := range p.AlwaysPrivate() {
		if k == key {
			return true
		}
	}
	return false
}

type CircuitDescriptor struct {
	CircuitID          string        `json:"circuit_id"`
	Version            int           `json:"version"`
	Name               string        `json:"name,omitempty"`
	Description        string        `json:"description,omitempty"`
	Creator            string        `json:"creator,omitempty"`
	Predicate          PredicateSpec `json:"predicate"`
	PublicInputSchema  []FieldSpec   `json:"public_input_schema"`
	ProvingScheme      string        `json:"proving_scheme"`
	ProvingParamsRef   string        `json:"proving_params_ref"`
	VerifyingKey       []byte        `json:"verifying_key"`
	VerifyingKeyHash   string        `json:"verifying_key_hash,omitempty"`
	Status             CircuitStatus `json:"status"`
	StatusReason       string        `json:"status_reason,omitempty"`
	RegistrationHeight int64         `json:"registration_height,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Validate checks the structural shape of a descriptor. Scheme-specific checks
// of the verifying key are done by the registry.
func (d CircuitDescriptor) Validate() error {
	if d.CircuitID == "" {
		return fmt.Errorf("%w: circuit_id is required", ErrInvalidDescriptor)
	}
	if d.Version <= 0 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidDescriptor)
	}
	if len(d.PublicInputSchema) == 0 {
		return fmt.Errorf("%w: public input schema is empty", ErrInvalidDescriptor)
	}
	seen := make(map[string]struct{}, len(d.PublicInputSchema))
	for i, field := range d.PublicInputSchema {
		if field.Name == "" {
			return fmt.Errorf("%w: public input %d has no name", ErrInvalidDescriptor, i)
		}
		if _, ok := seen[field.Name]; ok {
			return fmt.Errorf("%w: duplicate public input %q", ErrInvalidDescriptor, field.Name)
		}
		seen[field.Name] = struct{}{}
		switch field.Type {
		case FieldInteger, FieldBoolean, FieldScalar:
		default:
			return fmt.Errorf("%w: public input %q has type %q", ErrInvalidDescriptor, field.Name, field.Type)
		}
	}
	if len(d.VerifyingKey) == 0 {
		return fmt.Errorf("%w: verifying key is required", ErrInvalidDescriptor)
	}
	if d.ProvingParamsRef == "" {
		return fmt.Errorf("%w: proving params reference is required", ErrInvalidDescriptor)
	}
	if !d.Predicate.Kind.Valid() {
		return fmt.Errorf("%w: unknown circuit kind %q", ErrInvalidDescriptor, d.Predicate.Kind)
	}
	if d.Predicate.Subject == "" || d.Predicate.SchemaVersion == "" {
		return fmt.Errorf("%w: predicate subject and schema version are required", ErrInvalidDescriptor)
	}
	if d.Predicate.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative", ErrInvalidDescriptor)
	}
	return nil
}

type CircuitEventType string

const (
	EventCircuitRegistered CircuitEventType = "CircuitRegistered"
	EventCircuitActivated  CircuitEventType = "CircuitActivated"
	EventCircuitDeprecated CircuitEventType = "CircuitDeprecated"
	EventCircuitRevoked    CircuitEventType = "CircuitRevoked"
)

type CircuitEvent struct {
	Type             CircuitEventType `json:"type"`
	CircuitID        string           `json:"circuit_id"`
	Version          int              `json:"version"`
	Status           CircuitStatus    `json:"status"`
	Reason           string           `json:"reason,omitempty"`
	Height           int64            `json:"height,omitempty"`
	VerifyingKeyHash string           `json:"verifying_key_hash,omitempty"`
	At               time.Time        `json:"at"`
}
