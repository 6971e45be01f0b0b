package domain

import (
	"context"
	"time"
)

// VerifiableCredential is the issuer-signed input to proof generation.
// Attribute values are the decoded JSON forms: string, bool, integers
// (json.Number or Go integer kinds), byte slices, lists and objects.
type VerifiableCredential struct {
	ID              string         `json:"id"`
	IssuerID        string         `json:"issuer_id"`
	SubjectID       string         `json:"subject_id"`
	IssuedAt        time.Time      `json:"issued_at"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	Attributes      map[string]any `json:"attributes"`
	IssuerSignature []byte         `json:"issuer_signature,omitempty"`
}

func (c VerifiableCredential) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

type AttributeType string

const (
	AttributeString  AttributeType = "string"
	AttributeInteger AttributeType = "integer"
	AttributeBoolean AttributeType = "boolean"
	AttributeBytes   AttributeType = "bytes"
)

type AttributeField struct {
	Name string        `json:"name"`
	Type AttributeType `json:"type"`
}

// AttributeVector is the fixed-width field encoding of one credential.
// Keys[i] is empty for padding slots.
type AttributeVector struct {
	SchemaVersion string         `json:"schema_version"`
	CredentialTag FieldElement   `json:"credential_tag"`
	Layout        FieldElement   `json:"layout"`
	Keys          []string       `json:"keys"`
	Values        []FieldElement `json:"values"`
}

// Slot returns the index of key, or -1.
func (v AttributeVector) Slot(key string) int {
	if key == "" {
		return -1
	}
	for i, k := range v.Keys {
		if k == key {
			return i
		}
	}
	return -1
}

func (v AttributeVector) Clone() AttributeVector {
	out := v
	out.Keys = append([]string(nil), v.Keys...)
	out.Values = append([]FieldElement(nil), v.Values...)
	return out
}

// Wipe zeroes the encoded values held by v.
func (v *AttributeVector) Wipe() {
	for i := range v.Values {
		v.Values[i].Wipe()
	}
	v.CredentialTag.Wipe()
	v.Layout.Wipe()
}

type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialRevoked CredentialStatus = "revoked"
	CredentialExpired CredentialStatus = "expired"
)

func (s CredentialStatus) Valid() bool {
	switch s {
	case CredentialActive, CredentialRevoked, CredentialExpired:
		return true
	default:
		return false
	}
}

// CredentialStatusRegistry answers revocation and expiry queries.
type CredentialStatusRegistry interface {
	Status(ctx context.Context, credentialID string) (CredentialStatus, error)
}
