package db

import "time"

type CircuitModel struct {
	CircuitID          string    `gorm:"column:circuit_id;primaryKey"`
	Version            int       `gorm:"not null"`
	Name               string    `gorm:"not null;default:''"`
	Description        string    `gorm:"not null;default:''"`
	Creator            string    `gorm:"not null;default:''"`
	Kind               string    `gorm:"not null"`
	SchemaVersion      string    `gorm:"not null"`
	Subject            string    `gorm:"not null"`
	Threshold          int64     `gorm:"not null"`
	PrivateJSON        []byte    `gorm:"column:private_json;type:jsonb;not null"`
	PublicInputsJSON   []byte    `gorm:"column:public_inputs_json;type:jsonb;not null"`
	ProvingScheme      string    `gorm:"not null"`
	ProvingParamsRef   string    `gorm:"not null"`
	VerifyingKey       []byte    `gorm:"type:bytea;not null"`
	VerifyingKeyHash   string    `gorm:"index;not null"`
	Status             string    `gorm:"index;not null"`
	StatusReason       string    `gorm:"not null;default:''"`
	RegistrationHeight int64     `gorm:"uniqueIndex;not null"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (CircuitModel) TableName() string { return "zk_circuits" }

type CircuitEventModel struct {
	ID               int64     `gorm:"primaryKey"`
	CircuitID        string    `gorm:"index;not null"`
	EventType        string    `gorm:"not null"`
	Version          int       `gorm:"not null"`
	Status           string    `gorm:"not null"`
	Reason           string    `gorm:"not null;default:''"`
	Height           int64     `gorm:"not null"`
	VerifyingKeyHash string    `gorm:"not null;default:''"`
	At               time.Time `gorm:"column:at;not null"`
}

func (CircuitEventModel) TableName() string { return "zk_circuit_events" }

type NullifierModel struct {
	Value      []byte    `gorm:"type:bytea;primaryKey"`
	CircuitID  string    `gorm:"index;not null"`
	ContextID  string    `gorm:"not null"`
	ReceiptID  string    `gorm:"type:uuid;uniqueIndex;not null"`
	Height     int64     `gorm:"not null"`
	ReservedAt time.Time `gorm:"not null"`
}

func (NullifierModel) TableName() string { return "zk_nullifiers" }

type ProofRecordModel struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	CircuitID        string    `gorm:"index;not null"`
	Nullifier        []byte    `gorm:"type:bytea;not null"`
	ContextID        string    `gorm:"not null"`
	Verified         bool      `gorm:"not null"`
	ReasonsJSON      []byte    `gorm:"column:reasons_json;type:jsonb;not null"`
	VerifyingKeyHash string    `gorm:"not null;default:''"`
	SubmittedAt      time.Time `gorm:"index;not null"`
	VerifiedAt       *time.Time
}

func (ProofRecordModel) TableName() string { return "zk_proof_records" }

type CredentialStatusModel struct {
	CredentialID string    `gorm:"primaryKey"`
	Status       string    `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (CredentialStatusModel) TableName() string { return "zk_credential_status" }
