package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zkcred/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProofRecordRepository struct {
	db *gorm.DB
}

func NewProofRecordRepository(db *gorm.DB) *ProofRecordRepository {
	return &ProofRecordRepository{db: db}
}

func (r *ProofRecordRepository) Save(ctx context.Context, rec domain.ProofRecord) (domain.ProofRecord, error) {
	if r.db == nil {
		return domain.ProofRecord{}, errDBUnavailable
	}
	if rec.ID == "" {
		rec.ID = newUUID()
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}
	rec.SubmittedAt = rec.SubmittedAt.UTC().Truncate(time.Microsecond)
	reasons := rec.Reasons
	if reasons == nil {
		reasons = []domain.Reason{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return domain.ProofRecord{}, err
	}
	model := ProofRecordModel{
		ID:               rec.ID,
		CircuitID:        rec.CircuitID,
		Nullifier:        copyBytes(rec.Nullifier[:]),
		ContextID:        rec.ContextID,
		Verified:         rec.Verified,
		ReasonsJSON:      reasonsJSON,
		VerifyingKeyHash: rec.VerifyingKeyHash,
		SubmittedAt:      rec.SubmittedAt,
		VerifiedAt:       rec.VerifiedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.ProofRecord{}, err
	}
	return rec, nil
}

// ListByCircuit returns up to limit records, newest first. A non-positive
// limit returns all of them.
func (r *ProofRecordRepository) ListByCircuit(ctx context.Context, circuitID string, limit int) ([]domain.ProofRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).
		Where("circuit_id = ?", circuitID).
		Order("submitted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []ProofRecordModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ProofRecord, 0, len(models))
	for _, m := range models {
		var reasons []domain.Reason
		if err := json.Unmarshal(m.ReasonsJSON, &reasons); err != nil {
			return nil, fmt.Errorf("decode reasons of record %s: %w", m.ID, err)
		}
		rec := domain.ProofRecord{
			ID:               m.ID,
			CircuitID:        m.CircuitID,
			ContextID:        m.ContextID,
			Verified:         m.Verified,
			Reasons:          reasons,
			VerifyingKeyHash: m.VerifyingKeyHash,
			SubmittedAt:      m.SubmittedAt.UTC(),
			VerifiedAt:       m.VerifiedAt,
		}
		copy(rec.Nullifier[:], m.Nullifier)
		out = append(out, rec)
	}
	return out, nil
}

type CircuitEventRepository struct {
	db *gorm.DB
}

func NewCircuitEventRepository(db *gorm.DB) *CircuitEventRepository {
	return &CircuitEventRepository{db: db}
}

func (r *CircuitEventRepository) Append(ctx context.Context, event domain.CircuitEvent) (domain.CircuitEvent, error) {
	if r.db == nil {
		return domain.CircuitEvent{}, errDBUnavailable
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	event.At = event.At.UTC().Truncate(time.Microsecond)
	model := CircuitEventModel{
		CircuitID:        event.CircuitID,
		EventType:        string(event.Type),
		Version:          event.Version,
		Status:           string(event.Status),
		Reason:           event.Reason,
		Height:           event.Height,
		VerifyingKeyHash: event.VerifyingKeyHash,
		At:               event.At,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.CircuitEvent{}, err
	}
	return event, nil
}

func (r *CircuitEventRepository) ListByCircuit(ctx context.Context, circuitID string) ([]domain.CircuitEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CircuitEventModel
	if err := r.db.WithContext(ctx).
		Where("circuit_id = ?", circuitID).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CircuitEvent, 0, len(models))
	for _, m := range models {
		out = append(out, domain.CircuitEvent{
			Type:             domain.CircuitEventType(m.EventType),
			CircuitID:        m.CircuitID,
			Version:          m.Version,
			Status:           domain.CircuitStatus(m.Status),
			Reason:           m.Reason,
			Height:           m.Height,
			VerifyingKeyHash: m.VerifyingKeyHash,
			At:               m.At.UTC(),
		})
	}
	return out, nil
}

type CredentialStatusRepository struct {
	db *gorm.DB
}

func NewCredentialStatusRepository(db *gorm.DB) *CredentialStatusRepository {
	return &CredentialStatusRepository{db: db}
}

func (r *CredentialStatusRepository) Status(ctx context.Context, credentialID string) (domain.CredentialStatus, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	var model CredentialStatusModel
	err := r.db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return domain.CredentialStatus(model.Status), nil
}

func (r *CredentialStatusRepository) SetStatus(ctx context.Context, credentialID string, status domain.CredentialStatus, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := CredentialStatusModel{
		CredentialID: credentialID,
		Status:       string(status),
		UpdatedAt:    at.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "credential_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(&model).Error
}
