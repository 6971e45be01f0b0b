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

const circuitHeightCounter = "circuit_registration"

type CircuitRepository struct {
	db *gorm.DB
}

func NewCircuitRepository(db *gorm.DB) *CircuitRepository {
	return &CircuitRepository{db: db}
}

// Create inserts d with the next registration height. Registering a known
// circuit id fails with ErrDuplicateCircuit and does not consume a height.
func (r *CircuitRepository) Create(ctx context.Context, d domain.CircuitDescriptor) (domain.CircuitDescriptor, error) {
	if r.db == nil {
		return domain.CircuitDescriptor{}, errDBUnavailable
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		height, err := nextHeight(ctx, tx, circuitHeightCounter)
		if err != nil {
			return err
		}
		d.RegistrationHeight = height
		model, err := circuitModelFromDomain(d)
		if err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrDuplicateCircuit
		}
		return nil
	})
	if err != nil {
		return domain.CircuitDescriptor{}, err
	}
	return d, nil
}

func (r *CircuitRepository) Get(ctx context.Context, circuitID string) (*domain.CircuitDescriptor, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CircuitModel
	err := r.db.WithContext(ctx).
		Where("circuit_id = ?", circuitID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	d, err := circuitFromModel(model)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateStatus is a compare-and-set on the current status.
func (r *CircuitRepository) UpdateStatus(ctx context.Context, circuitID string, from, to domain.CircuitStatus, reason string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).
		Model(&CircuitModel{}).
		Where("circuit_id = ? AND status = ?", circuitID, string(from)).
		Updates(map[string]any{
			"status":        string(to),
			"status_reason": reason,
			"updated_at":    at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, circuitID); err != nil {
			return err
		}
		return fmt.Errorf("%w: status of %s changed concurrently", domain.ErrInvalidTransition, circuitID)
	}
	return nil
}

func (r *CircuitRepository) List(ctx context.Context) ([]domain.CircuitDescriptor, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CircuitModel
	if err := r.db.WithContext(ctx).
		Order("registration_height ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CircuitDescriptor, 0, len(models))
	for _, model := range models {
		d, err := circuitFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func circuitModelFromDomain(d domain.CircuitDescriptor) (CircuitModel, error) {
	private := d.Predicate.Private
	if private == nil {
		private = []string{}
	}
	privateJSON, err := json.Marshal(private)
	if err != nil {
		return CircuitModel{}, err
	}
	inputsJSON, err := json.Marshal(d.PublicInputSchema)
	if err != nil {
		return CircuitModel{}, err
	}
	return CircuitModel{
		CircuitID:          d.CircuitID,
		Version:            d.Version,
		Name:               d.Name,
		Description:        d.Description,
		Creator:            d.Creator,
		Kind:               string(d.Predicate.Kind),
		SchemaVersion:      d.Predicate.SchemaVersion,
		Subject:            d.Predicate.Subject,
		Threshold:          d.Predicate.Threshold,
		PrivateJSON:        privateJSON,
		PublicInputsJSON:   inputsJSON,
		ProvingScheme:      d.ProvingScheme,
		ProvingParamsRef:   d.ProvingParamsRef,
		VerifyingKey:       copyBytes(d.VerifyingKey),
		VerifyingKeyHash:   d.VerifyingKeyHash,
		Status:             string(d.Status),
		StatusReason:       d.StatusReason,
		RegistrationHeight: d.RegistrationHeight,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}, nil
}

func circuitFromModel(m CircuitModel) (domain.CircuitDescriptor, error) {
	var private []string
	if len(m.PrivateJSON) > 0 {
		if err := json.Unmarshal(m.PrivateJSON, &private); err != nil {
			return domain.CircuitDescriptor{}, fmt.Errorf("decode private attributes of %s: %w", m.CircuitID, err)
		}
	}
	var inputs []domain.FieldSpec
	if err := json.Unmarshal(m.PublicInputsJSON, &inputs); err != nil {
		return domain.CircuitDescriptor{}, fmt.Errorf("decode public inputs of %s: %w", m.CircuitID, err)
	}
	return domain.CircuitDescriptor{
		CircuitID:   m.CircuitID,
		Version:     m.Version,
		Name:        m.Name,
		Description: m.Description,
		Creator:     m.Creator,
		Predicate: domain.PredicateSpec{
			Kind:          domain.CircuitKind(m.Kind),
			SchemaVersion: m.SchemaVersion,
			Subject:       m.Subject,
			Threshold:     m.Threshold,
			Private:       private,
		},
		PublicInputSchema:  inputs,
		ProvingScheme:      m.ProvingScheme,
		ProvingParamsRef:   m.ProvingParamsRef,
		VerifyingKey:       copyBytes(m.VerifyingKey),
		VerifyingKeyHash:   m.VerifyingKeyHash,
		Status:             domain.CircuitStatus(m.Status),
		StatusReason:       m.StatusReason,
		RegistrationHeight: m.RegistrationHeight,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}, nil
}
