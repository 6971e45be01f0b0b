package db

import (
	"context"
	"time"

	"zkcred/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const nullifierHeightCounter = "nullifier_ledger"

// NullifierLedger is the postgres nullifier set. The primary key on the
// nullifier value makes the reservation atomic: of two concurrent inserts,
// exactly one affects a row.
type NullifierLedger struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewNullifierLedger(db *gorm.DB) *NullifierLedger {
	return &NullifierLedger{db: db, clock: time.Now}
}

func (l *NullifierLedger) CheckAndReserve(ctx context.Context, n domain.Nullifier) (domain.LedgerReceipt, error) {
	if l.db == nil {
		return domain.LedgerReceipt{}, errDBUnavailable
	}
	receipt := domain.LedgerReceipt{
		ID:         newUUID(),
		Nullifier:  n.Value,
		CircuitID:  n.CircuitID,
		ContextID:  n.ContextID,
		ReservedAt: l.clock().UTC().Truncate(time.Microsecond),
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		height, err := nextHeight(ctx, tx, nullifierHeightCounter)
		if err != nil {
			return err
		}
		receipt.Height = height
		model := NullifierModel{
			Value:      copyBytes(n.Value[:]),
			CircuitID:  n.CircuitID,
			ContextID:  n.ContextID,
			ReceiptID:  receipt.ID,
			Height:     height,
			ReservedAt: receipt.ReservedAt,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrAlreadyUsed
		}
		return nil
	})
	if err != nil {
		return domain.LedgerReceipt{}, err
	}
	return receipt, nil
}

func (l *NullifierLedger) IsConsumed(ctx context.Context, value domain.FieldElement) (bool, error) {
	if l.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	err := l.db.WithContext(ctx).
		Model(&NullifierModel{}).
		Where("value = ?", value[:]).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (l *NullifierLedger) Sweep(ctx context.Context, circuitID string) (int64, error) {
	if l.db == nil {
		return 0, errDBUnavailable
	}
	result := l.db.WithContext(ctx).
		Where("circuit_id = ?", circuitID).
		Delete(&NullifierModel{})
	return result.RowsAffected, result.Error
}

var _ domain.NullifierLedger = (*NullifierLedger)(nil)
