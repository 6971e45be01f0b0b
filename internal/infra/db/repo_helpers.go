package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

func newUUID() string {
	return uuid.NewString()
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// nextHeight bumps the named counter and returns its new value.
func nextHeight(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	var height int64
	err := tx.WithContext(ctx).
		Raw(
			`INSERT INTO zk_counters (name, value)
			 VALUES (?, 1)
			 ON CONFLICT (name)
			 DO UPDATE SET value = zk_counters.value + 1
			 RETURNING value`,
			name,
		).Scan(&height).Error
	if err != nil {
		return 0, err
	}
	return height, nil
}
