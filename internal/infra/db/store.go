package db

import (
	"fmt"

	"zkcred/internal/config"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens postgres when POSTGRES_DSN is set. Without it the daemon
// runs on the in-memory stores.
func NewStore(cfg config.Config, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.PostgresDSN == "" {
		log.Warn("POSTGRES_DSN not set; starting in no-db mode")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.DB != nil
}
