package db

import (
	"context"
	"fmt"

	"nftcate/internal/config"
	"nftcate/internal/observability/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens Postgres when POSTGRES_DSN is set. Without it the store runs in
// no-db mode and repositories report the record store as unavailable.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		logger.Named("db").Warn("POSTGRES_DSN not set; starting in no-db mode")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &Store{DB: gdb}
	if cfg.DBAutoMigrate {
		if err := store.Migrate(context.Background()); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.DB != nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if !s.Enabled() {
		return errDBUnavailable
	}
	if err := s.DB.WithContext(ctx).AutoMigrate(&IssuerModel{}, &RecipientModel{}, &CertificateModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return errDBUnavailable
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
