package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists items in the secure_items table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, service, account string, value []byte) error {
	query := `
		INSERT INTO secure_items (service, account, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (service, account)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, service, account, value); err != nil {
		log.Printf("[SecureStore] Put FAILED: service=%s account=%s err=%v", service, account, err)
		return fmt.Errorf("put secure item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, service, account string) ([]byte, error) {
	query := `SELECT value FROM secure_items WHERE service = $1 AND account = $2`

	var value []byte
	err := s.db.GetContext(ctx, &value, query, service, account)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get secure item: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Delete(ctx context.Context, service, account string) error {
	query := `DELETE FROM secure_items WHERE service = $1 AND account = $2`
	if _, err := s.db.ExecContext(ctx, query, service, account); err != nil {
		return fmt.Errorf("delete secure item: %w", err)
	}
	return nil
}
