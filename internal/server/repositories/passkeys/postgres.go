// Package passkeys provides password-reset passkey stores.
package passkeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Passkey) error {
	query :=
		`INSERT INTO password_passkeys (id, email, passkey, created_at)
		 VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Email, p.Passkey, p.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) Restore(ctx context.Context, p *models.Passkey) error {
	query :=
		`INSERT INTO password_passkeys (id, email, passkey, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Email, p.Passkey, p.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindLatestByEmail(ctx context.Context, email string) (*models.Passkey, error) {
	query :=
		`SELECT id, email, passkey, created_at FROM password_passkeys
		 WHERE email = $1
		 ORDER BY created_at DESC
		 LIMIT 1`

	p := &models.Passkey{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(&p.ID, &p.Email, &p.Passkey, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	n, err := s.exec(ctx, `DELETE FROM password_passkeys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	return s.exec(ctx, `DELETE FROM password_passkeys WHERE email = $1`, email)
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.exec(ctx, `DELETE FROM password_passkeys WHERE created_at < $1`, cutoff)
}

func (s *PostgresStore) exec(ctx context.Context, query string, arg any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
