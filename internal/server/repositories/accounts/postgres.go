// Package accounts provides the PostgreSQL-backed account repository.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// Unique constraints declared by the accounts migration.
const (
	usernameConstraint = "accounts_username_key"
	emailConstraint    = "accounts_email_key"
)

const selectColumns = `id, username, email, password_hash, bio, avatar_url, avatar_id, display_name, sign_up_date, is_verified`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	a := &models.Account{}
	err := s.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Bio,
		&a.AvatarURL, &a.AvatarID, &a.DisplayName, &a.SignUpDate, &a.IsVerified)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// mapWriteError turns a unique violation into the matching duplicate error.
func mapWriteError(err error) error {
	if constraint, ok := dbx.UniqueViolation(err); ok {
		switch constraint {
		case usernameConstraint:
			return fmt.Errorf("%w: %w", common.ErrorAlreadyExists, common.ErrDuplicateUsername)
		case emailConstraint:
			return fmt.Errorf("%w: %w", common.ErrorAlreadyExists, common.ErrDuplicateEmail)
		}
		return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, constraint)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query :=
		`INSERT INTO accounts (id, username, email, password_hash, bio, avatar_url, avatar_id, display_name, sign_up_date, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, a.PasswordHash, a.Bio,
		a.AvatarURL, a.AvatarID, a.DisplayName, a.SignUpDate, a.IsVerified)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, column, value string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE ` + column + ` = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, "id", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, "email", email)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, "username", username)
}

// List returns every account ordered by sign-up date.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts ORDER BY sign_up_date, username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update overwrites every mutable column of the account identified by a.ID.
func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	query :=
		`UPDATE accounts
		 SET username = $2, email = $3, password_hash = $4, bio = $5,
		     avatar_url = $6, avatar_id = $7, display_name = $8, is_verified = $9
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, a.PasswordHash, a.Bio,
		a.AvatarURL, a.AvatarID, a.DisplayName, a.IsVerified)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
