// Package follows provides the PostgreSQL-backed follow edge repository.
package follows

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, followerID, followeeID string) error {
	query :=
		`INSERT INTO follows (follower_id, followee_id)
		 VALUES ($1, $2)
		 ON CONFLICT (follower_id, followee_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, followerID, followeeID string) error {
	query :=
		`DELETE FROM follows
		 WHERE follower_id = $1 AND followee_id = $2`

	res, err := r.db.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	query :=
		`SELECT EXISTS (
		     SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2
		 )`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, followerID, followeeID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// Following returns the ids accountID follows, oldest edge first.
func (r *PostgresRepository) Following(ctx context.Context, accountID string) ([]string, error) {
	return r.ids(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY created_at, followee_id`,
		accountID)
}

// Followers returns the ids following accountID, oldest edge first.
func (r *PostgresRepository) Followers(ctx context.Context, accountID string) ([]string, error) {
	return r.ids(ctx,
		`SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY created_at, follower_id`,
		accountID)
}

func (r *PostgresRepository) ids(ctx context.Context, query, accountID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteAllFor(ctx context.Context, accountID string) (int64, error) {
	query :=
		`DELETE FROM follows
		 WHERE follower_id = $1 OR followee_id = $1`

	res, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
