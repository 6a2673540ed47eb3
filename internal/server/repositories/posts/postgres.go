// Package posts provides post repositories.
package posts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// PostgresRepository keeps attachments as a JSONB array next to the post.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Post) error {
	query :=
		`INSERT INTO posts (id, poster_id, content, attachments, upload_date, likes, parent_id, parent_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	attachments := p.Attachments
	if attachments == nil {
		attachments = []models.PostAttachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.PosterID, p.Content, string(raw), p.UploadDate, p.Likes, p.Parent.ID, string(p.Parent.Type))
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByPoster(ctx context.Context, posterID string) ([]*models.Post, error) {
	query :=
		`SELECT id, poster_id, content, attachments, upload_date, likes, parent_id, parent_type
		 FROM posts
		 WHERE poster_id = $1
		 ORDER BY upload_date DESC, id`

	rows, err := r.db.QueryContext(ctx, query, posterID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.Post{}
	for rows.Next() {
		var (
			p          models.Post
			raw        []byte
			parentType string
		)
		if err := rows.Scan(&p.ID, &p.PosterID, &p.Content, &raw, &p.UploadDate, &p.Likes, &p.Parent.ID, &parentType); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal(raw, &p.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", p.ID, err)
		}
		p.Parent.Type = models.ParentType(parentType)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteByPoster(ctx context.Context, posterID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE poster_id = $1`, posterID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
