package posts

import (
	"context"

	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// Repository stores published posts. Implementations exist for PostgreSQL
// and MongoDB.
type Repository interface {
	// Create stores p; a poster that no longer exists is common.ErrorNotFound.
	Create(ctx context.Context, p *models.Post) error
	// ListByPoster returns the poster's posts, newest first.
	ListByPoster(ctx context.Context, posterID string) ([]*models.Post, error)
	DeleteByPoster(ctx context.Context, posterID string) (int64, error)
}
