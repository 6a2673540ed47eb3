package accounts

import (
	"context"

	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// Repository persists accounts. Lookups that find nothing return
// common.ErrorNotFound; writes that collide with an existing username or
// email return common.ErrorAlreadyExists joined with the specific duplicate.
type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
}
