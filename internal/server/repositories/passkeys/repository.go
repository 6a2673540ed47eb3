package passkeys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// Store keeps password-reset passkeys. Implementations exist for PostgreSQL
// and MongoDB; both report misses as common.ErrorNotFound.
type Store interface {
	Create(ctx context.Context, p *models.Passkey) error
	// Restore puts back a passkey consumed by a password change that then
	// failed. Restoring a passkey that is still stored is a no-op.
	Restore(ctx context.Context, p *models.Passkey) error
	// FindLatestByEmail returns the most recently created passkey for email.
	FindLatestByEmail(ctx context.Context, email string) (*models.Passkey, error)
	// Delete consumes a passkey by id. Deleting nothing is common.ErrorNotFound,
	// which is how a losing concurrent consumer finds out.
	Delete(ctx context.Context, id string) error
	DeleteByEmail(ctx context.Context, email string) (int64, error)
	// DeleteOlderThan removes passkeys created strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
