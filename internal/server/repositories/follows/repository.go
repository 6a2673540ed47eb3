package follows

import "context"

// Repository stores directed follow edges. Each edge is one row, so the
// follower's Following and the followee's Followers can never disagree.
type Repository interface {
	// Create inserts the edge; an existing edge yields common.ErrorAlreadyExists.
	Create(ctx context.Context, followerID, followeeID string) error
	// Delete removes the edge; a missing edge yields common.ErrorNotFound.
	Delete(ctx context.Context, followerID, followeeID string) error
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	Following(ctx context.Context, accountID string) ([]string, error)
	Followers(ctx context.Context, accountID string) ([]string, error)
	// DeleteAllFor removes every edge touching accountID and returns how many went.
	DeleteAllFor(ctx context.Context, accountID string) (int64, error)
}
