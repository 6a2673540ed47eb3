package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
)

// SocialGraph maintains the directed follow relation between accounts.
type SocialGraph struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

// NewSocialGraph builds the graph service; log may be nil.
func NewSocialGraph(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *SocialGraph {
	if log == nil {
		log = logging.Nop{}
	}
	return &SocialGraph{db: db, repomanager: m, log: log.With("service", "social_graph")}
}

// graphOutcomes are returned from inside the transaction unchanged.
var graphOutcomes = []error{
	common.ErrUserNotFound,
	common.ErrCannotFollowSelf,
	common.ErrUserAlreadyFollowed,
	common.ErrUserNotFollowed,
}

// Follow makes followerID follow the account named followeeUsername.
func (g *SocialGraph) Follow(ctx context.Context, followerID, followeeUsername string) error {
	return g.mutate(ctx, "follow", followerID, followeeUsername, func(ctx context.Context, tx dbx.DBTX, follower, followee *models.Account) error {
		follows := g.repomanager.Follows(tx)

		exists, err := follows.Exists(ctx, follower.ID, followee.ID)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrUserAlreadyFollowed
		}
		if err := follows.Create(ctx, follower.ID, followee.ID); err != nil {
			switch {
			case errors.Is(err, common.ErrorAlreadyExists):
				return common.ErrUserAlreadyFollowed
			case isNotFound(err):
				return common.ErrUserNotFound
			}
			return err
		}
		return nil
	})
}

// Unfollow removes the edge from followerID to followeeUsername.
func (g *SocialGraph) Unfollow(ctx context.Context, followerID, followeeUsername string) error {
	return g.mutate(ctx, "unfollow", followerID, followeeUsername, func(ctx context.Context, tx dbx.DBTX, follower, followee *models.Account) error {
		if err := g.repomanager.Follows(tx).Delete(ctx, follower.ID, followee.ID); err != nil {
			if isNotFound(err) {
				return common.ErrUserNotFollowed
			}
			return err
		}
		return nil
	})
}

func (g *SocialGraph) mutate(ctx context.Context, op, followerID, followeeUsername string,
	fn func(ctx context.Context, tx dbx.DBTX, follower, followee *models.Account) error) error {
	err := dbx.WithTx(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := g.repomanager.Accounts(tx)

		follower, err := accounts.GetByID(ctx, followerID)
		if err != nil {
			if isNotFound(err) {
				return common.ErrUserNotFound
			}
			return err
		}
		followee, err := accounts.GetByUsername(ctx, followeeUsername)
		if err != nil {
			if isNotFound(err) {
				return common.ErrUserNotFound
			}
			return err
		}
		if follower.ID == followee.ID {
			return common.ErrCannotFollowSelf
		}
		return fn(ctx, tx, follower, followee)
	})
	if err == nil {
		return nil
	}
	for _, outcome := range graphOutcomes {
		if errors.Is(err, outcome) {
			return outcome
		}
	}
	return unknown(ctx, g.log, op, err)
}

// Following lists the accounts username follows.
func (g *SocialGraph) Following(ctx context.Context, username string) ([]*models.Account, error) {
	return g.list(ctx, username, true)
}

// Followers lists the accounts following username.
func (g *SocialGraph) Followers(ctx context.Context, username string) ([]*models.Account, error) {
	return g.list(ctx, username, false)
}

func (g *SocialGraph) list(ctx context.Context, username string, following bool) ([]*models.Account, error) {
	accounts := g.repomanager.Accounts(g.db)

	account, err := accounts.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, g.log, "lookup account", err)
	}
	if err := withGraph(ctx, g.repomanager, g.db, account); err != nil {
		return nil, unknown(ctx, g.log, "load follow graph", err)
	}

	ids := account.Followers
	if following {
		ids = account.Following
	}

	result := make([]*models.Account, 0, len(ids))
	for _, id := range ids {
		a, err := accounts.GetByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				// removed between the two reads
				continue
			}
			return nil, unknown(ctx, g.log, "lookup account", err)
		}
		if err := withGraph(ctx, g.repomanager, g.db, a); err != nil {
			return nil, unknown(ctx, g.log, "load follow graph", err)
		}
		result = append(result, a)
	}
	return result, nil
}
