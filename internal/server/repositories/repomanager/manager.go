package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/follows"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/posts"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository code inside or outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Follows(db dbx.DBTX) follows.Repository
	Passkeys(db dbx.DBTX) passkeys.Store
	Posts(db dbx.DBTX) posts.Repository
}
