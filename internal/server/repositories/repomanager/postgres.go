// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/server/migrations"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/follows"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/posts"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories. Passkeys
// and posts may be served from a document store (MongoDB) set with
// WithPasskeyStore and WithPostStore.
type PostgresRepositoryManager struct {
	passkeys passkeys.Store
	posts    posts.Repository
}

// Option customises a PostgresRepositoryManager.
type Option func(*PostgresRepositoryManager)

// WithPasskeyStore routes every Passkeys call to store, ignoring the DBTX.
func WithPasskeyStore(store passkeys.Store) Option {
	return func(m *PostgresRepositoryManager) {
		m.passkeys = store
	}
}

// WithPostStore routes every Posts call to repo, ignoring the DBTX.
func WithPostStore(repo posts.Repository) Option {
	return func(m *PostgresRepositoryManager) {
		m.posts = repo
	}
}

// Accounts returns an accounts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

// Follows returns a follows.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Follows(db dbx.DBTX) follows.Repository {
	return follows.NewPostgresRepository(db)
}

// Passkeys returns the configured passkey store, or a PostgreSQL one bound
// to the provided DBTX.
func (m *PostgresRepositoryManager) Passkeys(db dbx.DBTX) passkeys.Store {
	if m.passkeys != nil {
		return m.passkeys
	}
	return passkeys.NewPostgresStore(db)
}

// Posts returns the configured post repository, or a PostgreSQL one bound
// to the provided DBTX.
func (m *PostgresRepositoryManager) Posts(db dbx.DBTX) posts.Repository {
	if m.posts != nil {
		return m.posts
	}
	return posts.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(opts ...Option) *PostgresRepositoryManager {
	m := &PostgresRepositoryManager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
