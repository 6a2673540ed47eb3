// Package services contains the server-side business logic: identity,
// email verification, password reset, the follow graph and the passkey
// sweeper. Every operation returns (payload, error) where a non-nil error
// matches exactly one of the sentinels in internal/common.
package services

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/blob"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
)

// PasswordHasher is satisfied by *cryptox.PasswordHasher.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(digest, plaintext string) bool
}

// SessionIssuer is the part of *auth.Codec used to log users in.
type SessionIssuer interface {
	IssueSession(accountID string, verified bool) (string, error)
}

// VerificationTokens is the part of *auth.Codec used by the verification workflow.
type VerificationTokens interface {
	IssueVerification(accountID string) (string, error)
	ParseVerification(token string) (string, error)
}

// BlobStore is satisfied by *blob.Uploader.
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (*blob.Object, error)
	Delete(ctx context.Context, key string) error
}

// VerificationSender issues and mails a verification link for a new account.
type VerificationSender interface {
	IssueAndSend(ctx context.Context, account *models.Account) error
}

// unknown logs an infrastructure failure and folds it into ErrUnknown.
func unknown(ctx context.Context, log logging.Logger, op string, err error) error {
	log.Error(ctx, op+" failed", "error", err)
	return common.ErrUnknown
}

// withGraph fills Following and Followers from the edge table.
func withGraph(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, a *models.Account) error {
	follows := m.Follows(db)

	following, err := follows.Following(ctx, a.ID)
	if err != nil {
		return err
	}
	followers, err := follows.Followers(ctx, a.ID)
	if err != nil {
		return err
	}
	a.Following, a.Followers = following, followers
	return nil
}

// isNotFound reports a repository miss.
func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
