package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/mail"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
)

// VerificationWorkflow proves that a user controls their email address.
type VerificationWorkflow struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      VerificationTokens
	mailer      mail.EmailSender
	baseURL     string
	tokenTTL    time.Duration
	log         logging.Logger
}

func NewVerificationWorkflow(db *sql.DB, m repomanager.RepositoryManager, tokens VerificationTokens,
	mailer mail.EmailSender, baseURL string, tokenTTL time.Duration, log logging.Logger) *VerificationWorkflow {
	if log == nil {
		log = logging.Nop{}
	}
	return &VerificationWorkflow{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		mailer:      mailer,
		baseURL:     baseURL,
		tokenTTL:    tokenTTL,
		log:         log.With("service", "verification"),
	}
}

// IssueAndSend mints a verification token and mails the link to the
// account's address. Any failure matches common.ErrMailDispatch.
func (w *VerificationWorkflow) IssueAndSend(ctx context.Context, account *models.Account) error {
	token, err := w.tokens.IssueVerification(account.ID)
	if err != nil {
		return fmt.Errorf("%w: issue token: %v", common.ErrMailDispatch, err)
	}

	link, err := w.link(token)
	if err != nil {
		return fmt.Errorf("%w: build link: %v", common.ErrMailDispatch, err)
	}

	msg, err := mail.VerificationEmail(account.Email, account.Username, link, w.tokenTTL)
	if err != nil {
		return fmt.Errorf("%w: render: %v", common.ErrMailDispatch, err)
	}
	if err := w.mailer.SendEmail(ctx, msg); err != nil {
		return errors.Join(common.ErrMailDispatch, err)
	}
	return nil
}

func (w *VerificationWorkflow) link(token string) (string, error) {
	u, err := url.Parse(w.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Consume marks the account named by token as verified. Consuming a token
// for an already verified account succeeds without writing. Expired, tampered
// and malformed tokens all fail with the bare common.ErrInvalidToken.
func (w *VerificationWorkflow) Consume(ctx context.Context, token string) (*models.Account, error) {
	accountID, err := w.tokens.ParseVerification(token)
	if err != nil {
		w.log.Debug(ctx, "verification token rejected", "error", err)
		return nil, common.ErrInvalidToken
	}

	repo := w.repomanager.Accounts(w.db)
	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, w.log, "lookup account", err)
	}

	if !account.IsVerified {
		account.IsVerified = true
		if err := repo.Update(ctx, account); err != nil {
			if isNotFound(err) {
				return nil, common.ErrUserNotFound
			}
			return nil, unknown(ctx, w.log, "mark verified", err)
		}
		w.log.Info(ctx, "email verified", "account_id", account.ID)
	}

	if err := withGraph(ctx, w.repomanager, w.db, account); err != nil {
		return nil, unknown(ctx, w.log, "load follow graph", err)
	}
	return account, nil
}
