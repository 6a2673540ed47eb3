package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/mail"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/edumate/internal/timex"
)

// passkeyBytes random bytes give a 12 character hex passkey.
const passkeyBytes = 6

// PasswordResetWorkflow lets a user change a forgotten password with a
// short-lived, single-use passkey sent to their email.
type PasswordResetWorkflow struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	mailer      mail.EmailSender
	clock       timex.Clock
	ttl         time.Duration
	log         logging.Logger
}

func NewPasswordResetWorkflow(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher,
	mailer mail.EmailSender, clock timex.Clock, ttl time.Duration, log logging.Logger) *PasswordResetWorkflow {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &PasswordResetWorkflow{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		mailer:      mailer,
		clock:       clock,
		ttl:         ttl,
		log:         log.With("service", "password_reset"),
	}
}

// RequestReset replaces any pending passkey for email with a fresh one and
// mails it. A mail failure leaves the stored passkey in place.
func (w *PasswordResetWorkflow) RequestReset(ctx context.Context, email string) error {
	account, err := w.repomanager.Accounts(w.db).GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return common.ErrUserNotFound
		}
		return unknown(ctx, w.log, "lookup account", err)
	}

	store := w.repomanager.Passkeys(w.db)
	if _, err := store.DeleteByEmail(ctx, account.Email); err != nil {
		return unknown(ctx, w.log, "drop previous passkeys", err)
	}

	code, err := common.MakeRandHexString(passkeyBytes)
	if err != nil {
		return unknown(ctx, w.log, "generate passkey", err)
	}
	passkey := &models.Passkey{
		ID:        uuid.NewString(),
		Email:     account.Email,
		Passkey:   code,
		CreatedAt: w.clock.Now(),
	}
	if err := store.Create(ctx, passkey); err != nil {
		return unknown(ctx, w.log, "store passkey", err)
	}

	msg, err := mail.PasskeyEmail(account.Email, account.Username, code, w.ttl)
	if err != nil {
		return unknown(ctx, w.log, "render passkey email", err)
	}
	if err := w.mailer.SendEmail(ctx, msg); err != nil {
		w.log.Warn(ctx, "passkey mail failed", "account_id", account.ID, "error", err)
		return common.ErrMailDispatch
	}
	return nil
}

// VerifyPasskey checks candidate against the newest passkey for email.
func (w *PasswordResetWorkflow) VerifyPasskey(ctx context.Context, email, candidate string) (*models.Passkey, error) {
	passkey, err := w.repomanager.Passkeys(w.db).FindLatestByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrPasskeyNotFound
		}
		return nil, unknown(ctx, w.log, "lookup passkey", err)
	}

	if subtle.ConstantTimeCompare([]byte(passkey.Passkey), []byte(candidate)) != 1 {
		return nil, common.ErrIncorrectPasskey
	}
	if passkey.Expired(w.clock.Now(), w.ttl) {
		return nil, common.ErrPasskeyTooOld
	}
	return passkey, nil
}

// ChangePassword consumes a valid passkey and stores the new password.
// Consuming the passkey and writing the password happen in one transaction;
// if the write fails the passkey stays usable. Of two concurrent calls with
// the same passkey only one succeeds.
func (w *PasswordResetWorkflow) ChangePassword(ctx context.Context, email, candidate, newPassword string) (*models.Account, error) {
	if err := models.ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	passkey, err := w.VerifyPasskey(ctx, email, candidate)
	if err != nil {
		return nil, err
	}

	account, err := w.repomanager.Accounts(w.db).GetByEmail(ctx, passkey.Email)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, w.log, "lookup account", err)
	}

	hash, err := w.hasher.Hash(newPassword)
	if err != nil {
		return nil, unknown(ctx, w.log, "hash password", err)
	}
	account.PasswordHash = hash

	consumed := false
	err = dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := w.repomanager.Passkeys(tx).Delete(ctx, passkey.ID); err != nil {
			if isNotFound(err) {
				return common.ErrPasskeyNotFound
			}
			return err
		}
		consumed = true

		if err := w.repomanager.Accounts(tx).Update(ctx, account); err != nil {
			if isNotFound(err) {
				return common.ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		if consumed {
			w.restore(ctx, passkey)
		}
		switch {
		case errors.Is(err, common.ErrPasskeyNotFound), errors.Is(err, common.ErrUserNotFound):
			return nil, err
		}
		return nil, unknown(ctx, w.log, "update password", err)
	}

	if err := withGraph(ctx, w.repomanager, w.db, account); err != nil {
		return nil, unknown(ctx, w.log, "load follow graph", err)
	}

	w.log.Info(ctx, "password changed", "account_id", account.ID)
	return account, nil
}

// restore returns a consumed passkey to stores that the rolled back
// transaction did not cover.
func (w *PasswordResetWorkflow) restore(ctx context.Context, passkey *models.Passkey) {
	if err := w.repomanager.Passkeys(w.db).Restore(ctx, passkey); err != nil {
		w.log.Error(ctx, "restore passkey failed", "email", passkey.Email, "error", err)
	}
}
