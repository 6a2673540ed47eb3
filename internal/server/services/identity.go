package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/filex"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/edumate/internal/timex"
)

// Session is the result of a successful login.
type Session struct {
	Account *models.Account
	Token   string
}

// IdentityService owns account lifecycle: registration, login, profile
// edits, avatar replacement and deletion.
type IdentityService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	hasher       PasswordHasher
	sessions     SessionIssuer
	verification VerificationSender
	blobs        BlobStore
	uploadsDir   string
	clock        timex.Clock
	log          logging.Logger
}

// IdentityDeps groups the collaborators of IdentityService.
type IdentityDeps struct {
	Hasher       PasswordHasher
	Sessions     SessionIssuer
	Verification VerificationSender
	Blobs        BlobStore
	UploadsDir   string
	Clock        timex.Clock
	Logger       logging.Logger
}

// NewIdentityService builds the service. A nil Clock or Logger in deps
// falls back to the system clock and a no-op logger.
func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, deps IdentityDeps) *IdentityService {
	if deps.Clock == nil {
		deps.Clock = timex.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop{}
	}
	return &IdentityService{
		db:           db,
		repomanager:  m,
		hasher:       deps.Hasher,
		sessions:     deps.Sessions,
		verification: deps.Verification,
		blobs:        deps.Blobs,
		uploadsDir:   deps.UploadsDir,
		clock:        deps.Clock,
		log:          deps.Logger.With("service", "identity"),
	}
}

// Register creates an unverified account and mails its verification link.
// If the mail cannot be sent the account is removed again.
func (s *IdentityService) Register(ctx context.Context, in models.Registration) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)

	if _, err := repo.GetByUsername(ctx, in.Username); err == nil {
		return nil, common.ErrDuplicateUsername
	} else if !isNotFound(err) {
		return nil, unknown(ctx, s.log, "lookup username", err)
	}
	if _, err := repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, common.ErrDuplicateEmail
	} else if !isNotFound(err) {
		return nil, unknown(ctx, s.log, "lookup email", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, unknown(ctx, s.log, "hash password", err)
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Bio:          in.Bio,
		DisplayName:  in.Username,
		SignUpDate:   s.clock.Now(),
		Following:    []string{},
		Followers:    []string{},
	}
	if err := repo.Create(ctx, account); err != nil {
		return nil, s.writeError(ctx, "create account", err)
	}

	if err := s.verification.IssueAndSend(ctx, account); err != nil {
		s.log.Warn(ctx, "verification mail failed, removing account", "account_id", account.ID, "error", err)
		if derr := repo.Delete(ctx, account.ID); derr != nil {
			s.log.Error(ctx, "remove unverifiable account failed", "account_id", account.ID, "error", derr)
		}
		return nil, common.ErrMailDispatch
	}

	s.log.Info(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

// Authenticate checks credentials and issues a session token.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, s.log, "lookup account", err)
	}

	if !s.hasher.Verify(account.PasswordHash, password) {
		return nil, common.ErrPasswordMismatch
	}

	token, err := s.sessions.IssueSession(account.ID, account.IsVerified)
	if err != nil {
		return nil, unknown(ctx, s.log, "issue session token", err)
	}
	if err := withGraph(ctx, s.repomanager, s.db, account); err != nil {
		return nil, unknown(ctx, s.log, "load follow graph", err)
	}

	return &Session{Account: account, Token: token}, nil
}

// UpdateProfile changes username and email. A value already owned by a
// different account is a conflict; keeping one's own value is not.
func (s *IdentityService) UpdateProfile(ctx context.Context, accountID string, in models.ProfileUpdate) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)

	account, err := s.get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if in.Email != account.Email {
		if other, err := repo.GetByEmail(ctx, in.Email); err == nil && other.ID != account.ID {
			return nil, common.ErrDuplicateEmail
		} else if err != nil && !isNotFound(err) {
			return nil, unknown(ctx, s.log, "lookup email", err)
		}
	}
	if in.Username != account.Username {
		if other, err := repo.GetByUsername(ctx, in.Username); err == nil && other.ID != account.ID {
			return nil, common.ErrDuplicateUsername
		} else if err != nil && !isNotFound(err) {
			return nil, unknown(ctx, s.log, "lookup username", err)
		}
	}

	account.Username, account.Email = in.Username, in.Email
	return s.save(ctx, account)
}

// ChangeBio replaces the account's bio.
func (s *IdentityService) ChangeBio(ctx context.Context, accountID, bio string) (*models.Account, error) {
	if err := models.ValidateBio(bio); err != nil {
		return nil, err
	}
	account, err := s.get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account.Bio = bio
	return s.save(ctx, account)
}

// ChangeDisplayName replaces the account's display name.
func (s *IdentityService) ChangeDisplayName(ctx context.Context, accountID, name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if err := models.ValidateDisplayName(name); err != nil {
		return nil, err
	}
	account, err := s.get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account.DisplayName = name
	return s.save(ctx, account)
}

// ChangeAvatar uploads content as the new avatar and returns its URL. The
// upload is staged through a temporary file that is removed on every path.
func (s *IdentityService) ChangeAvatar(ctx context.Context, accountID, filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: avatar is empty", common.ErrorValidation)
	}

	account, err := s.get(ctx, accountID)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	tmp, err := filex.WriteTemp(s.uploadsDir, "avatar-*"+ext, bytes.NewReader(content))
	if err != nil {
		return "", unknown(ctx, s.log, "stage avatar", err)
	}
	defer func() {
		if err := tmp.Release(); err != nil {
			s.log.Warn(ctx, "release staged avatar failed", "path", tmp.Path, "error", err)
		}
	}()

	f, err := tmp.Open()
	if err != nil {
		return "", unknown(ctx, s.log, "open staged avatar", err)
	}
	defer f.Close()

	key := fmt.Sprintf("avatars/%s/%s%s", account.ID, uuid.NewString(), ext)
	obj, err := s.blobs.Upload(ctx, key, f, http.DetectContentType(content))
	if err != nil {
		return "", unknown(ctx, s.log, "upload avatar", err)
	}

	previous := account.AvatarID
	account.AvatarURL, account.AvatarID = obj.URL, obj.ID
	if err := s.repomanager.Accounts(s.db).Update(ctx, account); err != nil {
		s.deleteBlob(ctx, obj.ID)
		return "", unknown(ctx, s.log, "record avatar", err)
	}

	if previous != "" && previous != obj.ID {
		s.deleteBlob(ctx, previous)
	}
	return obj.URL, nil
}

// DeleteAccount removes the account and every follow edge touching it in
// one transaction. The returned account carries its graph as it was. The
// account's posts and their attachments are removed afterwards.
func (s *IdentityService) DeleteAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var (
		account *models.Account
		posts   []*models.Post
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.GetByID(ctx, accountID)
		if err != nil {
			if isNotFound(err) {
				return common.ErrUserNotFound
			}
			return err
		}
		if err := withGraph(ctx, s.repomanager, tx, a); err != nil {
			return err
		}
		if _, err := s.repomanager.Follows(tx).DeleteAllFor(ctx, a.ID); err != nil {
			return err
		}
		p, err := s.repomanager.Posts(tx).ListByPoster(ctx, a.ID)
		if err != nil {
			return err
		}
		posts = p
		if err := repo.Delete(ctx, a.ID); err != nil {
			if isNotFound(err) {
				return common.ErrUserNotFound
			}
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, err
		}
		return nil, unknown(ctx, s.log, "delete account", err)
	}

	if account.AvatarID != "" {
		s.deleteBlob(ctx, account.AvatarID)
	}
	s.dropPosts(ctx, account.ID, posts)
	s.log.Info(ctx, "account deleted", "account_id", account.ID)
	return account, nil
}

// GetByID returns the account with its follow graph.
func (s *IdentityService) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := withGraph(ctx, s.repomanager, s.db, account); err != nil {
		return nil, unknown(ctx, s.log, "load follow graph", err)
	}
	return account, nil
}

// GetByEmail returns the account registered with email, graph included.
func (s *IdentityService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, s.log, "lookup account", err)
	}
	if err := withGraph(ctx, s.repomanager, s.db, account); err != nil {
		return nil, unknown(ctx, s.log, "load follow graph", err)
	}
	return account, nil
}

// ListAccounts returns every account in sign-up order. An empty
// directory is an empty slice, never nil.
func (s *IdentityService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.repomanager.Accounts(s.db).List(ctx)
	if err != nil {
		return nil, unknown(ctx, s.log, "list accounts", err)
	}
	for _, a := range accounts {
		if err := withGraph(ctx, s.repomanager, s.db, a); err != nil {
			return nil, unknown(ctx, s.log, "load follow graph", err)
		}
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	return accounts, nil
}

func (s *IdentityService) get(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, s.log, "lookup account", err)
	}
	return account, nil
}

func (s *IdentityService) save(ctx context.Context, account *models.Account) (*models.Account, error) {
	if err := s.repomanager.Accounts(s.db).Update(ctx, account); err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, s.writeError(ctx, "update account", err)
	}
	if err := withGraph(ctx, s.repomanager, s.db, account); err != nil {
		return nil, unknown(ctx, s.log, "load follow graph", err)
	}
	return account, nil
}

// writeError maps a unique-constraint race lost at write time.
func (s *IdentityService) writeError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrDuplicateUsername):
		return common.ErrDuplicateUsername
	case errors.Is(err, common.ErrDuplicateEmail):
		return common.ErrDuplicateEmail
	}
	return unknown(ctx, s.log, op, err)
}

func (s *IdentityService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "delete blob failed", "key", key, "error", err)
	}
}

// dropPosts removes posts a deleted account leaves behind. PostgreSQL rows
// are already gone with the account; a document store still holds them.
func (s *IdentityService) dropPosts(ctx context.Context, accountID string, posts []*models.Post) {
	if _, err := s.repomanager.Posts(s.db).DeleteByPoster(ctx, accountID); err != nil {
		s.log.Warn(ctx, "delete posts failed", "account_id", accountID, "error", err)
	}
	for _, p := range posts {
		for _, a := range p.Attachments {
			s.deleteBlob(ctx, a.PublicID)
		}
	}
}
