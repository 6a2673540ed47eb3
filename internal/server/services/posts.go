package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/filex"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/edumate/internal/timex"
)

// PostService publishes posts to user feeds. Attachments are staged in the
// uploads directory and then stored in the blob store.
type PostService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       BlobStore
	uploadsDir  string
	clock       timex.Clock
	log         logging.Logger
}

// PostDeps groups the collaborators of PostService.
type PostDeps struct {
	Blobs      BlobStore
	UploadsDir string
	Clock      timex.Clock
	Logger     logging.Logger
}

func NewPostService(db *sql.DB, m repomanager.RepositoryManager, deps PostDeps) *PostService {
	if deps.Clock == nil {
		deps.Clock = timex.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop{}
	}
	return &PostService{
		db:          db,
		repomanager: m,
		blobs:       deps.Blobs,
		uploadsDir:  deps.UploadsDir,
		clock:       deps.Clock,
		log:         deps.Logger.With("service", "posts"),
	}
}

// Publish stores draft on the poster's own feed. Only verified accounts may
// post. Either every attachment is stored with the post or none is kept.
func (s *PostService) Publish(ctx context.Context, posterID string, draft models.PostDraft) (*models.Post, error) {
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, posterID)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, s.log, "lookup poster", err)
	}
	if !account.IsVerified {
		return nil, common.ErrNotVerified
	}

	post := &models.Post{
		ID:          uuid.NewString(),
		PosterID:    account.ID,
		Content:     draft.Content,
		Attachments: make([]models.PostAttachment, 0, len(draft.Attachments)),
		UploadDate:  s.clock.Now(),
		Parent:      models.PostParent{ID: account.ID, Type: models.ParentUser},
	}

	for i, up := range draft.Attachments {
		att, err := s.storeAttachment(ctx, post.ID, i, up)
		if err != nil {
			s.discard(ctx, post.Attachments)
			return nil, unknown(ctx, s.log, "store attachment", err)
		}
		post.Attachments = append(post.Attachments, *att)
	}

	if err := s.repomanager.Posts(s.db).Create(ctx, post); err != nil {
		s.discard(ctx, post.Attachments)
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, s.log, "create post", err)
	}

	s.log.Info(ctx, "post published", "post_id", post.ID, "account_id", account.ID, "attachments", len(post.Attachments))
	return post, nil
}

func (s *PostService) storeAttachment(ctx context.Context, postID string, i int, up models.Upload) (*models.PostAttachment, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	tmp, err := filex.WriteTemp(s.uploadsDir, "post-*"+ext, bytes.NewReader(up.Content))
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}
	defer func() {
		if err := tmp.Release(); err != nil {
			s.log.Warn(ctx, "release staged attachment failed", "path", tmp.Path, "error", err)
		}
	}()

	f, err := tmp.Open()
	if err != nil {
		return nil, fmt.Errorf("open staged: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("posts/%s/%d-%s%s", postID, i, uuid.NewString(), ext)
	obj, err := s.blobs.Upload(ctx, key, f, http.DetectContentType(up.Content))
	if err != nil {
		return nil, err
	}
	return &models.PostAttachment{DownloadLink: obj.URL, PublicID: obj.ID}, nil
}

func (s *PostService) discard(ctx context.Context, attachments []models.PostAttachment) {
	for _, a := range attachments {
		if err := s.blobs.Delete(ctx, a.PublicID); err != nil {
			s.log.Warn(ctx, "delete attachment blob failed", "key", a.PublicID, "error", err)
		}
	}
}

// Feed returns the posts on username's feed, newest first.
func (s *PostService) Feed(ctx context.Context, username string) ([]*models.Post, error) {
	account, err := s.repomanager.Accounts(s.db).GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, unknown(ctx, s.log, "lookup account", err)
	}

	posts, err := s.repomanager.Posts(s.db).ListByPoster(ctx, account.ID)
	if err != nil {
		return nil, unknown(ctx, s.log, "list posts", err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}
