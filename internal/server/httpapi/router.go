// Package httpapi exposes the account services over JSON/HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/auth"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/services"
)

// Identity is implemented by *services.IdentityService.
type Identity interface {
	Register(ctx context.Context, in models.Registration) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*services.Session, error)
	UpdateProfile(ctx context.Context, accountID string, in models.ProfileUpdate) (*models.Account, error)
	ChangeBio(ctx context.Context, accountID, bio string) (*models.Account, error)
	ChangeDisplayName(ctx context.Context, accountID, name string) (*models.Account, error)
	ChangeAvatar(ctx context.Context, accountID, filename string, content []byte) (string, error)
	DeleteAccount(ctx context.Context, accountID string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
}

// Verification is implemented by *services.VerificationWorkflow.
type Verification interface {
	Consume(ctx context.Context, token string) (*models.Account, error)
}

// PasswordReset is implemented by *services.PasswordResetWorkflow.
type PasswordReset interface {
	RequestReset(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, email, passkey, newPassword string) (*models.Account, error)
}

// Graph is implemented by *services.SocialGraph.
type Graph interface {
	Follow(ctx context.Context, followerID, followeeUsername string) error
	Unfollow(ctx context.Context, followerID, followeeUsername string) error
	Following(ctx context.Context, username string) ([]*models.Account, error)
	Followers(ctx context.Context, username string) ([]*models.Account, error)
}

// Posts is implemented by *services.PostService.
type Posts interface {
	Publish(ctx context.Context, posterID string, draft models.PostDraft) (*models.Post, error)
	Feed(ctx context.Context, username string) ([]*models.Post, error)
}

// SessionParser is implemented by *auth.Codec.
type SessionParser interface {
	ParseSession(token string) (*auth.Claims, error)
}

// Handlers serves the HTTP routes.
type Handlers struct {
	identity          Identity
	verification      Verification
	reset             PasswordReset
	graph             Graph
	posts             Posts
	sessions          SessionParser
	maxAvatarSize     int64
	maxAttachmentSize int64
	log               logging.Logger
}

// Deps groups the collaborators of Handlers.
type Deps struct {
	Identity          Identity
	Verification      Verification
	PasswordReset     PasswordReset
	Graph             Graph
	Posts             Posts
	Sessions          SessionParser
	MaxAvatarSize     int64
	MaxAttachmentSize int64
	Logger            logging.Logger
}

// Upload caps applied when Deps leaves them zero.
const (
	DefaultMaxAvatarSize     = 5 << 20
	DefaultMaxAttachmentSize = 10 << 20
)

func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	if d.MaxAvatarSize <= 0 {
		d.MaxAvatarSize = DefaultMaxAvatarSize
	}
	if d.MaxAttachmentSize <= 0 {
		d.MaxAttachmentSize = DefaultMaxAttachmentSize
	}
	return &Handlers{
		identity:          d.Identity,
		verification:      d.Verification,
		reset:             d.PasswordReset,
		graph:             d.Graph,
		posts:             d.Posts,
		sessions:          d.Sessions,
		maxAvatarSize:     d.MaxAvatarSize,
		maxAttachmentSize: d.MaxAttachmentSize,
		log:               d.Logger.With("module", "http_api"),
	}
}

// Routes builds the chi router.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/healthz", h.health)

	// public
	r.Post("/registerUser", h.register)
	r.Post("/login", h.login)
	r.Get("/verifyUserEmail", h.verifyEmail)
	r.Post("/password/reset", h.requestPasswordReset)
	r.Post("/password/change", h.changePassword)
	r.Get("/getAll", h.listAccounts)
	r.Get("/getByEmail", h.getByEmail)
	r.Get("/users/{username}/following", h.following)
	r.Get("/users/{username}/followers", h.followers)
	r.Get("/users/{username}/posts", h.feed)

	// session required
	r.Group(func(r chi.Router) {
		r.Use(authenticate(h.sessions))

		r.Put("/users/me", h.updateProfile)
		r.Delete("/users/me", h.deleteAccount)
		r.Put("/users/me/bio", h.changeBio)
		r.Put("/users/me/display-name", h.changeDisplayName)
		r.Put("/users/me/avatar", h.changeAvatar)
		r.Post("/users/{username}/follow", h.follow)
		r.Delete("/users/{username}/follow", h.unfollow)

		r.With(requireVerified).Post("/addPost", h.addPost)
	})

	return r
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
