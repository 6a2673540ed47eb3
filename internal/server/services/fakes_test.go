package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/dbx"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/auth"
	"github.com/dmitrijs2005/edumate/internal/server/blob"
	"github.com/dmitrijs2005/edumate/internal/server/mail"
	"github.com/dmitrijs2005/edumate/internal/server/models"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/follows"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/posts"
)

// --- in-memory repositories ---

type edge struct{ follower, followee string }

type memStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	edges    []edge
	passkeys []models.Passkey
	posts    []models.Post
	errs     map[string]error
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]models.Account{}, errs: map[string]error{}}
}

func (s *memStore) fail(op string) error { return s.errs[op] }

type memAccounts struct{ s *memStore }

func (r *memAccounts) conflict(a *models.Account) error {
	for id, other := range r.s.accounts {
		if id == a.ID {
			continue
		}
		if other.Username == a.Username {
			return fmt.Errorf("%w: %w", common.ErrorAlreadyExists, common.ErrDuplicateUsername)
		}
		if other.Email == a.Email {
			return fmt.Errorf("%w: %w", common.ErrorAlreadyExists, common.ErrDuplicateEmail)
		}
	}
	return nil
}

func (r *memAccounts) Create(ctx context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("accounts.Create"); err != nil {
		return err
	}
	if err := r.conflict(a); err != nil {
		return err
	}
	stored := *a
	stored.Following, stored.Followers = nil, nil
	r.s.accounts[a.ID] = stored
	return nil
}

func (r *memAccounts) find(op string, match func(models.Account) bool) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	for _, a := range r.s.accounts {
		if match(a) {
			cp := a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.find("accounts.GetByID", func(a models.Account) bool { return a.ID == id })
}

func (r *memAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.find("accounts.GetByEmail", func(a models.Account) bool { return a.Email == email })
}

func (r *memAccounts) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.find("accounts.GetByUsername", func(a models.Account) bool { return a.Username == username })
}

func (r *memAccounts) List(ctx context.Context) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("accounts.List"); err != nil {
		return nil, err
	}
	var out []*models.Account
	for _, a := range r.s.accounts {
		cp := a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memAccounts) Update(ctx context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("accounts.Update"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[a.ID]; !ok {
		return common.ErrorNotFound
	}
	if err := r.conflict(a); err != nil {
		return err
	}
	stored := *a
	stored.Following, stored.Followers = nil, nil
	r.s.accounts[a.ID] = stored
	return nil
}

func (r *memAccounts) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("accounts.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.accounts, id)
	return nil
}

type memFollows struct{ s *memStore }

func (r *memFollows) index(follower, followee string) int {
	for i, e := range r.s.edges {
		if e.follower == follower && e.followee == followee {
			return i
		}
	}
	return -1
}

func (r *memFollows) Create(ctx context.Context, follower, followee string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("follows.Create"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[followee]; !ok {
		return common.ErrorNotFound
	}
	if r.index(follower, followee) >= 0 {
		return common.ErrorAlreadyExists
	}
	r.s.edges = append(r.s.edges, edge{follower, followee})
	return nil
}

func (r *memFollows) Delete(ctx context.Context, follower, followee string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("follows.Delete"); err != nil {
		return err
	}
	i := r.index(follower, followee)
	if i < 0 {
		return common.ErrorNotFound
	}
	r.s.edges = append(r.s.edges[:i], r.s.edges[i+1:]...)
	return nil
}

func (r *memFollows) Exists(ctx context.Context, follower, followee string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("follows.Exists"); err != nil {
		return false, err
	}
	return r.index(follower, followee) >= 0, nil
}

func (r *memFollows) collect(op string, pick func(edge) (string, bool)) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range r.s.edges {
		if id, ok := pick(e); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memFollows) Following(ctx context.Context, id string) ([]string, error) {
	return r.collect("follows.Following", func(e edge) (string, bool) { return e.followee, e.follower == id })
}

func (r *memFollows) Followers(ctx context.Context, id string) ([]string, error) {
	return r.collect("follows.Followers", func(e edge) (string, bool) { return e.follower, e.followee == id })
}

func (r *memFollows) DeleteAllFor(ctx context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("follows.DeleteAllFor"); err != nil {
		return 0, err
	}
	kept := r.s.edges[:0]
	var n int64
	for _, e := range r.s.edges {
		if e.follower == id || e.followee == id {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.edges = kept
	return n, nil
}

type memPasskeys struct{ s *memStore }

func (r *memPasskeys) Create(ctx context.Context, p *models.Passkey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("passkeys.Create"); err != nil {
		return err
	}
	r.s.passkeys = append(r.s.passkeys, *p)
	return nil
}

func (r *memPasskeys) Restore(ctx context.Context, p *models.Passkey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("passkeys.Restore"); err != nil {
		return err
	}
	for _, stored := range r.s.passkeys {
		if stored.ID == p.ID {
			return nil
		}
	}
	r.s.passkeys = append(r.s.passkeys, *p)
	return nil
}

func (r *memPasskeys) FindLatestByEmail(ctx context.Context, email string) (*models.Passkey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("passkeys.FindLatestByEmail"); err != nil {
		return nil, err
	}
	var latest *models.Passkey
	for i := range r.s.passkeys {
		p := r.s.passkeys[i]
		if p.Email == email && (latest == nil || !p.CreatedAt.Before(latest.CreatedAt)) {
			latest = &p
		}
	}
	if latest == nil {
		return nil, common.ErrorNotFound
	}
	return latest, nil
}

func (r *memPasskeys) remove(op string, match func(models.Passkey) bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return 0, err
	}
	kept := r.s.passkeys[:0]
	var n int64
	for _, p := range r.s.passkeys {
		if match(p) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.s.passkeys = kept
	return n, nil
}

func (r *memPasskeys) Delete(ctx context.Context, id string) error {
	n, err := r.remove("passkeys.Delete", func(p models.Passkey) bool { return p.ID == id })
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *memPasskeys) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	return r.remove("passkeys.DeleteByEmail", func(p models.Passkey) bool { return p.Email == email })
}

func (r *memPasskeys) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.remove("passkeys.DeleteOlderThan", func(p models.Passkey) bool { return p.CreatedAt.Before(cutoff) })
}

type memPosts struct{ s *memStore }

func (r *memPosts) Create(ctx context.Context, p *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.Create"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[p.PosterID]; !ok {
		return common.ErrorNotFound
	}
	r.s.posts = append(r.s.posts, *p)
	return nil
}

func (r *memPosts) ListByPoster(ctx context.Context, posterID string) ([]*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.ListByPoster"); err != nil {
		return nil, err
	}
	var out []*models.Post
	for i := len(r.s.posts) - 1; i >= 0; i-- {
		if p := r.s.posts[i]; p.PosterID == posterID {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *memPosts) DeleteByPoster(ctx context.Context, posterID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.DeleteByPoster"); err != nil {
		return 0, err
	}
	kept := r.s.posts[:0]
	var n int64
	for _, p := range r.s.posts {
		if p.PosterID == posterID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.s.posts = kept
	return n, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository     { return &memAccounts{m.s} }
func (m *fakeRepoManager) Follows(db dbx.DBTX) follows.Repository       { return &memFollows{m.s} }
func (m *fakeRepoManager) Passkeys(db dbx.DBTX) passkeys.Store          { return &memPasskeys{m.s} }
func (m *fakeRepoManager) Posts(db dbx.DBTX) posts.Repository           { return &memPosts{m.s} }

// --- collaborators ---

type fakeHasher struct{ err error }

func (h fakeHasher) Hash(p string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + p, nil
}

func (h fakeHasher) Verify(digest, p string) bool { return digest == "hashed:"+p }

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.SendEmailParams
	err  error
}

func (m *fakeMailer) SendEmail(ctx context.Context, p mail.SendEmailParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, p)
	return nil
}

func (m *fakeMailer) last(t *testing.T) mail.SendEmailParams {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

type upload struct {
	key, body, contentType, stagedPath string
}

type fakeBlobs struct {
	uploads   []upload
	deleted   []string
	uploadErr error
	deleteErr error
	// okUploads is how many uploads succeed before uploadErr applies.
	okUploads int
}

func (b *fakeBlobs) Upload(ctx context.Context, key string, body io.Reader, contentType string) (*blob.Object, error) {
	up := upload{key: key, contentType: contentType}
	if named, ok := body.(interface{ Name() string }); ok {
		up.stagedPath = named.Name()
	}
	raw, _ := io.ReadAll(body)
	up.body = string(raw)
	b.uploads = append(b.uploads, up)
	if b.uploadErr != nil && len(b.uploads) > b.okUploads {
		return nil, b.uploadErr
	}
	return &blob.Object{ID: key, URL: "https://cdn.example.com/" + key}, nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return b.deleteErr
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- harness ---

const verifyURL = "http://localhost:8080/verifyUserEmail"

type harness struct {
	db     *sql.DB
	mock   sqlmock.Sqlmock
	store  *memStore
	rm     *fakeRepoManager
	clock  *fakeClock
	mailer *fakeMailer
	blobs  *fakeBlobs
	codec  *auth.Codec

	identity     *IdentityService
	verification *VerificationWorkflow
	reset        *PasswordResetWorkflow
	graph        *SocialGraph
	posts        *PostService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	h := &harness{
		db:     db,
		mock:   mock,
		store:  newMemStore(),
		clock:  &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		mailer: &fakeMailer{},
		blobs:  &fakeBlobs{},
	}
	h.rm = &fakeRepoManager{s: h.store}

	h.codec, err = auth.NewCodec(auth.CodecConfig{
		SessionKey:      []byte("session-key"),
		VerificationKey: []byte("verification-key"),
		Issuer:          "edumate",
		Audience:        "edumate-app",
	}, h.clock)
	require.NoError(t, err)

	log := logging.Nop{}
	h.verification = NewVerificationWorkflow(db, h.rm, h.codec, h.mailer, verifyURL, 10*time.Minute, log)
	h.identity = NewIdentityService(db, h.rm, IdentityDeps{
		Hasher:       fakeHasher{},
		Sessions:     h.codec,
		Verification: h.verification,
		Blobs:        h.blobs,
		UploadsDir:   t.TempDir(),
		Clock:        h.clock,
		Logger:       log,
	})
	h.reset = NewPasswordResetWorkflow(db, h.rm, fakeHasher{}, h.mailer, h.clock, 10*time.Minute, log)
	h.graph = NewSocialGraph(db, h.rm, log)
	h.posts = NewPostService(db, h.rm, PostDeps{
		Blobs:      h.blobs,
		UploadsDir: t.TempDir(),
		Clock:      h.clock,
		Logger:     log,
	})
	return h
}

// expectTx declares one transaction on the sqlmock connection.
func (h *harness) expectTx(commit bool) {
	h.mock.ExpectBegin()
	if commit {
		h.mock.ExpectCommit()
	} else {
		h.mock.ExpectRollback()
	}
}

func (h *harness) register(t *testing.T, username, email string) *models.Account {
	t.Helper()
	in, err := models.NewRegistration(username, email, "password123", "")
	require.NoError(t, err)
	a, err := h.identity.Register(context.Background(), in)
	require.NoError(t, err)
	return a
}

// verificationToken pulls the token out of the last verification mail.
func (h *harness) verificationToken(t *testing.T) string {
	t.Helper()
	msg := h.mailer.last(t)
	require.Equal(t, mail.TagVerification, msg.Tag)
	link := msg.BodyText[strings.Index(msg.BodyText, "http"):]
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func (h *harness) latestPasskey(t *testing.T, email string) models.Passkey {
	t.Helper()
	p, err := (&memPasskeys{h.store}).FindLatestByEmail(context.Background(), email)
	require.NoError(t, err)
	return *p
}
