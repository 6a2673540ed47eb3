package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

var uploaded = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const insertQ = `(?s)^INSERT\s+INTO\s+posts\s*\(id,\s*poster_id,\s*content,\s*attachments,\s*upload_date,\s*likes,\s*parent_id,\s*parent_type\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8\)$`

func samplePost() *models.Post {
	return &models.Post{
		ID:       "p1",
		PosterID: "a1",
		Content:  "hello",
		Attachments: []models.PostAttachment{
			{DownloadLink: "https://cdn.example.com/posts/p1/0.png", PublicID: "posts/p1/0.png"},
		},
		UploadDate: uploaded,
		Parent:     models.PostParent{ID: "a1", Type: models.ParentUser},
	}
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ctx := context.Background()

	mock.ExpectExec(insertQ).
		WithArgs("p1", "a1", "hello",
			`[{"download_link":"https://cdn.example.com/posts/p1/0.png","public_id":"posts/p1/0.png"}]`,
			uploaded, 0, "a1", "user").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(ctx, samplePost()))

	bare := samplePost()
	bare.Attachments = nil
	mock.ExpectExec(insertQ).
		WithArgs("p1", "a1", "hello", `[]`, uploaded, 0, "a1", "user").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(ctx, bare))
}

func TestCreate_Errors(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ctx := context.Background()

	mock.ExpectExec(insertQ).WillReturnError(&pgconn.PgError{Code: "23503"})
	assert.ErrorIs(t, repo.Create(ctx, samplePost()), common.ErrorNotFound)

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))
	err := repo.Create(ctx, samplePost())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestListByPoster(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)^SELECT\s+id,\s*poster_id,\s*content,\s*attachments,\s*upload_date,\s*likes,\s*parent_id,\s*parent_type\s+FROM\s+posts\s+WHERE\s+poster_id\s*=\s*\$1\s+ORDER\s+BY\s+upload_date\s+DESC,\s*id$`
	cols := []string{"id", "poster_id", "content", "attachments", "upload_date", "likes", "parent_id", "parent_type"}

	mock.ExpectQuery(q).WithArgs("a1").WillReturnRows(sqlmock.NewRows(cols).
		AddRow("p2", "a1", "second", []byte(`[]`), uploaded.Add(time.Minute), 3, "a1", "user").
		AddRow("p1", "a1", "hello", []byte(`[{"download_link":"https://x/0.png","public_id":"posts/p1/0.png"}]`), uploaded, 0, "a1", "user"))

	got, err := repo.ListByPoster(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].ID)
	assert.Equal(t, 3, got[0].Likes)
	assert.Empty(t, got[0].Attachments)
	assert.Equal(t, []models.PostAttachment{{DownloadLink: "https://x/0.png", PublicID: "posts/p1/0.png"}}, got[1].Attachments)
	assert.Equal(t, models.PostParent{ID: "a1", Type: models.ParentUser}, got[1].Parent)

	mock.ExpectQuery(q).WithArgs("a2").WillReturnRows(sqlmock.NewRows(cols))
	got, err = repo.ListByPoster(context.Background(), "a2")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	mock.ExpectQuery(q).WithArgs("a3").WillReturnRows(sqlmock.NewRows(cols).
		AddRow("p3", "a3", "x", []byte(`{not json`), uploaded, 0, "a3", "user"))
	_, err = repo.ListByPoster(context.Background(), "a3")
	assert.Error(t, err)
}

func TestDeleteByPoster(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)^DELETE\s+FROM\s+posts\s+WHERE\s+poster_id\s*=\s*\$1$`

	mock.ExpectExec(q).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.DeleteByPoster(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec(q).WithArgs("a1").WillReturnError(errors.New("db down"))
	_, err = repo.DeleteByPoster(context.Background(), "a1")
	assert.Error(t, err)
}
