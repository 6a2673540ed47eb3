package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

var columns = []string{"id", "username", "email", "password_hash", "bio", "avatar_url", "avatar_id", "display_name", "sign_up_date", "is_verified"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return NewPostgresRepository(db), mock, db
}

func alice() *models.Account {
	return &models.Account{
		ID:           "0b6f9c1e-0000-4000-8000-000000000001",
		Username:     "alice",
		Email:        "a@x.io",
		PasswordHash: "$argon2id$digest",
		DisplayName:  "alice",
		SignUpDate:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := alice()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*username,\s*email,.*\)\s*VALUES\s*\(\$1,.*\$10\)$`).
		WithArgs(a.ID, "alice", "a@x.io", a.PasswordHash, "", "", "", "alice", a.SignUpDate, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_UniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{usernameConstraint, common.ErrDuplicateUsername},
		{emailConstraint, common.ErrDuplicateEmail},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(`INSERT\s+INTO\s+accounts`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

			err := repo.Create(context.Background(), alice())
			if !errors.Is(err, common.ErrorAlreadyExists) || !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+accounts`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), alice())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("plain failure must not look like a duplicate")
	}
}

func TestGetters_Found(t *testing.T) {
	a := alice()
	getters := map[string]func(*PostgresRepository) (*models.Account, error){
		"id":       func(r *PostgresRepository) (*models.Account, error) { return r.GetByID(context.Background(), a.ID) },
		"email":    func(r *PostgresRepository) (*models.Account, error) { return r.GetByEmail(context.Background(), a.Email) },
		"username": func(r *PostgresRepository) (*models.Account, error) { return r.GetByUsername(context.Background(), a.Username) },
	}
	args := map[string]string{"id": a.ID, "email": a.Email, "username": a.Username}

	for column, get := range getters {
		t.Run(column, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			rows := sqlmock.NewRows(columns).
				AddRow(a.ID, a.Username, a.Email, a.PasswordHash, "hi", "", "", a.DisplayName, a.SignUpDate, true)
			mock.ExpectQuery(`(?s)^SELECT\s+id,.*is_verified\s+FROM\s+accounts\s+WHERE\s+` + column + `\s*=\s*\$1$`).
				WithArgs(args[column]).
				WillReturnRows(rows)

			got, err := get(repo)
			if err != nil {
				t.Fatalf("get error: %v", err)
			}
			if got.ID != a.ID || got.Bio != "hi" || !got.IsVerified || !got.SignUpDate.Equal(a.SignUpDate) {
				t.Fatalf("unexpected account: %+v", got)
			}
		})
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+accounts\s+WHERE\s+email`).
		WithArgs("ghost@x.io").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@x.io")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := alice()
	rows := sqlmock.NewRows(columns).
		AddRow(a.ID, "alice", "a@x.io", "h", "", "", "", "alice", a.SignUpDate, false).
		AddRow("id-2", "bob", "b@x.io", "h", "", "", "", "bob", a.SignUpDate.Add(time.Hour), true)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+ORDER\s+BY\s+sign_up_date`).WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0].Username != "alice" || got[1].Username != "bob" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestList_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).
		AddRow("id-1", "alice", "a@x.io", "h", "", "", "", "alice", time.Now(), false).
		RowError(0, errors.New("broken row"))
	mock.ExpectQuery(`FROM\s+accounts`).WillReturnRows(rows)

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := alice()
	a.IsVerified = true
	q := `(?s)^UPDATE\s+accounts\s+SET\s+username\s*=\s*\$2,.*is_verified\s*=\s*\$9\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).
		WithArgs(a.ID, a.Username, a.Email, a.PasswordHash, "", "", "", a.DisplayName, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: emailConstraint})

	if err := repo.Update(context.Background(), a); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := repo.Update(context.Background(), a); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if err := repo.Update(context.Background(), a); !errors.Is(err, common.ErrDuplicateEmail) {
		t.Fatalf("want duplicate email, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("id-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("id-1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "id-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), "id-1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}
