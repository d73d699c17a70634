package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

var userRowColumns = []string{
	"id", "name", "username", "email", "affiliation", "orcid", "expertise", "subject_areas", "declared_conflicts",
	"is_active", "roles", "password_hash", "created_at", "updated_at", "last_login",
}

func TestUserRepository_GetUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM "user" WHERE username = \$1 LIMIT 1`).
		WithArgs("jdoe").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f", "John Doe", "jdoe", nil, "MIT", "",
			"{genomics,proteomics}", "{biology}", "{}", true, "{reviewer:}", []byte("hash"), created, created, nil,
		))

	usr, err := repo.GetUser(ctx, user.GetFilter{Username: "jdoe"})
	require.NoError(t, err)
	assert.Equal(t, "John Doe", usr.Name)
	assert.Equal(t, "", usr.Email)
	assert.Equal(t, []string{"genomics", "proteomics"}, usr.Expertise)
	assert.True(t, usr.Active())
	assert.True(t, usr.IsReviewer())
	assert.True(t, usr.LastLogin.IsZero())
	assert.Equal(t, created, usr.CreatedAt)
}

func TestUserRepository_GetUser_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .+ FROM "user" WHERE id = \$1`).
		WithArgs("4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.GetUser(ctx, user.GetFilter{ID: "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f"})
	assert.Equal(t, user.ErrNotFound, err)

	// invalid UUIDs never reach the database
	_, err = repo.GetUser(ctx, user.GetFilter{ID: "42"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUserRepository_CheckUsernameUniqueness(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM "user" WHERE \(username = \$1 OR email = \$2\)\)`).
		WithArgs("jdoe", "jdoe@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	assert.Equal(t, user.ErrUserExists, repo.CheckUsernameUniqueness(ctx, "jdoe", "jdoe@example.com"))

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM "user" WHERE .+ AND NOT \(id = ANY\(\$3::uuid\[\]\)\)\)`).
		WithArgs("jdoe", nil, "{\"4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f\"}").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	excluded := user.User{ID: "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f"}
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "jdoe", "", excluded))
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	usr := user.User{Name: "Jane Doe", Email: "jane@example.com", Roles: []string{user.RoleAuthor}, CreatedAt: core.Now()}

	mock.ExpectExec(`INSERT INTO "user"`).WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateUser(ctx, usr)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, usr.Email, created.Email)
	assert.Equal(t, []string{}, created.Expertise)

	mock.ExpectExec(`INSERT INTO "user"`).WillReturnError(&pq.Error{Code: uniqueViolation})
	_, err = repo.CreateUser(ctx, usr)
	assert.Equal(t, user.ErrUserExists, err)
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .+ FROM "user" WHERE \(name ILIKE \$1 OR username ILIKE \$2 OR email ILIKE \$3\) ` +
		`AND id IN \(SELECT id FROM "user", UNNEST\(roles\) user_role WHERE user_role ILIKE ANY\(\$4\)\) ` +
		`ORDER BY name ASC, id ASC`).
		WithArgs("%doe%", "%doe%", "%doe%", "{\"editor:%\"}").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	filter := &user.QueryFilter{Search: "doe", Roles: []string{user.RoleEditor}}
	users, err := repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "name", Ascending: true}})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserRepository_UpdateUser_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE "user" SET .+ WHERE id = \$14`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateUser(context.Background(), user.User{ID: "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f", Name: "x"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUserRepository_DeleteUsersByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`DELETE FROM "user" WHERE id = ANY\(\$1::uuid\[\]\)`).
		WithArgs("{\"4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f\"}").
		WillReturnResult(sqlmock.NewResult(0, 1))
	cnt, err := repo.DeleteUsersByID(context.Background(), "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f", "bogus")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
}
