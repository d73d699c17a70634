package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

const userColumns = `id, name, username, email, affiliation, orcid, expertise, subject_areas, declared_conflicts,
	is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Username          null.String    `db:"username"`
	Email             null.String    `db:"email"`
	Affiliation       string         `db:"affiliation"`
	ORCID             string         `db:"orcid"`
	Expertise         pq.StringArray `db:"expertise"`
	SubjectAreas      pq.StringArray `db:"subject_areas"`
	DeclaredConflicts pq.StringArray `db:"declared_conflicts"`
	IsActive          bool           `db:"is_active"`
	Roles             pq.StringArray `db:"roles"`
	PasswordHash      []byte         `db:"password_hash"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	LastLogin         null.Time      `db:"last_login"`
}

type userRepository struct {
	exec sqlx.ExtContext
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec sqlx.ExtContext) user.Repository {
	return &userRepository{exec: exec}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:                usr.ID,
		Name:              usr.Name,
		Username:          null.NewString(usr.Username, usr.Username != ""),
		Email:             null.NewString(usr.Email, usr.Email != ""),
		Affiliation:       usr.Affiliation,
		ORCID:             usr.ORCID,
		Expertise:         textArray(usr.Expertise),
		SubjectAreas:      textArray(usr.SubjectAreas),
		DeclaredConflicts: textArray(usr.DeclaredConflicts),
		IsActive:          usr.Active(),
		Roles:             textArray(usr.Roles),
		PasswordHash:      usr.PasswordHash,
		CreatedAt:         usr.CreatedAt.UTC(),
		UpdatedAt:         usr.UpdatedAt.UTC(),
		LastLogin:         nullTime(usr.LastLogin),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	return user.User{
		ID:                row.ID,
		Name:              row.Name,
		Username:          row.Username.String,
		Email:             row.Email.String,
		Affiliation:       row.Affiliation,
		ORCID:             row.ORCID,
		Expertise:         row.Expertise,
		SubjectAreas:      row.SubjectAreas,
		DeclaredConflicts: row.DeclaredConflicts,
		IsActive:          core.BoolPtr(row.IsActive),
		Roles:             row.Roles,
		PasswordHash:      row.PasswordHash,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
		LastLogin:         row.LastLogin.Time.UTC(),
	}
}

func (repo userRepository) unboilSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unboil(row))
	}
	return users
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var where whereClause
	where.and("(username = ? OR email = ?)", null.NewString(username, username != ""), null.NewString(email, email != ""))
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		where.and("NOT (id = ANY(?::uuid[]))", validIDs(ids))
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM "user"` + where.String() + `)`
	if err := getRow(ctx, repo.exec, &exists, q, where.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.boil(usr)
	q := `INSERT INTO "user" (` + userColumns + `) VALUES (
		:id, :name, :username, :email, :affiliation, :orcid, :expertise, :subject_areas, :declared_conflicts,
		:is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var where whereClause

	if filter != nil {
		if filter.IDs != nil {
			where.and("id = ANY(?::uuid[])", validIDs(filter.IDs))
		}
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.and("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			prefixes := make(pq.StringArray, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				prefixes = append(prefixes, role+"%")
			}
			where.and(`id IN (SELECT id FROM "user", UNNEST(roles) user_role WHERE user_role ILIKE ANY(?))`, prefixes)
		}
		if filter.SubjectArea != "" {
			where.and("? = ANY(subject_areas)", filter.SubjectArea)
		}
		if filter.IsActive != nil {
			where.and("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			where.and("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where.and("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM "user"` + where.String() + orderBy(ordering, "created_at DESC")
	if err := selectRows(ctx, repo.exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where whereClause

	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		where.and("id = ?", filter.ID)
	case filter.Username != "":
		where.and("username = ?", filter.Username)
	case filter.Email != "":
		where.and("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		where.and("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user"` + where.String() + ` LIMIT 1`
	if err := getRow(ctx, repo.exec, &row, q, where.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := repo.boil(usr)
	q := `UPDATE "user" SET name = :name, username = :username, email = :email, affiliation = :affiliation,
		orcid = :orcid, expertise = :expertise, subject_areas = :subject_areas, declared_conflicts = :declared_conflicts,
		is_active = :is_active, roles = :roles, password_hash = :password_hash, updated_at = :updated_at,
		last_login = :last_login
		WHERE id = :id`
	cnt, err := namedExecAffected(ctx, repo.exec, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unboil(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	cnt, err := execAffected(ctx, repo.exec, `DELETE FROM "user" WHERE id = ANY(?::uuid[])`, validIDs(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return cnt, nil
}
