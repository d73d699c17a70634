package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
	testutil "github.com/trezcool/jarida/tests"
)

func TestRoles(t *testing.T) {
	editor := user.User{Roles: []string{user.RoleEditorChief}}
	admin := user.User{Roles: []string{user.RoleAdminOwner}}
	staff := user.User{Roles: []string{user.RoleProduction}}
	author := user.User{Roles: []string{user.RoleAuthor, user.RoleReviewer}}

	assert.True(t, editor.IsEditor())
	assert.True(t, editor.IsProduction())
	assert.False(t, editor.IsAdmin())
	assert.True(t, admin.IsEditor())
	assert.True(t, staff.IsProduction())
	assert.False(t, staff.IsEditor())
	assert.True(t, author.IsReviewer())
	assert.False(t, author.IsProduction())

	assert.Equal(t, 20, user.MaxRolePriority(editor.Roles))
	assert.Equal(t, 6, user.MaxRolePriority(author.Roles))
	assert.Zero(t, user.RolePriority("janitor:"))
}

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	usr, err := env.UserSvc.Register(ctx, user.NewUser{
		Name:     "Ada Lovelace",
		Username: "adalovelace",
		Email:    "ada@journal.test",
		Password: "analytical-engine",
		Roles:    []string{user.RoleAdmin},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleAuthor}, usr.Roles)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("analytical-engine"))

	err = env.UserSvc.CheckUniqueness(ctx, "adalovelace", "")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "unexpected error: %v", err)
	assert.Len(t, verr.Fields, 2)
	assert.NoError(t, env.UserSvc.CheckUniqueness(ctx, "adalovelace", "ada@journal.test", usr))

	got, err := env.UserSvc.GetByUsernameOrEmail(ctx, " ADA@journal.test ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "Rita Levi", "ritalevi", "rita@lab.test", "old-pwd", []string{user.RoleReviewer}, true)

	aff := "Lab of Soil"
	inactive := false
	updated, err := env.UserSvc.Update(ctx, usr, user.UpdateUser{
		Name:        usr.Name,
		Username:    usr.Username,
		Email:       usr.Email,
		Expertise:   []string{"microbiome"},
		Affiliation: &aff,
		IsActive:    &inactive,
		Password:    "n3w-pwd",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lab of Soil", updated.Affiliation)
	assert.Equal(t, []string{"microbiome"}, updated.Expertise)
	assert.Equal(t, []string{user.RoleReviewer}, updated.Roles)
	assert.False(t, updated.Active())
	assert.NoError(t, updated.CheckPassword("n3w-pwd"))

	// inactive users cannot reset their password
	assert.ErrorIs(t, env.UserSvc.RequestPasswordReset(ctx, "rita@lab.test"), user.ErrNotFound)
	assert.Empty(t, env.Mail.Messages())
}

func TestService_PasswordReset(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", "old-pwd", []string{user.RoleAuthor}, true)

	assert.True(t, core.IsNotFound(env.UserSvc.RequestPasswordReset(ctx, "nobody@journal.test")))

	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, "ada@journal.test"))
	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ada@journal.test", msgs[0].To[0].Address)

	uid, token := user.MakePasswordResetToken(env.Conf, usr)
	assert.Contains(t, msgs[0].TextContent, uid+"/"+token)

	tests := []struct {
		name string
		data user.ResetUserPassword
	}{
		{name: "bad uid", data: user.ResetUserPassword{UID: "!!", Token: token, Password: "n3w-pwd"}},
		{name: "unknown uid", data: user.ResetUserPassword{UID: "bm9wZQ", Token: token, Password: "n3w-pwd"}},
		{name: "bad token", data: user.ResetUserPassword{UID: uid, Token: "HE4TS-sigsig-sig", Password: "n3w-pwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.UserSvc.ResetPassword(ctx, tt.data)
			var verr *core.ValidationError
			assert.True(t, errors.As(err, &verr), "unexpected error: %v", err)
		})
	}

	require.NoError(t, env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "n3w-pwd"}))
	got, err := env.UserSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("n3w-pwd"))

	// tokens are single use
	err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "again"})
	assert.Error(t, err)
}
