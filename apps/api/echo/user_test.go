package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core/user"
	testutil "github.com/trezcool/jarida/tests"
)

const testPwd = "Kq7#wPz!9mLx"

func createUsers(t *testing.T) (admin, editor, author, inactive user.User) {
	admin = testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@journal.test", testPwd,
		[]string{user.RoleAdmin}, true)
	editor = testutil.CreateUser(t, env.UserRepo, "Mary Editor", "meditor", "editor@journal.test", testPwd,
		[]string{user.RoleEditor}, true)
	author = testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", testPwd,
		[]string{user.RoleAuthor}, true)
	inactive = testutil.CreateUser(t, env.UserRepo, "Gone Away", "goneaway", "gone@journal.test", testPwd,
		[]string{user.RoleAuthor}, false)
	return
}

func TestUserApi_login(t *testing.T) {
	env.Reset()
	_, _, author, inactive := createUsers(t)

	runHTTPTests(t, []httpTest{
		{
			name:     "missing credentials",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marchallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: author.Username, Password: "Wrong#Pwd1"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: testPwd}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: inactive.Username, Password: testPwd}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("by email", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/login", "",
			marchallObj(t, LoginRequest{Username: "ADA@journal.test", Password: testPwd}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		token := field(rec, "token").String()
		assert.NotEmpty(t, token)

		// the token authenticates further requests
		rec = do(http.MethodGet, "/v1/users/me", token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, author.ID, field(rec, "id").String())
		assert.False(t, field(rec, "last_login").Time().IsZero())
	})
}

func TestUserApi_register(t *testing.T) {
	env.Reset()
	createUsers(t)

	newUser := func(uname, email, pwd string) user.NewUser {
		return user.NewUser{
			Name:            "Rosalind Franklin",
			Username:        uname,
			Email:           email,
			Affiliation:     "King's College London",
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           []string{user.RoleAdmin},
		}
	}

	t.Run("weak password", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/register", "", marchallObj(t, newUser("rfranklin", "rosalind@kcl.test", "password")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.True(t, field(rec, "password").Exists(), rec.Body.String())
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/register", "", marchallObj(t, newUser("adalovelace", "rosalind@kcl.test", testPwd)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, user.ErrUserExists.Error(), field(rec, "username").String())
	})

	t.Run("success", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/register", "", marchallObj(t, newUser(" RFranklin ", "Rosalind@KCL.test", testPwd)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "rfranklin", field(rec, "username").String())
		assert.Equal(t, "rosalind@kcl.test", field(rec, "email").String())
		// requested roles are ignored on sign-up
		assert.JSONEq(t, `["author:"]`, field(rec, "roles").Raw)
		assert.False(t, field(rec, "password").Exists())
	})
}

func TestUserApi_authRequired(t *testing.T) {
	env.Reset()
	admin, editor, author, _ := createUsers(t)

	runHTTPTests(t, []httpTest{
		{
			name:     "no token",
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "me",
			path:     "/v1/users/me",
			token:    getToken(t, editor),
			wantData: marchallObj(t, editor),
		},
		{
			name:     "roles",
			path:     "/v1/users/roles",
			token:    getToken(t, author),
			wantData: marchallObj(t, user.Roles),
		},
		{
			name:     "list requires admin",
			path:     "/v1/users",
			token:    getToken(t, editor),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "other user is hidden",
			path:     "/v1/users/" + editor.ID,
			token:    getToken(t, author),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "own profile",
			path:     "/v1/users/" + author.ID,
			token:    getToken(t, author),
			wantData: marchallObj(t, author),
		},
		{
			name:     "admin sees everyone",
			path:     "/v1/users/" + author.ID,
			token:    getToken(t, admin),
			wantData: marchallObj(t, author),
		},
	})

	t.Run("admin query", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/users?search=lovelace", getToken(t, admin))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, string(marchallList(t, author)), rec.Body.String())
	})
}

func TestUserApi_update(t *testing.T) {
	env.Reset()
	admin, editor, author, _ := createUsers(t)

	t.Run("author cannot change own roles", func(t *testing.T) {
		rec := do(http.MethodPut, "/v1/users/"+author.ID, getToken(t, author),
			marchallObj(t, user.UpdateUser{Roles: []string{user.RoleEditor}}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("author updates own profile", func(t *testing.T) {
		aff := "University of London"
		rec := do(http.MethodPut, "/v1/users/"+author.ID, getToken(t, author),
			marchallObj(t, user.UpdateUser{Affiliation: &aff, Expertise: []string{"Analytical Engines"}}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, aff, field(rec, "affiliation").String())
		assert.JSONEq(t, `["analytical engines"]`, field(rec, "expertise").Raw)
	})

	t.Run("editor cannot grant admin", func(t *testing.T) {
		// editors are not admins, so they cannot even reach another user's profile
		rec := do(http.MethodPut, "/v1/users/"+author.ID, getToken(t, editor),
			marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAdmin}}))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("admin cannot grant owner", func(t *testing.T) {
		rec := do(http.MethodPut, "/v1/users/"+author.ID, getToken(t, admin),
			marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAdminOwner}}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errNoPermsToSetRoles, field(rec, "roles").String())
	})

	t.Run("admin promotes to reviewer", func(t *testing.T) {
		rec := do(http.MethodPut, "/v1/users/"+author.ID, getToken(t, admin),
			marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAuthor, user.RoleReviewer}}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `["author:","reviewer:"]`, field(rec, "roles").Raw)
	})
}

func TestUserApi_destroy(t *testing.T) {
	env.Reset()
	admin, editor, author, inactive := createUsers(t)
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "theowner", "owner@journal.test", testPwd,
		[]string{user.RoleAdminOwner}, true)
	token := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{
			name:     "self",
			method:   http.MethodDelete,
			path:     "/v1/users/" + admin.ID,
			token:    token,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "higher role",
			method:   http.MethodDelete,
			path:     "/v1/users/" + owner.ID,
			token:    token,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "non admin",
			method:   http.MethodDelete,
			path:     "/v1/users/" + author.ID,
			token:    getToken(t, author),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "success",
			method:   http.MethodDelete,
			path:     "/v1/users/" + author.ID,
			token:    token,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "multiple including self",
			method:   http.MethodDelete,
			path:     "/v1/users?id=" + editor.ID + "&id=" + admin.ID,
			token:    token,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "multiple",
			method:   http.MethodDelete,
			path:     "/v1/users?id=" + editor.ID + "&id=" + inactive.ID,
			token:    token,
			wantCode: http.StatusNoContent,
		},
	})

	users, err := env.UserSvc.Query(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, users, 2) // admin & owner
}

func TestUserApi_refreshToken(t *testing.T) {
	env.Reset()
	_, _, author, _ := createUsers(t)

	t.Run("valid", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/token-refresh", getToken(t, author))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, field(rec, "token").String())
	})

	t.Run("expired refresh", func(t *testing.T) {
		origIat := time.Now().Add(-env.Conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()
		token, err := GenerateToken(env.Conf, GetUserClaims(env.Conf, author, origIat))
		require.NoError(t, err)

		rec := do(http.MethodPost, "/v1/users/token-refresh", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, string(marchallObj(t, httpErr{Error: "refresh has expired"})), rec.Body.String())
	})
}

func TestUserApi_passwordReset(t *testing.T) {
	env.Reset()
	_, _, author, _ := createUsers(t)

	t.Run("unknown email gets the same answer", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/password-reset", "", marchallObj(t, PasswordResetRequest{Email: "nobody@journal.test"}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, env.Mail.Messages())
	})

	t.Run("request", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/password-reset", "", marchallObj(t, PasswordResetRequest{Email: author.Email}))
		assert.Equal(t, http.StatusOK, rec.Code)
		msgs := env.Mail.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, author.Email, msgs[0].To[0].Address)
		assert.Equal(t, "password_reset", msgs[0].TemplateName)
	})

	newPwd := "N3w&Secure#Pass"
	uid, token := user.MakePasswordResetToken(env.Conf, author)

	t.Run("bad token", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/password-reset-confirm", "", marchallObj(t, user.ResetUserPassword{
			UID: uid, Token: "1-bad", Password: newPwd, PasswordConfirm: newPwd,
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("confirm", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/users/password-reset-confirm", "", marchallObj(t, user.ResetUserPassword{
			UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd,
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(http.MethodPost, "/v1/users/login", "", marchallObj(t, LoginRequest{Username: author.Username, Password: newPwd}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
