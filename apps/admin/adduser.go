package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

func newAddUserCommand(deps commandDeps) *cobra.Command {
	var (
		name     string
		username string
		email    string
		roles    []string
		isAdmin  bool
	)
	cmd := &cobra.Command{
		Use:     "adduser",
		Short:   "Create a user, or update the one with the same username or email",
		Example: "  admin adduser --username ealuma --email editor@journal.test --role editor:chief\n  admin adduser --username root --email root@journal.test --admin",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" {
				return usageErrorf("adduser requires --username and --email")
			}
			for _, role := range roles {
				if user.RolePriority(role) == 0 {
					return usageErrorf("unknown role %q", role)
				}
			}
			if isAdmin {
				roles = append(roles, user.RoleAdmin)
			}
			pwd, err := promptPassword(deps, "Enter password")
			if err != nil {
				return err
			}
			svcs, err := deps.services()
			if err != nil {
				return err
			}
			usr, err := addUser(cmd.Context(), svcs.usrRepo, name, username, email, pwd, roles)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(deps.out, "user %s (%s) saved\n", usr.Username, usr.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name (defaults to the username)")
	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email (required)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to grant (repeatable), eg: editor:, reviewer:")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant the admin role")
	return cmd
}

// addUser updates or creates an active user.User
func addUser(ctx context.Context, repo user.Repository, name, uname, email, pwd string, roles []string) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}

	usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil && errors.Cause(err) == user.ErrNotFound {
		usr, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: email})
	}
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return user.User{}, err
	}

	now := core.Now()
	if !exists {
		usr = user.User{Name: name, Username: uname, Email: email, CreatedAt: now}
	}
	for _, role := range roles {
		if !core.StringInSlice(role, usr.Roles) {
			usr.Roles = append(usr.Roles, role)
		}
	}
	if len(usr.Roles) == 0 {
		usr.Roles = []string{user.RoleAuthor}
	}
	usr.UpdatedAt = now
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "setting password")
	}

	if exists {
		return repo.UpdateUser(ctx, usr)
	}
	return repo.CreateUser(ctx, usr)
}
