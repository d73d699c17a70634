package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

func newResetPasswordCommand(deps commandDeps) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:     "resetpassword",
		Short:   "Reset a user's password",
		Example: "  admin resetpassword --username ada@journal.test",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return usageErrorf("resetpassword requires --username")
			}
			pwd, err := promptPassword(deps, "Enter password")
			if err != nil {
				return err
			}
			svcs, err := deps.services()
			if err != nil {
				return err
			}
			if err = resetPassword(cmd.Context(), svcs.usrRepo, username, pwd); err != nil {
				return err
			}
			_, err = fmt.Fprintln(deps.out, "password updated")
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "The user's username or email. The password will be prompted next.")
	return cmd
}

func resetPassword(ctx context.Context, repo user.Repository, uname, pwd string) error {
	usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	_, err = repo.UpdateUser(ctx, usr)
	return err
}
