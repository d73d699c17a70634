package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trezcool/jarida/core/publication"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/user"
)

var errUsage = errors.New("invalid usage")

type (
	// services are only set up by the commands that need them.
	services struct {
		usrRepo        user.Repository
		reviewSvc      review.Service
		publicationSvc publication.Service
	}

	commandDeps struct {
		out          io.Writer
		readPassword func(fd int) ([]byte, error)
		migrate      func(ctx context.Context, command string, args ...string) error
		services     func() (services, error)
	}
)

func usageErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func newRootCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Jarida administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(deps.out)
	cmd.SetErr(deps.out)

	cmd.AddCommand(
		newMigrateCommand(deps),
		newAddUserCommand(deps),
		newResetPasswordCommand(deps),
		newRemindReviewersCommand(deps),
		newRedepositCommand(deps),
	)
	return cmd
}

// promptPassword reads a password from the terminal, without echo.
func promptPassword(deps commandDeps, label string) (string, error) {
	_, _ = fmt.Fprint(deps.out, label+":")
	pwd, err := deps.readPassword(int(syscall.Stdin))
	_, _ = fmt.Fprintln(deps.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", usageErrorf("a password is required")
	}
	return string(pwd), nil
}
