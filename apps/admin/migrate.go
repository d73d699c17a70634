package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations",
		Long: "Run a goose command with the embedded migrations.\n" +
			"Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix.",
		Example: "  admin migrate up\n  admin migrate down-to 1\n  admin migrate status",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.migrate(cmd.Context(), args[0], args[1:]...)
		},
	}
}
