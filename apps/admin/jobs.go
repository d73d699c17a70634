package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/jarida/core"
)

func newRemindReviewersCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "remind-reviewers",
		Short: "Remind the reviewers whose reviews are due soon or overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := deps.services()
			if err != nil {
				return err
			}
			sent, err := svcs.reviewSvc.SendReminders(cmd.Context(), core.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(deps.out, "%d reminder(s) sent\n", sent)
			return err
		},
	}
}

func newRedepositCommand(deps commandDeps) *cobra.Command {
	var failed bool
	cmd := &cobra.Command{
		Use:     "redeposit",
		Short:   "Deposit the DOI metadata of published articles again",
		Example: "  admin redeposit --failed",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !failed {
				return usageErrorf("redeposit requires --failed")
			}
			svcs, err := deps.services()
			if err != nil {
				return err
			}
			registered, err := svcs.publicationSvc.RedepositFailed(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(deps.out, "%d article(s) registered\n", registered)
			return err
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "Retry the deposits that failed")
	return cmd
}
