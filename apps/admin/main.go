package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	dig_container "github.com/trezcool/jarida/apps/api/di/dig"
	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/user"
	appfs "github.com/trezcool/jarida/fs"
	"github.com/trezcool/jarida/storage/database"
)

func main() {
	conf := core.NewConfig()
	var mailSvc core.EmailService

	deps := commandDeps{
		out:          os.Stdout,
		readPassword: term.ReadPassword,
		migrate: func(ctx context.Context, command string, args ...string) error {
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return err
			}
			db, err := database.Open(conf)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(ctx, db.DB, command, args...)
		},
		services: func() (services, error) {
			var svcs services
			err := dig_container.New().Invoke(func(
				logger core.Logger,
				usrRepo user.Repository,
				reviewSvc review.Service,
				publicationSvc publication.Service,
				emailSvc core.EmailService,
			) {
				core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, false, logger)
				mailSvc = emailSvc
				svcs = services{usrRepo: usrRepo, reviewSvc: reviewSvc, publicationSvc: publicationSvc}
			})
			return svcs, err
		},
	}

	err := newRootCommand(deps).Execute()

	// wait for the emails sent in the background
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
