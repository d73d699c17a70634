package dig_container

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/jarida/apps/api/echo"
	"github.com/trezcool/jarida/apps/api/scheduler"
	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/decision"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/publication"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
	emailsvc "github.com/trezcool/jarida/services/email"
	logsvc "github.com/trezcool/jarida/services/logger"
	metricsvc "github.com/trezcool/jarida/services/metrics"
	registrarsvc "github.com/trezcool/jarida/services/registrar"
	storagesvc "github.com/trezcool/jarida/services/storage"
	"github.com/trezcool/jarida/storage/database"
	sqlxrepos "github.com/trezcool/jarida/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	ServerParams struct {
		dig.In
		Conf            *core.Config
		Logger          *logsvc.RollbarLogger
		Validate        *validator.Validate
		Translator      ut.Translator
		Metrics         *metricsvc.Prometheus
		UserSvc         user.Service
		SubmissionSvc   submission.Service
		FileSvc         file.Service
		ReviewSvc       review.Service
		DecisionSvc     decision.Service
		ProductionSvc   production.Service
		PublicationSvc  publication.Service
		NotificationSvc notification.Service
	}
)

func newLogger(conf *core.Config) (*logsvc.RollbarLogger, core.Logger) {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf).Named("api")
	return logger, logger
}

func newDBLogger(logger *logsvc.RollbarLogger) core.Logger {
	return logger.Named("db")
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, sqlx.ExtContext) {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout*6)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(os.Stdout, conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newBlobStore(conf *core.Config, logger core.Logger) (file.BlobStore, error) {
	return storagesvc.NewDiskStore(conf, logger)
}

func newMetrics(p *metricsvc.Prometheus) (core.Metrics, scheduler.JobRecorder) {
	return p, p
}

func newServer(p ServerParams) *echoapi.Server {
	accessLog := p.Logger.Named("http").Zerolog()
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		AccessLog:       &accessLog,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Metrics:         p.Metrics,
		UserSvc:         p.UserSvc,
		SubmissionSvc:   p.SubmissionSvc,
		FileSvc:         p.FileSvc,
		ReviewSvc:       p.ReviewSvc,
		DecisionSvc:     p.DecisionSvc,
		ProductionSvc:   p.ProductionSvc,
		PublicationSvc:  p.PublicationSvc,
		NotificationSvc: p.NotificationSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(opts ...dig.Option) *dig.Container {
	c := dig.New(opts...)

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newBlobStore))
	must(c.Provide(registrarsvc.New))
	must(c.Provide(metricsvc.NewPrometheus))
	must(c.Provide(newMetrics))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewSubmissionRepository))
	must(c.Provide(sqlxrepos.NewFileRepository))
	must(c.Provide(sqlxrepos.NewReviewRepository))
	must(c.Provide(sqlxrepos.NewDecisionRepository))
	must(c.Provide(sqlxrepos.NewProductionRepository))
	must(c.Provide(sqlxrepos.NewPublicationRepository))
	must(c.Provide(sqlxrepos.NewNotificationRepository))

	// services
	must(c.Provide(notification.NewService))
	must(c.Provide(user.NewService))
	must(c.Provide(file.NewService))
	must(c.Provide(submission.NewService))
	must(c.Provide(review.NewService))
	must(c.Provide(decision.NewService))
	must(c.Provide(production.NewService))
	must(c.Provide(publication.NewService))

	must(c.Provide(newServer))
	must(c.Provide(scheduler.New))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
