package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/rs/zerolog"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/decision"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/publication"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
	metricsvc "github.com/trezcool/jarida/services/metrics"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		AccessLog  *zerolog.Logger // request logs are disabled when nil
		Validate   *validator.Validate
		Translator ut.Translator
		Metrics    *metricsvc.Prometheus

		UserSvc         user.Service
		SubmissionSvc   submission.Service
		FileSvc         file.Service
		ReviewSvc       review.Service
		DecisionSvc     decision.Service
		ProductionSvc   production.Service
		PublicationSvc  publication.Service
		NotificationSvc notification.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		limiter  *rateLimiter
		errors   chan error
		shutdown chan os.Signal
		done     chan struct{} // closed once the server stops
		stopOnce sync.Once
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		limiter:  newRateLimiter(deps.Conf.Server),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.deps.AccessLog != nil {
		s.app.Use(accessLogMiddleware(*s.deps.AccessLog))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	pub := publicationApi{deps: s.deps}
	s.app.GET("/oai", pub.oai)
	s.app.POST("/oai", pub.oai)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))
	throttle := s.limiter.middleware()

	registerUserAPI(v1, jwt, throttle, s.deps)
	registerSubmissionAPI(v1, jwt, s.deps)
	registerReviewAPI(v1, jwt, s.deps)
	registerDecisionAPI(v1, jwt, s.deps)
	registerProductionAPI(v1, jwt, s.deps)
	registerPublicationAPI(v1, jwt, s.deps)
	registerNotificationAPI(v1, jwt, s.deps)
}

// Start listens until the server is shut down; failures are sent to Errors().
func (s *Server) Start() {
	go s.forgetIdleClients(time.Minute, 3*time.Minute)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// forgetIdleClients drops the rate limits of clients idle for `idle`, until the server stops.
func (s *Server) forgetIdleClients(every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.limiter.cleanup(idle)
		case <-s.done:
			return
		}
	}
}

func (s *Server) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	s.stop()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.stop()
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.Journal.Name+" API!")
}

func accessLogMiddleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			req, res := ctx.Request(), ctx.Response()
			logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", ctx.RealIP()).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}
