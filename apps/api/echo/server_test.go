package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
)

func TestServer_home(t *testing.T) {
	rec := do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Jarida Journal of Science API!", rec.Body.String())

	// trailing slashes are ignored
	rec = do(http.MethodGet, "/v1/issues/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_metrics(t *testing.T) {
	do(http.MethodGet, "/v1/issues", "")

	rec := do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jarida_http_inflight_requests")
}

func TestAppHTTPErrorHandler(t *testing.T) {
	var shutdowns int
	handler := newAppHTTPErrorHandler(core.NopLogger{}, env.Translator, func() { shutdowns++ })

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "http error",
			err:      errHttpNotFound,
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"not found"}`,
		},
		{
			name:     "not found",
			err:      errors.Wrap(core.NewNotFoundError("issue not found"), "getting issue"),
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"issue not found"}`,
		},
		{
			name:     "field errors",
			err:      errors.Wrap(core.NewValidationError(nil, core.FieldError{Field: "title", Error: "too short"}), "creating"),
			wantCode: http.StatusBadRequest,
			wantBody: `{"title":"too short"}`,
		},
		{
			name:     "plain validation error",
			err:      core.NewValidationError(errors.New("invalid token")),
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"invalid token"}`,
		},
		{
			name:     "conflict",
			err:      errors.Wrap(core.NewConflictError(errors.New("already in production")), "starting"),
			wantCode: http.StatusConflict,
			wantBody: `{"error":"already in production"}`,
		},
		{
			name:     "permission denied",
			err:      errors.Wrap(core.ErrPermissionDenied, "publishing"),
			wantCode: http.StatusForbidden,
			wantBody: `{"error":"permission denied"}`,
		},
		{
			name:     "server error",
			err:      errors.New("db is down"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Internal Server Error"}`,
		},
		{
			name:     "shutdown",
			err:      errors.Wrap(core.NewShutdownError("integrity issue"), "saving"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Internal Server Error"}`,
		},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			handler(tt.err, ctx)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
	assert.Equal(t, 1, shutdowns)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(core.ServerConfig{RateLimit: 1, RateBurst: 2})

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	// limits are per client
	assert.True(t, rl.allow("10.0.0.2"))

	rl.cleanup(time.Hour)
	assert.Len(t, rl.limiters, 2)
	rl.cleanup(0)
	assert.Empty(t, rl.limiters)

	e := echo.New()
	h := rl.middleware()(func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) })
	for i, want := range []error{nil, nil, errTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/v1/users/login", nil)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.3")
		assert.Equal(t, want, h(e.NewContext(req, httptest.NewRecorder())), "request %d", i)
	}
}

func TestServer_forgetIdleClients(t *testing.T) {
	srv := &Server{
		app:     echo.New(),
		limiter: newRateLimiter(core.ServerConfig{RateLimit: 0.001, RateBurst: 1}),
		done:    make(chan struct{}),
	}
	require.True(t, srv.limiter.allow("10.0.0.1"))
	require.False(t, srv.limiter.allow("10.0.0.1"))

	stopped := make(chan struct{})
	go func() {
		srv.forgetIdleClients(time.Millisecond, 0)
		close(stopped)
	}()

	// a forgotten client starts over with a full burst
	assert.Eventually(t, func() bool { return srv.limiter.allow("10.0.0.1") }, time.Second, 5*time.Millisecond)

	assert.NoError(t, srv.Close())
	assert.NoError(t, srv.Close())
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("forgetIdleClients still running after Close")
	}
}
