package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/codepractice.net/internal/adapter/logging"
	"gitlab.com/codepractice.net/internal/adapter/redis/sessionport"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/core/services/submission"
	"gitlab.com/codepractice.net/internal/domain"
	http2 "gitlab.com/codepractice.net/internal/http"
	"gitlab.com/codepractice.net/internal/push/registry"
	"gitlab.com/codepractice.net/internal/static/errs"
)

type noSubmissions struct{}

func (noSubmissions) Submit(context.Context, int64, submission.SubmitRequest) (*domain.Submission, error) {
	return nil, errs.ErrTaskNotFound
}

type denyAll struct{}

func (denyAll) VerifyToken(context.Context, string) (int64, error) {
	return 0, errs.ErrInvalidToken
}

func newServer(t *testing.T, push http.Handler) *http2.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := logging.NewNopLogger()
	reg := registry.New()
	sessions := session.NewSessionService(reg,
		sessionport.NewSessionRepository(client, time.Minute, logger), logger)

	sp := http2.NewServiceProvider(noSubmissions{}, sessions, denyAll{}, push,
		func() string { return "CONSUMING" }, reg)
	srv := http2.NewServer(0, "notifier", *sp, logger)
	require.NoError(t, srv.Init())
	return srv
}

func TestRoutes(t *testing.T) {
	push := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := newServer(t, push).Handler()

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/ws", http.StatusTeapot},
		{http.MethodPost, "/api/submissions", http.StatusUnauthorized},
		{http.MethodGet, "/api/users/1/presence", http.StatusOK},
		{http.MethodGet, "/api/submissions", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestInit_RequiresServices(t *testing.T) {
	srv := http2.NewServer(0, "notifier", http2.ServiceProvider{}, logging.NewNopLogger())
	assert.Error(t, srv.Init())
}

func TestStopBeforeStart(t *testing.T) {
	assert.NoError(t, newServer(t, nil).Stop(context.Background()))
}
