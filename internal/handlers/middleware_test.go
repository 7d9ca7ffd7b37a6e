package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/codepractice.net/internal/adapter/logging"
	"gitlab.com/codepractice.net/internal/handlers"
	"gitlab.com/codepractice.net/internal/handlers/response"
	"gitlab.com/codepractice.net/internal/static/errs"
)

type stubVerifier map[string]error

func (s stubVerifier) VerifyToken(_ context.Context, token string) (int64, error) {
	if err, ok := s[token]; ok {
		return 0, err
	}
	return 42, nil
}

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, int64) {
	t.Helper()
	var seen int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = handlers.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	mw := handlers.New(stubVerifier{"bad": errs.ErrInvalidToken, "old": errs.ErrTokenExpired}, logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	mw.JWTMiddleware(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestJWTMiddleware(t *testing.T) {
	rec, seen := serve(t, "Bearer good")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), seen)

	rec, seen = serve(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, seen)

	rec, _ = serve(t, "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body response.ErrorMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Expired)

	rec, _ = serve(t, "Bearer old")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Expired)
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := handlers.UserIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := handlers.UserIDFromContext(handlers.WithUserID(context.Background(), 9))
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
}
