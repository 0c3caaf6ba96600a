package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/models"
)

type fakeTokens map[string]middleware.Identity

func (f fakeTokens) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	id, ok := f[token]
	if !ok {
		return uuid.Nil, "", errors.New("bad token")
	}
	return id.UserID, id.Role, nil
}

func newTestRouter(limit int) http.Handler {
	tokens := fakeTokens{
		"client": {UserID: uuid.New(), Role: models.RoleClient},
	}
	rl := middleware.RateLimit(middleware.NewMemoryLimiter(limit, time.Minute), nil)
	return New(Handlers{}, middleware.BearerAuth(tokens), rl)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(10).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(10)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/requestWithdraw"},
		{http.MethodPost, "/api/payment/create"},
		{http.MethodPost, "/api/payment/regenerate"},
		{http.MethodPost, "/api/payment/expire"},
		{http.MethodPost, "/api/favorites"},
		{http.MethodPost, "/api/admin/update-proposals-count"},
		{http.MethodPost, "/api/projects"},
		{http.MethodPost, "/api/projects/" + uuid.NewString() + "/complete"},
		{http.MethodGet, "/api/dashboard"},
	}
	for _, rt := range routes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", rt.method, rt.path, rec.Code)
		}
	}
}

func TestAdminRouteRejectsNonAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/update-proposals-count", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer client")
	rec := httptest.NewRecorder()
	newTestRouter(10).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRateLimitedByUser(t *testing.T) {
	r := newTestRouter(1)
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/update-proposals-count", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer client")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send(); code != http.StatusForbidden {
		t.Fatalf("first: expected 403, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second: expected 429, got %d", code)
	}
}
