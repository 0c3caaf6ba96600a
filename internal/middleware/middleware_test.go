package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubTokens struct {
	userID uuid.UUID
	role   string
	err    error
}

func (s *stubTokens) ValidateToken(_ context.Context, _ string) (uuid.UUID, string, error) {
	return s.userID, s.role, s.err
}

// okHandler writes 200 and the caller id (for assertions).
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id, ok := IdentityFromCtx(r.Context()); ok {
		w.Write([]byte(id.UserID.String()))
	}
})

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

// ---------------------------------------------------------------------------
// BearerAuth
// ---------------------------------------------------------------------------

func TestBearerAuth_ValidToken(t *testing.T) {
	user := uuid.New()
	mw := BearerAuth(&stubTokens{userID: user, role: "client"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); body != user.String() {
		t.Errorf("expected user id %q in body, got %q", user, body)
	}
}

func TestBearerAuth_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
		tokens *stubTokens
	}{
		{"missing header", "", &stubTokens{}},
		{"wrong scheme", "Basic abc", &stubTokens{}},
		{"invalid token", "Bearer bad", &stubTokens{err: errors.New("expired")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			BearerAuth(tc.tokens)(okHandler).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON error, got %q", ct)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin")(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no identity: got %d", rec.Code)
	}

	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.New(), Role: "client"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("client role: got %d", rec.Code)
	}

	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.New(), Role: "admin"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin role: got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if d, _ := l.Allow(ctx, "k"); !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		now = now.Add(10 * time.Second)
	}
	d, _ := l.Allow(ctx, "k")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("third request should be rejected: %+v", d)
	}
	if d.RetryAfter != 40*time.Second {
		t.Errorf("retry after: got %s, want 40s", d.RetryAfter)
	}

	// Other keys are independent.
	if d, _ := l.Allow(ctx, "other"); !d.Allowed {
		t.Error("other key should be allowed")
	}

	// The first hit leaves the window.
	now = now.Add(41 * time.Second)
	if d, _ := l.Allow(ctx, "k"); !d.Allowed {
		t.Errorf("request after window slide should be allowed: %+v", d)
	}
}

func TestRateLimit_RejectsWith429(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(1, time.Minute), nil)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("headers: %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}

	// A different client IP has its own budget.
	other := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other ip: %d", rec.Code)
	}
}

func TestRateLimit_KeysOnIdentity(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(1, time.Minute), nil)(okHandler)

	for _, user := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: user}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("user %s behind shared IP: %d", user, rec.Code)
		}
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := RateLimit(errLimiter{}, nil)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("limiter error should allow request, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	cases := []struct {
		name, remote, xff string
		trusted           []netip.Prefix
		want              string
	}{
		{"socket peer", "192.0.2.1:1234", "", nil, "192.0.2.1"},
		{"header ignored without trusted proxies", "192.0.2.1:1234", "203.0.113.9", nil, "192.0.2.1"},
		{"header ignored from untrusted peer", "192.0.2.1:1234", "203.0.113.9", trusted, "192.0.2.1"},
		{"behind trusted proxy", "10.0.0.5:1234", "203.0.113.9", trusted, "203.0.113.9"},
		{"spoofed prefix skipped", "10.0.0.5:1234", "198.51.100.1, 203.0.113.9, 10.0.0.7", trusted, "203.0.113.9"},
		{"garbage hop stops the walk", "10.0.0.5:1234", "junk, 10.0.0.7", trusted, "10.0.0.7"},
		{"trusted peer without header", "10.0.0.5:1234", "", trusted, "10.0.0.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := clientIP(req, tc.trusted); got != tc.want {
				t.Errorf("clientIP = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRateLimit_RotatingForwardedForSharesBudget(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(1, time.Minute), nil)(okHandler)

	codes := make([]int, 0, 2)
	for _, spoof := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		req.Header.Set("X-Forwarded-For", spoof)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("rotating X-Forwarded-For must not reset the budget, got %v", codes)
	}
}

func TestRateLimit_TrustedProxyKeysOnForwardedClient(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(1, time.Minute), nil, netip.MustParsePrefix("10.0.0.0/8"))(okHandler)

	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		req.RemoteAddr = "10.0.0.5:5555"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client %s behind proxy: %d", client, rec.Code)
		}
	}
}
