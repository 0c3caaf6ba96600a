package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
	"github.com/lancerhub/backend/internal/validation"
)

// ---------------------------------------------------------------------------
// In-memory Repository
// ---------------------------------------------------------------------------

type mockRepo struct {
	mu      sync.Mutex
	byEmail map[string]*models.Profile
}

func newMockRepo() *mockRepo {
	return &mockRepo{byEmail: make(map[string]*models.Profile)}
}

func (m *mockRepo) Create(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[p.Email]; ok {
		return repository.ErrDuplicate
	}
	cp := *p
	m.byEmail[p.Email] = &cp
	return nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestRegisterLoginValidate(t *testing.T) {
	svc := NewService(newMockRepo(), "test-secret", time.Hour)
	ctx := context.Background()

	p, err := svc.Register(ctx, " Ann@Example.com ", "password123", "Ann", models.RoleFreelancer)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.Email != "ann@example.com" || p.PasswordHash == "password123" {
		t.Errorf("profile not normalised/hashed: %+v", p)
	}

	if _, err := svc.Register(ctx, "ann@example.com", "password123", "Ann", models.RoleClient); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := svc.Register(ctx, "root@example.com", "password123", "Root", models.RoleAdmin); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}

	if _, err := svc.Login(ctx, "ann@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err)
	}

	tok, err := svc.Login(ctx, "ANN@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, role, err := svc.ValidateToken(ctx, tok.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id != p.ID || role != models.RoleFreelancer {
		t.Errorf("claims: id %s role %s", id, role)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewService(newMockRepo(), "test-secret", time.Hour)
	ctx := context.Background()

	tok, err := svc.issueToken(uuid.New(), models.RoleClient)
	if err != nil {
		t.Fatal(err)
	}

	other := NewService(newMockRepo(), "other-secret", time.Hour)
	if _, _, err := other.ValidateToken(ctx, tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign signature: got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, _, err := svc.ValidateToken(ctx, tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: got %v", err)
	}

	if _, _, err := svc.ValidateToken(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

func TestHandler_RegisterAndLogin(t *testing.T) {
	h := NewHandler(NewService(newMockRepo(), "test-secret", time.Hour), validation.MustNew(), nil)

	body := `{"email":"bo@example.com","password":"password123","displayName":"Bo","role":"client"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash leaked in response")
	}

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"bo@example.com","password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"bo@example.com","password":"password123"}`)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"token"`) {
		t.Errorf("login: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"bo@example.com"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing password: %d", rec.Code)
	}
}
