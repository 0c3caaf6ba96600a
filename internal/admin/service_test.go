package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/testutil"
	"github.com/lancerhub/backend/internal/validation"
)

func seed() (*testutil.Projects, uuid.UUID, uuid.UUID) {
	a, b := uuid.New(), uuid.New()
	proposals := testutil.NewProposals(
		&models.Proposal{ID: uuid.New(), ProjectID: a, FreelancerID: uuid.New()},
		&models.Proposal{ID: uuid.New(), ProjectID: a, FreelancerID: uuid.New()},
		&models.Proposal{ID: uuid.New(), ProjectID: b, FreelancerID: uuid.New()},
	)
	projects := testutil.NewProjects(
		&models.Project{ID: a, ProposalsCount: 9},
		&models.Project{ID: b, ProposalsCount: 0},
	)
	projects.Proposals = proposals
	return projects, a, b
}

func TestUpdateProposalsCount_All(t *testing.T) {
	projects, a, b := seed()
	n, err := NewService(projects, nil).UpdateProposalsCount(context.Background(), nil)
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	pa, _ := projects.GetByID(context.Background(), a)
	pb, _ := projects.GetByID(context.Background(), b)
	if pa.ProposalsCount != 2 || pb.ProposalsCount != 1 {
		t.Errorf("counts = %d, %d; want 2, 1", pa.ProposalsCount, pb.ProposalsCount)
	}
}

func TestUpdateProposalsCount_One(t *testing.T) {
	projects, a, b := seed()
	n, err := NewService(projects, nil).UpdateProposalsCount(context.Background(), &b)
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	pa, _ := projects.GetByID(context.Background(), a)
	if pa.ProposalsCount != 9 {
		t.Errorf("other project must be untouched, got %d", pa.ProposalsCount)
	}
}

func TestHandler_RequiresAdmin(t *testing.T) {
	projects, a, _ := seed()
	h := NewHandler(NewService(projects, nil), validation.MustNew(), nil)
	protected := middleware.RequireRole(models.RoleAdmin)(http.HandlerFunc(h.UpdateProposalsCount))

	post := func(role, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/update-proposals-count", strings.NewReader(body))
		req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: uuid.New(), Role: role}))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(models.RoleClient, `{}`); rec.Code != http.StatusForbidden {
		t.Errorf("client: expected 403, got %d", rec.Code)
	}
	rec := post(models.RoleAdmin, `{"projectId":"`+a.String()+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil || env.Data["updated"] != 1 {
		t.Errorf("unexpected body: %+v %v", env, err)
	}
	if rec := post(models.RoleAdmin, `{"projectId":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
}
