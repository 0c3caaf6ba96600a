package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Profiles is an in-memory profile store. It records lock order so tests can
// assert deterministic locking.
// ---------------------------------------------------------------------------

type Profiles struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*models.Profile
	Locked []uuid.UUID
}

func NewProfiles(ps ...*models.Profile) *Profiles {
	m := &Profiles{byID: make(map[uuid.UUID]*models.Profile)}
	for _, p := range ps {
		cp := *p
		m.byID[p.ID] = &cp
	}
	return m
}

func (m *Profiles) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Profiles) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	m.Locked = append(m.Locked, id)
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *Profiles) UpdateBalances(_ context.Context, _ pgx.Tx, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Credit, cur.TotalEarned, cur.TotalSpent = p.Credit, p.TotalEarned, p.TotalSpent
	return nil
}

func (m *Profiles) UpdateRatings(_ context.Context, _ pgx.Tx, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Rating, cur.TotalRatings = p.Rating, p.TotalRatings
	cur.CommunicationRating, cur.QualityRating = p.CommunicationRating, p.QualityRating
	cur.TimelinessRating, cur.ValueRating = p.TimelinessRating, p.ValueRating
	return nil
}

// Get returns a copy of the stored profile, or nil.
func (m *Profiles) Get(id uuid.UUID) *models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// ---------------------------------------------------------------------------
// Transactions is an in-memory ledger.
// ---------------------------------------------------------------------------

type Transactions struct {
	mu      sync.Mutex
	entries []*models.Transaction
}

func (m *Transactions) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ExternalRef != nil {
		for _, e := range m.entries {
			if e.ExternalRef != nil && *e.ExternalRef == *t.ExternalRef {
				return repository.ErrDuplicate
			}
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *Transactions) GetByExternalRefForUpdate(_ context.Context, _ pgx.Tx, ref string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ExternalRef != nil && *e.ExternalRef == ref {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Transactions) UpdateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == t.ID {
			e.Status, e.PreviousBalance, e.NewBalance = t.Status, t.PreviousBalance, t.NewBalance
			return nil
		}
	}
	return repository.ErrNotFound
}

// ListByUser returns newest first, like the SQL implementation.
func (m *Transactions) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Transaction{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserID == userID {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Transactions) ByType(txType string) []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, e := range m.entries {
		if e.Type == txType {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (m *Transactions) All() []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Transaction, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// ---------------------------------------------------------------------------
// Escrows is an in-memory escrow store keyed by project.
// ---------------------------------------------------------------------------

type Escrows struct {
	mu        sync.Mutex
	byProject map[uuid.UUID]*models.Escrow
}

func NewEscrows() *Escrows {
	return &Escrows{byProject: make(map[uuid.UUID]*models.Escrow)}
}

func (m *Escrows) CreateTx(_ context.Context, _ pgx.Tx, e *models.Escrow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byProject[e.ProjectID]; ok {
		return repository.ErrDuplicate
	}
	cp := *e
	m.byProject[e.ProjectID] = &cp
	return nil
}

func (m *Escrows) GetForUpdate(_ context.Context, _ pgx.Tx, projectID uuid.UUID) (*models.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byProject[projectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Escrows) SetStatusTx(_ context.Context, _ pgx.Tx, projectID uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byProject[projectID]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	return nil
}

// Get returns a copy of the project's escrow, or nil.
func (m *Escrows) Get(projectID uuid.UUID) *models.Escrow {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byProject[projectID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// ---------------------------------------------------------------------------
// Projects is an in-memory project store.
// ---------------------------------------------------------------------------

type Projects struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Project
	// Proposals, when set, backs RecountProposals.
	Proposals *Proposals
}

func NewProjects(ps ...*models.Project) *Projects {
	m := &Projects{byID: make(map[uuid.UUID]*models.Project)}
	for _, p := range ps {
		m.byID[p.ID] = cloneProject(p)
	}
	return m
}

func cloneProject(p *models.Project) *models.Project {
	cp := *p
	if p.AcceptedFreelancerID != nil {
		id := *p.AcceptedFreelancerID
		cp.AcceptedFreelancerID = &id
	}
	if p.ClientCompleted != nil {
		c := *p.ClientCompleted
		cp.ClientCompleted = &c
	}
	if p.FreelancerCompleted != nil {
		c := *p.FreelancerCompleted
		cp.FreelancerCompleted = &c
	}
	return &cp
}

func (m *Projects) CreateTx(_ context.Context, _ pgx.Tx, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = cloneProject(p)
	return nil
}

func (m *Projects) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProject(p), nil
}

func (m *Projects) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Project, error) {
	return m.GetByID(ctx, id)
}

func (m *Projects) UpdateTx(_ context.Context, _ pgx.Tx, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[p.ID] = cloneProject(p)
	return nil
}

func (m *Projects) IncrementProposalsTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		p.ProposalsCount++
	}
	return nil
}

func (m *Projects) ListOpen(_ context.Context, limit int) ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Project{}
	for _, p := range m.byID {
		if p.Status == models.ProjectStatusOpen && len(out) < limit {
			out = append(out, cloneProject(p))
		}
	}
	return out, nil
}

func (m *Projects) ListByParticipant(_ context.Context, userID uuid.UUID) ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Project{}
	for _, p := range m.byID {
		if p.ClientID == userID || p.IsFreelancer(userID) {
			out = append(out, cloneProject(p))
		}
	}
	return out, nil
}

func (m *Projects) RecountProposals(ctx context.Context, projectID *uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, p := range m.byID {
		if projectID != nil && id != *projectID {
			continue
		}
		count := 0
		if m.Proposals != nil {
			list, _ := m.Proposals.ListByProject(ctx, id)
			count = len(list)
		}
		p.ProposalsCount = count
		n++
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Proposals is an in-memory proposal store.
// ---------------------------------------------------------------------------

type Proposals struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Proposal
}

func NewProposals(ps ...*models.Proposal) *Proposals {
	m := &Proposals{byID: make(map[uuid.UUID]*models.Proposal)}
	for _, p := range ps {
		cp := *p
		m.byID[p.ID] = &cp
	}
	return m
}

func (m *Proposals) CreateTx(_ context.Context, _ pgx.Tx, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.ProjectID == p.ProjectID && e.FreelancerID == p.FreelancerID {
			return repository.ErrDuplicate
		}
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *Proposals) GetByID(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Proposals) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Proposal{}
	for _, p := range m.byID {
		if p.ProjectID == projectID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Proposals) AcceptTx(_ context.Context, _ pgx.Tx, projectID, proposalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.byID {
		if p.ProjectID != projectID {
			continue
		}
		switch {
		case id == proposalID:
			p.Status = models.ProposalStatusAccepted
		case p.Status == models.ProposalStatusPending:
			p.Status = models.ProposalStatusRejected
		}
	}
	return nil
}
