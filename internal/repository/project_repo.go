package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

const projectColumns = `id, client_id, accepted_freelancer_id, title, description, category, budget, posting_fee, status,
	client_completed_at, client_completed_notes, freelancer_completed_at, freelancer_completed_notes,
	client_rated, freelancer_rated, proposals_count, completed_at, created_at, updated_at`

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	var clientAt, freelancerAt *time.Time
	var clientNotes, freelancerNotes *string
	err := row.Scan(&p.ID, &p.ClientID, &p.AcceptedFreelancerID, &p.Title, &p.Description, &p.Category, &p.Budget, &p.PostingFee, &p.Status,
		&clientAt, &clientNotes, &freelancerAt, &freelancerNotes,
		&p.ClientRated, &p.FreelancerRated, &p.ProposalsCount, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	p.ClientCompleted = completion(clientAt, clientNotes)
	p.FreelancerCompleted = completion(freelancerAt, freelancerNotes)
	return &p, nil
}

func completion(at *time.Time, notes *string) *models.Completion {
	if at == nil {
		return nil
	}
	c := &models.Completion{At: *at}
	if notes != nil {
		c.Notes = *notes
	}
	return c
}

func completionCols(c *models.Completion) (*time.Time, *string) {
	if c == nil {
		return nil, nil
	}
	return &c.At, &c.Notes
}

func (r *ProjectRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Project) error {
	return tx.QueryRow(ctx, `
		INSERT INTO projects (id, client_id, title, description, category, budget, posting_fee, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, p.ID, p.ClientID, p.Title, p.Description, p.Category, p.Budget, p.PostingFee, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// GetByIDForUpdate locks the project row. Call within a transaction.
func (r *ProjectRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Project, error) {
	return scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
}

// UpdateTx writes every mutable column of p.
func (r *ProjectRepo) UpdateTx(ctx context.Context, tx pgx.Tx, p *models.Project) error {
	clientAt, clientNotes := completionCols(p.ClientCompleted)
	freelancerAt, freelancerNotes := completionCols(p.FreelancerCompleted)
	err := tx.QueryRow(ctx, `
		UPDATE projects SET
			accepted_freelancer_id = $2, title = $3, description = $4, category = $5, budget = $6, posting_fee = $7,
			status = $8, client_completed_at = $9, client_completed_notes = $10,
			freelancer_completed_at = $11, freelancer_completed_notes = $12,
			client_rated = $13, freelancer_rated = $14, completed_at = $15, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.AcceptedFreelancerID, p.Title, p.Description, p.Category, p.Budget, p.PostingFee,
		p.Status, clientAt, clientNotes, freelancerAt, freelancerNotes,
		p.ClientRated, p.FreelancerRated, p.CompletedAt).Scan(&p.UpdatedAt)
	return mapErr(err)
}

func (r *ProjectRepo) IncrementProposalsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE projects SET proposals_count = proposals_count + 1 WHERE id = $1`, id)
	return err
}

func (r *ProjectRepo) ListOpen(ctx context.Context, limit int) ([]*models.Project, error) {
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects WHERE status = 'open' ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListByParticipant returns projects the user posted or was hired on.
func (r *ProjectRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	return r.list(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE client_id = $1 OR accepted_freelancer_id = $1
		ORDER BY created_at DESC
	`, userID)
}

func (r *ProjectRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Project, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// RecountProposals rewrites proposals_count from the proposals table, for one
// project when projectID is set or for all projects otherwise. Returns rows updated.
func (r *ProjectRepo) RecountProposals(ctx context.Context, projectID *uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects p
		SET proposals_count = (SELECT count(*) FROM proposals pr WHERE pr.project_id = p.id), updated_at = now()
		WHERE $1::uuid IS NULL OR p.id = $1
	`, projectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
