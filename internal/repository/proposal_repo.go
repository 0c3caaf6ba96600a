package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

type ProposalRepo struct {
	pool *pgxpool.Pool
}

func NewProposalRepo(pool *pgxpool.Pool) *ProposalRepo {
	return &ProposalRepo{pool: pool}
}

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	var p models.Proposal
	err := row.Scan(&p.ID, &p.ProjectID, &p.FreelancerID, &p.CoverLetter, &p.BidAmount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *ProposalRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Proposal) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO proposals (id, project_id, freelancer_id, cover_letter, bid_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.ProjectID, p.FreelancerID, p.CoverLetter, p.BidAmount, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (r *ProposalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return scanProposal(r.pool.QueryRow(ctx, `
		SELECT id, project_id, freelancer_id, cover_letter, bid_amount, status, created_at, updated_at
		FROM proposals WHERE id = $1
	`, id))
}

func (r *ProposalRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Proposal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, freelancer_id, cover_letter, bid_amount, status, created_at, updated_at
		FROM proposals WHERE project_id = $1 ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// AcceptTx marks proposalID accepted and every other pending proposal on the project rejected.
func (r *ProposalRepo) AcceptTx(ctx context.Context, tx pgx.Tx, projectID, proposalID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE proposals
		SET status = CASE WHEN id = $2 THEN 'accepted' ELSE 'rejected' END, updated_at = now()
		WHERE project_id = $1 AND (id = $2 OR status = 'pending')
	`, projectID, proposalID)
	return err
}
