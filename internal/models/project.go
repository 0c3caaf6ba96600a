package models

import (
	"time"

	"github.com/google/uuid"
)

// Project status values.
const (
	ProjectStatusOpen       = "open"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusInReview   = "in_review"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCancelled  = "cancelled"
)

// Completion is one party's record that the work is done.
type Completion struct {
	At    time.Time `json:"at"`
	Notes string    `json:"notes,omitempty"`
}

type Project struct {
	ID                   uuid.UUID   `json:"id"`
	ClientID             uuid.UUID   `json:"client_id"`
	AcceptedFreelancerID *uuid.UUID  `json:"accepted_freelancer_id,omitempty"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Category             string      `json:"category"`
	Budget               int64       `json:"budget"`
	PostingFee           int64       `json:"posting_fee"`
	Status               string      `json:"status"`
	ClientCompleted      *Completion `json:"client_completed,omitempty"`
	FreelancerCompleted  *Completion `json:"freelancer_completed,omitempty"`
	ClientRated          bool        `json:"client_rated"`
	FreelancerRated      bool        `json:"freelancer_rated"`
	ProposalsCount       int         `json:"proposals_count"`
	CompletedAt          *time.Time  `json:"completed_at,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// IsFreelancer reports whether id is the accepted freelancer.
func (p *Project) IsFreelancer(id uuid.UUID) bool {
	return p.AcceptedFreelancerID != nil && *p.AcceptedFreelancerID == id
}

// FreelancerID returns the accepted freelancer, or uuid.Nil before hiring.
func (p *Project) FreelancerID() uuid.UUID {
	if p.AcceptedFreelancerID == nil {
		return uuid.Nil
	}
	return *p.AcceptedFreelancerID
}

// BothCompleted reports whether client and freelancer have both recorded completion.
func (p *Project) BothCompleted() bool {
	return p.ClientCompleted != nil && p.FreelancerCompleted != nil
}
