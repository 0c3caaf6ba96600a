package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile roles.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// Profile holds a user's balances and running rating averages.
// Credit is spendable balance (top-ups, refunds); TotalEarned accumulates
// escrow releases and is withdrawable.
type Profile struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	DisplayName         string    `json:"display_name"`
	Role                string    `json:"role"`
	PasswordHash        string    `json:"-"`
	Credit              int64     `json:"credit"`
	TotalEarned         int64     `json:"total_earned"`
	TotalSpent          int64     `json:"total_spent"`
	Rating              float64   `json:"rating"`
	TotalRatings        int       `json:"total_ratings"`
	CommunicationRating float64   `json:"communication_rating"`
	QualityRating       float64   `json:"quality_rating"`
	TimelinessRating    float64   `json:"timeliness_rating"`
	ValueRating         float64   `json:"value_rating"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
