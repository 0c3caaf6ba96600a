package models

import (
	"time"

	"github.com/google/uuid"
)

type Rating struct {
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"project_id"`
	RaterID       uuid.UUID `json:"rater_id"`
	TargetID      uuid.UUID `json:"target_id"`
	Communication float64   `json:"communication"`
	Quality       float64   `json:"quality"`
	Timeliness    float64   `json:"timeliness"`
	Value         float64   `json:"value"`
	Overall       float64   `json:"overall"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
