package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopupStatusPending = "pending"
	TopupStatusPaid    = "paid"
	TopupStatusExpired = "expired"
)

// TopupSession tracks one QR payment attempt minted by the gateway.
type TopupSession struct {
	ID                   uuid.UUID `json:"id"`
	UserID               uuid.UUID `json:"user_id"`
	Amount               int64     `json:"amount"`
	Status               string    `json:"status"`
	QRCode               string    `json:"qr_code"`
	Link                 string    `json:"link"`
	GatewayTransactionID string    `json:"gateway_transaction_id"`
	ExpiresAt            time.Time `json:"expires_at"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type Favorite struct {
	UserID    uuid.UUID `json:"user_id"`
	ProjectID uuid.UUID `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}
