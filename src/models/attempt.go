package models

import (
	"tbs/src/types"

	"github.com/google/uuid"
)

// PaymentAttempt is the audit row written when a checkout session
// reaches a terminal state. Sessions themselves live only in memory.
type PaymentAttempt struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	SessionID       string
	EventID         string
	CustomerID      string
	MerchantOrderID string
	Amount          float64
	Guests          uint
	State           types.PaymentState `gorm:"default:pending"`
	FailureReason   string
	Metadata        types.JSONB

	types.Timestamps
}
