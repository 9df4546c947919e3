package models

import "time"

const (
	// PaymentStatusSucceeded marks a captured payment as settled by the
	// billing provider.
	PaymentStatusSucceeded = "succeeded"
)

// PaymentEvent is a captured payment notification written by the webhook
// ingester. The worker flips Processed exactly once per row and echoes the
// provisioning response into the Response* columns for audit.
type PaymentEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	IntentID        string     `gorm:"type:varchar(100);uniqueIndex" json:"intent_id"`
	Amount          float64    `gorm:"not null" json:"amount"`
	Currency        string     `gorm:"type:varchar(10);not null" json:"currency"`
	Status          string     `gorm:"type:varchar(100);not null;index" json:"status"`
	Description     string     `gorm:"type:varchar(1000)" json:"description"`
	CustomerName    string     `gorm:"type:varchar(100)" json:"customer_name"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message"`
	Last4CardDigits string     `gorm:"type:varchar(20)" json:"last4_card_digits"`
	CardBrand       string     `gorm:"type:varchar(50)" json:"card_brand"`
	Processed       bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ResponseStatus  *string    `gorm:"type:varchar(100);default:null" json:"response_status,omitempty"`
	ResponseMessage *string    `gorm:"type:varchar(500);default:null" json:"response_message,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Eligible reports whether the event should be picked up by the
// reconciliation query: payment settled and not yet provisioned.
func (e *PaymentEvent) Eligible() bool {
	return e.Status == PaymentStatusSucceeded && !e.Processed
}
