package models

import "time"

// PurchaseIntent records a customer's intention to buy a specific data
// plan, created upstream when checkout starts. Read-only for the worker.
type PurchaseIntent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	IntentID     string    `gorm:"type:varchar(100);uniqueIndex" json:"intent_id"`
	Amount       float64   `gorm:"not null" json:"amount"`
	Currency     string    `gorm:"type:varchar(10);not null" json:"currency"`
	CustomerID   string    `gorm:"type:varchar(50)" json:"customer_id"`
	DataPlanUID  string    `gorm:"type:varchar(50)" json:"data_plan_uid"`
	Status       string    `gorm:"type:varchar(100);not null" json:"status"`
	ClientSecret string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
