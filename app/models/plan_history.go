package models

import "time"

// PlanHistory records the data plan delivered for one paid intent,
// keyed by a generated transaction id that is unique across all history
// rows. Written once, never updated.
type PlanHistory struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ICCID             *string   `gorm:"type:varchar(50);index" json:"iccid"`
	UID               *string   `gorm:"type:varchar(100);index" json:"uid"`
	Name              *string   `gorm:"type:varchar(100)" json:"name"`
	DataQuotaMB       *string   `gorm:"type:varchar(100)" json:"data_quota_mb"`
	DataQuotaBytes    *string   `gorm:"type:varchar(100)" json:"data_quota_bytes"`
	ValidityDays      *int      `json:"validity_days"`
	PolicyID          *int      `json:"policy_id"`
	PolicyName        *string   `gorm:"type:varchar(100)" json:"policy_name"`
	WholesalePriceUSD *float64  `json:"wholesale_price_usd"`
	RRPUSD            *float64  `json:"rrp_usd"`
	RRPEUR            *float64  `json:"rrp_eur"`
	RRPGBP            *float64  `json:"rrp_gbp"`
	RRPCAD            *float64  `json:"rrp_cad"`
	RRPAUD            *float64  `json:"rrp_aud"`
	RRPJPY            *float64  `json:"rrp_jpy"`
	CountriesEnabled  *string   `gorm:"type:text" json:"countries_enabled"`
	IntentID          string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"intent_id"`
	TransactionID     string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"transaction_id"`
	CustomerEmail     string    `gorm:"type:varchar(100);index" json:"customer_email"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}
