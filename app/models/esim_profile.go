package models

import "time"

// EsimProfile stores the profile issued by the provisioning API for one
// paid intent. Written once per successfully provisioned payment event and
// never updated by the worker. Fields are pointers because the upstream
// response may omit the whole esim object.
type EsimProfile struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	APN             *string    `gorm:"type:varchar(100)" json:"apn"`
	Tag             *string    `gorm:"type:varchar(100)" json:"tag"`
	UID             *string    `gorm:"type:varchar(100);uniqueIndex" json:"uid"`
	ICCID           *string    `gorm:"type:varchar(50);index" json:"iccid"`
	State           *string    `gorm:"type:varchar(50)" json:"state"`
	AutoAPN         *bool      `json:"auto_apn"`
	ManualCode      *string    `gorm:"type:varchar(100)" json:"manual_code"`
	SMDPAddress     *string    `gorm:"type:varchar(100)" json:"smdp_address"`
	DateAssigned    *time.Time `gorm:"type:datetime" json:"date_assigned"`
	NetworkStatus   *string    `gorm:"type:varchar(50)" json:"network_status"`
	ServiceStatus   *string    `gorm:"type:varchar(50)" json:"service_status"`
	ActivationCode  *string    `gorm:"type:varchar(255)" json:"activation_code"`
	RequestID       *string    `gorm:"type:varchar(100)" json:"request_id"`
	PaymentIntentID string     `gorm:"type:varchar(100);uniqueIndex" json:"payment_intent_id"`
	CustomerEmail   string     `gorm:"type:varchar(100);index" json:"customer_email"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
