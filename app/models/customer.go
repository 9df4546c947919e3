package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer is an onboarded account holder. Rows are created by the
// onboarding service; the reconciliation worker only reads them.
type Customer struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	CustomerRef        string    `gorm:"type:varchar(50);index" json:"customer_ref"`
	StripeCustomerID   string    `gorm:"type:varchar(50);index" json:"stripe_customer_id"`
	FirstName          string    `gorm:"type:varchar(50)" json:"first_name"`
	LastName           string    `gorm:"type:varchar(50)" json:"last_name"`
	Email              string    `gorm:"type:varchar(100);index" json:"email"`
	CountryOfResidence string    `gorm:"type:varchar(50)" json:"country_of_residence"`
	PhoneNumber        string    `gorm:"type:varchar(20)" json:"phone_number"`
	IsEmailVerified    bool      `gorm:"default:false" json:"is_email_verified"`
	IsActive           bool      `gorm:"default:true" json:"is_active"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FullName returns the customer's display name for notification templates.
func (c *Customer) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// FindCustomerByStripeID resolves the billing-provider customer id to an
// onboarded customer.
func FindCustomerByStripeID(db *gorm.DB, stripeCustomerID string) (*Customer, error) {
	var c Customer
	if err := db.Where("stripe_customer_id = ?", stripeCustomerID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
