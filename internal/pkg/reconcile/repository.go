package reconcile

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/roamsim/esim-reconciler/app/models"
)

// EligibleEvent is one row of the correlation query: a succeeded,
// unprocessed payment event joined to its purchase intent.
type EligibleEvent struct {
	CustomerBillingID string  `gorm:"column:customer_billing_id"`
	PlanUID           string  `gorm:"column:plan_uid"`
	IntentID          string  `gorm:"column:intent_id"`
	Amount            float64 `gorm:"column:amount"`
}

// Repository provides the DB operations used by one reconciliation tick.
// A repository is bound to a single *gorm.DB handle, so constructing it
// over a transaction scopes every operation to that transaction.
type Repository interface {
	FindEligibleEvents() ([]EligibleEvent, error)
	FindCustomerByStripeID(stripeCustomerID string) (*models.Customer, error)
	TransactionIDExists(transactionID string) (bool, error)
	CreateEsimProfile(profile *models.EsimProfile) error
	CreatePlanHistory(history *models.PlanHistory) error
	MarkEventProcessed(intentID string, status, message *string, processedAt time.Time) error
	CountPendingEvents() (int64, error)
	CountProcessedEvents() (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindEligibleEvents() ([]EligibleEvent, error) {
	var rows []EligibleEvent
	err := r.db.
		Table("payment_events").
		Select("purchase_intents.customer_id AS customer_billing_id, purchase_intents.data_plan_uid AS plan_uid, payment_events.intent_id AS intent_id, payment_events.amount AS amount").
		Joins("INNER JOIN purchase_intents ON purchase_intents.intent_id = payment_events.intent_id").
		Where("payment_events.processed = ? AND payment_events.status = ?", false, models.PaymentStatusSucceeded).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) FindCustomerByStripeID(stripeCustomerID string) (*models.Customer, error) {
	return models.FindCustomerByStripeID(r.db, stripeCustomerID)
}

func (r *gormRepository) TransactionIDExists(transactionID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.PlanHistory{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) CreateEsimProfile(profile *models.EsimProfile) error {
	return r.db.Create(profile).Error
}

func (r *gormRepository) CreatePlanHistory(history *models.PlanHistory) error {
	return r.db.Create(history).Error
}

func (r *gormRepository) MarkEventProcessed(intentID string, status, message *string, processedAt time.Time) error {
	// The processed flag must flip exactly once. Constraining on the old
	// value turns a concurrent or repeated flip into a zero-row update.
	res := r.db.Model(&models.PaymentEvent{}).
		Where("intent_id = ? AND processed = ?", intentID, false).
		Updates(map[string]interface{}{
			"processed":        true,
			"processed_at":     processedAt,
			"response_status":  status,
			"response_message": message,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no unprocessed payment event for intent %s", intentID)
	}
	return nil
}

func (r *gormRepository) CountPendingEvents() (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentEvent{}).
		Where("processed = ? AND status = ?", false, models.PaymentStatusSucceeded).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) CountProcessedEvents() (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentEvent{}).
		Where("processed = ?", true).
		Count(&count).Error
	return count, err
}
