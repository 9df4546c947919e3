package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamsim/esim-reconciler/app/models"
)

func TestMarkEventProcessedFlipsExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedPurchase(t, db, "pi_1", "plan_A", "cus_1", models.PaymentStatusSucceeded)

	repo := NewRepository(db)
	status := "success"

	require.NoError(t, repo.MarkEventProcessed("pi_1", &status, nil, time.Now()))

	var event models.PaymentEvent
	require.NoError(t, db.Where("intent_id = ?", "pi_1").First(&event).Error)
	assert.True(t, event.Processed)

	// A second flip finds no unprocessed row and must fail loudly.
	err := repo.MarkEventProcessed("pi_1", &status, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pi_1")
}

func TestMarkEventProcessedUnknownIntent(t *testing.T) {
	db := openTestDB(t)

	status := "success"
	require.Error(t, NewRepository(db).MarkEventProcessed("pi_missing", &status, nil, time.Now()))
}
