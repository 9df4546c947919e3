package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/roamsim/esim-reconciler/app/models"
	"github.com/roamsim/esim-reconciler/internal/pkg/provisioning"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Customer{},
		&models.PurchaseIntent{},
		&models.PaymentEvent{},
		&models.EsimProfile{},
		&models.PlanHistory{},
	))
	return db
}

// fakeClient counts calls and synthesizes responses the way the live API
// shapes them. Each issued profile gets a distinct uid.
type fakeClient struct {
	issueErr      error
	failProductOn int // 1-based FetchProduct call index that starts failing

	issueCalls   int
	productCalls int
}

func (f *fakeClient) IssueProfile(ctx context.Context, customerRef, planTypeID string) (*provisioning.IssueProfileResponse, error) {
	f.issueCalls++
	if f.issueErr != nil {
		return nil, f.issueErr
	}

	uid := fmt.Sprintf("u%d", f.issueCalls)
	iccid := "890000"
	requestID := fmt.Sprintf("r%d", f.issueCalls)
	return &provisioning.IssueProfileResponse{
		Esim:      &provisioning.Esim{UID: &uid, ICCID: &iccid},
		RequestID: &requestID,
	}, nil
}

func (f *fakeClient) FetchProduct(ctx context.Context, planUID string) (*provisioning.ProductResponse, error) {
	f.productCalls++
	if f.failProductOn > 0 && f.productCalls >= f.failProductOn {
		return nil, errors.New("product endpoint unreachable")
	}

	uid := planUID
	name := "1GB-30d"
	quota := json.Number("1000")
	iccid := "890000"
	status := "success"
	message := "ok"
	return &provisioning.ProductResponse{
		Product: &provisioning.Product{UID: &uid, Name: &name, DataQuotaMB: &quota},
		Esim:    &provisioning.Esim{ICCID: &iccid},
		Status:  &status,
		Message: &message,
	}, nil
}

func seedCustomer(t *testing.T, db *gorm.DB, billingID, email string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Customer{
		CustomerRef:      "ref-" + billingID,
		StripeCustomerID: billingID,
		FirstName:        "Ada",
		LastName:         "Obi",
		Email:            email,
		IsActive:         true,
	}).Error)
}

func seedPurchase(t *testing.T, db *gorm.DB, intentID, planUID, billingID, eventStatus string) {
	t.Helper()
	require.NoError(t, db.Create(&models.PurchaseIntent{
		IntentID:    intentID,
		Amount:      9.99,
		Currency:    "usd",
		CustomerID:  billingID,
		DataPlanUID: planUID,
		Status:      "succeeded",
	}).Error)
	require.NoError(t, db.Create(&models.PaymentEvent{
		IntentID: intentID,
		Amount:   9.99,
		Currency: "usd",
		Status:   eventStatus,
	}).Error)
}

func TestRunTickProvisionsEligibleEvent(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedPurchase(t, db, "pi_1", "plan_A", "cus_1", models.PaymentStatusSucceeded)

	fc := &fakeClient{}
	svc := NewService(db, fc, nil, time.UTC)

	require.NoError(t, svc.RunTick(context.Background()))

	var profile models.EsimProfile
	require.NoError(t, db.First(&profile).Error)
	assert.Equal(t, "u1", *profile.UID)
	assert.Equal(t, "890000", *profile.ICCID)
	assert.Equal(t, "r1", *profile.RequestID)
	assert.Equal(t, "pi_1", profile.PaymentIntentID)
	assert.Equal(t, "ada@example.com", profile.CustomerEmail)

	var history models.PlanHistory
	require.NoError(t, db.First(&history).Error)
	assert.Equal(t, "plan_A", *history.UID)
	assert.Equal(t, "1GB-30d", *history.Name)
	assert.Equal(t, "1000", *history.DataQuotaMB)
	assert.Equal(t, "890000", *history.ICCID)
	assert.Equal(t, "pi_1", history.IntentID)
	assert.NotEmpty(t, history.TransactionID)

	var event models.PaymentEvent
	require.NoError(t, db.Where("intent_id = ?", "pi_1").First(&event).Error)
	assert.True(t, event.Processed)
	require.NotNil(t, event.ProcessedAt)
	assert.Equal(t, "success", *event.ResponseStatus)
	assert.Equal(t, "ok", *event.ResponseMessage)
}

func TestRunTickIdempotent(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedPurchase(t, db, "pi_1", "plan_A", "cus_1", models.PaymentStatusSucceeded)

	fc := &fakeClient{}
	svc := NewService(db, fc, nil, time.UTC)

	require.NoError(t, svc.RunTick(context.Background()))
	require.NoError(t, svc.RunTick(context.Background()))

	// The second tick must select zero rows and call nothing.
	assert.Equal(t, 1, fc.issueCalls)
	assert.Equal(t, 1, fc.productCalls)

	var profiles int64
	require.NoError(t, db.Model(&models.EsimProfile{}).Count(&profiles).Error)
	assert.EqualValues(t, 1, profiles)
}

func TestRunTickSkipsMissingCustomer(t *testing.T) {
	db := openTestDB(t)
	// Payment arrived but onboarding has no matching billing id.
	seedPurchase(t, db, "pi_1", "plan_A", "cus_unknown", models.PaymentStatusSucceeded)

	fc := &fakeClient{}
	svc := NewService(db, fc, nil, time.UTC)

	require.NoError(t, svc.RunTick(context.Background()))

	assert.Equal(t, 0, fc.issueCalls)

	var profiles, histories int64
	require.NoError(t, db.Model(&models.EsimProfile{}).Count(&profiles).Error)
	require.NoError(t, db.Model(&models.PlanHistory{}).Count(&histories).Error)
	assert.EqualValues(t, 0, profiles)
	assert.EqualValues(t, 0, histories)

	var event models.PaymentEvent
	require.NoError(t, db.Where("intent_id = ?", "pi_1").First(&event).Error)
	assert.False(t, event.Processed)
}

func TestRunTickRollsBackOnIssueFailure(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedPurchase(t, db, "pi_1", "plan_A", "cus_1", models.PaymentStatusSucceeded)

	fc := &fakeClient{issueErr: errors.New("connection reset")}
	svc := NewService(db, fc, nil, time.UTC)

	require.Error(t, svc.RunTick(context.Background()))

	var profiles int64
	require.NoError(t, db.Model(&models.EsimProfile{}).Count(&profiles).Error)
	assert.EqualValues(t, 0, profiles)

	var event models.PaymentEvent
	require.NoError(t, db.Where("intent_id = ?", "pi_1").First(&event).Error)
	assert.False(t, event.Processed)

	// The next tick retries the same row and succeeds.
	fc.issueErr = nil
	require.NoError(t, svc.RunTick(context.Background()))

	require.NoError(t, db.Where("intent_id = ?", "pi_1").First(&event).Error)
	assert.True(t, event.Processed)
}

func TestRunTickIsTickAtomic(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedCustomer(t, db, "cus_2", "obi@example.com")
	seedPurchase(t, db, "pi_1", "plan_A", "cus_1", models.PaymentStatusSucceeded)
	seedPurchase(t, db, "pi_2", "plan_B", "cus_2", models.PaymentStatusSucceeded)

	// First row fully succeeds, second row's product-detail call fails:
	// the whole tick rolls back, including the first row's writes.
	fc := &fakeClient{failProductOn: 2}
	svc := NewService(db, fc, nil, time.UTC)

	require.Error(t, svc.RunTick(context.Background()))

	var profiles, histories, processed int64
	require.NoError(t, db.Model(&models.EsimProfile{}).Count(&profiles).Error)
	require.NoError(t, db.Model(&models.PlanHistory{}).Count(&histories).Error)
	require.NoError(t, db.Model(&models.PaymentEvent{}).Where("processed = ?", true).Count(&processed).Error)
	assert.EqualValues(t, 0, profiles)
	assert.EqualValues(t, 0, histories)
	assert.EqualValues(t, 0, processed)
}

func TestFindEligibleEventsCorrelation(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedPurchase(t, db, "pi_ok", "plan_A", "cus_1", models.PaymentStatusSucceeded)
	seedPurchase(t, db, "pi_failed", "plan_A", "cus_1", "failed")

	// Already processed events are never reselected.
	seedPurchase(t, db, "pi_done", "plan_A", "cus_1", models.PaymentStatusSucceeded)
	require.NoError(t, db.Model(&models.PaymentEvent{}).
		Where("intent_id = ?", "pi_done").
		Update("processed", true).Error)

	// An event without a matching intent joins to nothing.
	require.NoError(t, db.Create(&models.PaymentEvent{
		IntentID: "pi_orphan",
		Amount:   5,
		Currency: "usd",
		Status:   models.PaymentStatusSucceeded,
	}).Error)

	rows, err := NewRepository(db).FindEligibleEvents()
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "pi_ok", rows[0].IntentID)
	assert.Equal(t, "cus_1", rows[0].CustomerBillingID)
	assert.Equal(t, "plan_A", rows[0].PlanUID)
	assert.Equal(t, 9.99, rows[0].Amount)
}

func TestFindEligibleEventsEmptyIsNotAnError(t *testing.T) {
	db := openTestDB(t)

	rows, err := NewRepository(db).FindEligibleEvents()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransactionIDsDistinctAcrossEvents(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= 3; i++ {
		billingID := fmt.Sprintf("cus_%d", i)
		seedCustomer(t, db, billingID, fmt.Sprintf("c%d@example.com", i))
		seedPurchase(t, db, fmt.Sprintf("pi_%d", i), "plan_A", billingID, models.PaymentStatusSucceeded)
	}

	svc := NewService(db, &fakeClient{}, nil, time.UTC)
	require.NoError(t, svc.RunTick(context.Background()))

	var histories []models.PlanHistory
	require.NoError(t, db.Find(&histories).Error)
	require.Len(t, histories, 3)

	seen := map[string]bool{}
	for _, h := range histories {
		assert.False(t, seen[h.TransactionID], "duplicate transaction id %s", h.TransactionID)
		seen[h.TransactionID] = true
	}
}

func TestRunTickNotifiesAfterCommit(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedPurchase(t, db, "pi_1", "plan_A", "cus_1", models.PaymentStatusSucceeded)

	notifier := &captureNotifier{}
	svc := NewService(db, &fakeClient{}, notifier, time.UTC)

	require.NoError(t, svc.RunTick(context.Background()))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "ada@example.com", notifier.sent[0].ReceiverEmail)
	assert.Equal(t, "Ada Obi", notifier.sent[0].Name)
	assert.Equal(t, "1GB-30d", notifier.sent[0].PlanName)
	assert.Equal(t, "890000", notifier.sent[0].ICCID)
}

func TestRunTickNotifierErrorDoesNotFailTick(t *testing.T) {
	db := openTestDB(t)
	seedCustomer(t, db, "cus_1", "ada@example.com")
	seedPurchase(t, db, "pi_1", "plan_A", "cus_1", models.PaymentStatusSucceeded)

	notifier := &captureNotifier{err: errors.New("queue down")}
	svc := NewService(db, &fakeClient{}, notifier, time.UTC)

	require.NoError(t, svc.RunTick(context.Background()))

	var event models.PaymentEvent
	require.NoError(t, db.Where("intent_id = ?", "pi_1").First(&event).Error)
	assert.True(t, event.Processed)
}

type captureNotifier struct {
	sent []ProvisionedNotification
	err  error
}

func (c *captureNotifier) NotifyProvisioned(n ProvisionedNotification) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, n)
	return nil
}
