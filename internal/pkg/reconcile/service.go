package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/roamsim/esim-reconciler/app/models"
	"github.com/roamsim/esim-reconciler/internal/pkg/provisioning"
)

// APIClient is the subset of the provisioning client used by a tick.
type APIClient interface {
	IssueProfile(ctx context.Context, customerRef, planTypeID string) (*provisioning.IssueProfileResponse, error)
	FetchProduct(ctx context.Context, planUID string) (*provisioning.ProductResponse, error)
}

// ProvisionedNotification describes one successfully provisioned event for
// the fire-and-forget mailer.
type ProvisionedNotification struct {
	ReceiverEmail string
	Name          string
	PlanName      string
	ICCID         string
}

// Notifier enqueues provisioning notifications after a tick commits. Its
// errors never affect reconciliation.
type Notifier interface {
	NotifyProvisioned(n ProvisionedNotification) error
}

// Service runs the reconciliation transaction. Every tick derives its own
// scoped transaction from the injected DB handle; nothing is shared across
// ticks except the store itself.
type Service struct {
	db       *gorm.DB
	client   APIClient
	notifier Notifier
	loc      *time.Location

	randDigits func() int64
	now        func() time.Time
}

// NewService creates a reconciliation service. notifier may be nil.
// Processed timestamps are recorded in loc.
func NewService(db *gorm.DB, client APIClient, notifier Notifier, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:         db,
		client:     client,
		notifier:   notifier,
		loc:        loc,
		randDigits: defaultRandDigits,
		now:        time.Now,
	}
}

// RunTick processes every currently eligible payment event inside one
// transaction. Any failure past the customer lookup rolls back the whole
// tick, leaving all events unprocessed for the next tick to retry. On
// success the tick commits once, then enqueues notifications.
func (s *Service) RunTick(ctx context.Context) error {
	var provisioned []ProvisionedNotification

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)

		rows, err := repo.FindEligibleEvents()
		if err != nil {
			return fmt.Errorf("eligible events query failed: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			log.Infof("[Reconcile] Processing intent %s (plan %s)", row.IntentID, row.PlanUID)

			customer, err := repo.FindCustomerByStripeID(row.CustomerBillingID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Recoverable per-row condition: onboarding may lag behind
				// the payment. Skip and keep the event eligible.
				log.Warnf("[Reconcile] No customer for billing id %s (intent %s), skipping", row.CustomerBillingID, row.IntentID)
				continue
			}
			if err != nil {
				return fmt.Errorf("customer lookup for intent %s failed: %w", row.IntentID, err)
			}

			issueResp, err := s.client.IssueProfile(ctx, customer.CustomerRef, row.PlanUID)
			if err != nil {
				return fmt.Errorf("issue profile for intent %s: %w", row.IntentID, err)
			}

			profile := buildProfile(issueResp, row.IntentID, customer.Email)
			if err := repo.CreateEsimProfile(profile); err != nil {
				return fmt.Errorf("persist profile for intent %s: %w", row.IntentID, err)
			}

			productResp, err := s.client.FetchProduct(ctx, row.PlanUID)
			if err != nil {
				return fmt.Errorf("product detail for plan %s (intent %s): %w", row.PlanUID, row.IntentID, err)
			}

			transactionID, err := generateTransactionID(repo.TransactionIDExists, s.randDigits, s.now)
			if err != nil {
				return fmt.Errorf("transaction id for intent %s: %w", row.IntentID, err)
			}

			history := buildHistory(productResp, row.IntentID, transactionID, customer.Email)
			if err := repo.CreatePlanHistory(history); err != nil {
				return fmt.Errorf("persist plan history for intent %s: %w", row.IntentID, err)
			}

			if err := repo.MarkEventProcessed(row.IntentID, productResp.Status, productResp.Message, s.now().In(s.loc)); err != nil {
				return fmt.Errorf("mark intent %s processed: %w", row.IntentID, err)
			}

			provisioned = append(provisioned, ProvisionedNotification{
				ReceiverEmail: customer.Email,
				Name:          customer.FullName(),
				PlanName:      planName(productResp),
				ICCID:         profileICCID(issueResp),
			})
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		for _, n := range provisioned {
			if err := s.notifier.NotifyProvisioned(n); err != nil {
				log.Errorf("[Reconcile] Failed to enqueue notification for %s: %v", n.ReceiverEmail, err)
			}
		}
	}

	return nil
}

func buildProfile(resp *provisioning.IssueProfileResponse, intentID, customerEmail string) *models.EsimProfile {
	profile := &models.EsimProfile{
		RequestID:       resp.RequestID,
		PaymentIntentID: intentID,
		CustomerEmail:   customerEmail,
	}

	if esim := resp.Esim; esim != nil {
		profile.APN = esim.APN
		profile.Tag = esim.Tag
		profile.UID = esim.UID
		profile.ICCID = esim.ICCID
		profile.State = esim.State
		profile.AutoAPN = esim.AutoAPN
		profile.ManualCode = esim.ManualCode
		profile.SMDPAddress = esim.SMDPAddress
		profile.DateAssigned = esim.AssignedAt()
		profile.NetworkStatus = esim.NetworkStatus
		profile.ServiceStatus = esim.ServiceStatus
		profile.ActivationCode = esim.ActivationCode
	}

	return profile
}

func buildHistory(resp *provisioning.ProductResponse, intentID, transactionID, customerEmail string) *models.PlanHistory {
	history := &models.PlanHistory{
		IntentID:      intentID,
		TransactionID: transactionID,
		CustomerEmail: customerEmail,
	}

	if esim := resp.Esim; esim != nil {
		history.ICCID = esim.ICCID
	}

	if product := resp.Product; product != nil {
		history.UID = product.UID
		history.Name = product.Name
		history.DataQuotaMB = provisioning.QuotaString(product.DataQuotaMB)
		history.DataQuotaBytes = provisioning.QuotaString(product.DataQuotaBytes)
		history.ValidityDays = product.ValidityDays
		history.PolicyID = product.PolicyID
		history.PolicyName = product.PolicyName
		history.WholesalePriceUSD = product.WholesalePriceUSD
		history.RRPUSD = product.RRPUSD
		history.RRPEUR = product.RRPEUR
		history.RRPGBP = product.RRPGBP
		history.RRPCAD = product.RRPCAD
		history.RRPAUD = product.RRPAUD
		history.RRPJPY = product.RRPJPY

		if len(product.CountriesEnabled) > 0 {
			joined := strings.Join(product.CountriesEnabled, ",")
			history.CountriesEnabled = &joined
		}
	}

	return history
}

func planName(resp *provisioning.ProductResponse) string {
	if resp.Product != nil && resp.Product.Name != nil {
		return *resp.Product.Name
	}
	return ""
}

func profileICCID(resp *provisioning.IssueProfileResponse) string {
	if resp.Esim != nil && resp.Esim.ICCID != nil {
		return *resp.Esim.ICCID
	}
	return ""
}
