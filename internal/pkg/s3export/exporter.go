package s3export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/roamsim/esim-reconciler/app/models"
)

// auditRow is one processed payment event in the daily snapshot.
type auditRow struct {
	IntentID        string     `json:"intent_id"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	ProcessedAt     *time.Time `json:"processed_at"`
	ResponseStatus  *string    `json:"response_status"`
	ResponseMessage *string    `json:"response_message"`
	ProfileUID      *string    `json:"profile_uid" gorm:"column:profile_uid"`
}

// Exporter uploads a daily JSON snapshot of processed payment events for
// offline audit. Failures are logged by the caller and never retried
// within the day.
type Exporter struct {
	s3Client *s3.Client
	config   *Config
	db       *gorm.DB
}

// NewExporter creates an audit exporter from a validated, enabled config.
func NewExporter(cfg *Config, db *gorm.DB) (*Exporter, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("S3 export is disabled")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &Exporter{
		s3Client: s3Client,
		config:   cfg,
		db:       db,
	}, nil
}

// Export uploads the snapshot of events processed since midnight UTC.
func (e *Exporter) Export(ctx context.Context) error {
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)

	var rows []auditRow
	err := e.db.Model(&models.PaymentEvent{}).
		Select("payment_events.intent_id, payment_events.amount, payment_events.currency, payment_events.processed_at, payment_events.response_status, payment_events.response_message, esim_profiles.uid AS profile_uid").
		Joins("LEFT JOIN esim_profiles ON esim_profiles.payment_intent_id = payment_events.intent_id").
		Where("payment_events.processed = ? AND payment_events.processed_at >= ?", true, startOfDay).
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("audit query failed: %w", err)
	}

	if len(rows) == 0 {
		log.Info("[AuditExport] Nothing processed today, skipping upload")
		return nil
	}

	body, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}

	key := e.config.ObjectKey(startOfDay)
	_, err = e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", key, err)
	}

	log.Infof("[AuditExport] Uploaded %d rows to s3://%s/%s", len(rows), e.config.BucketName, key)
	return nil
}
