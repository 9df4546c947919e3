package notify

import (
	"encoding/json"
	"time"
)

const (
	// EmailQueueKey is the Redis list backing the mail queue.
	EmailQueueKey = "notify:email_queue"

	// DefaultMaxRetries bounds redelivery attempts before a job is dropped.
	DefaultMaxRetries = 3
)

// EmailJob is one queued notification. Delivery is best effort: a job that
// exhausts its retries is dropped with a log line, never resurfaced.
type EmailJob struct {
	ID         string                 `json:"id"`
	Payload    map[string]interface{} `json:"payload"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`
	MaxRetries int                    `json:"max_retries"`
}

// RegisterFailure records a failed delivery attempt and reports whether
// the job has exhausted its retries and must be dropped.
func (j *EmailJob) RegisterFailure() bool {
	j.RetryCount++
	return j.RetryCount > j.MaxRetries
}

// EmailJobPayload is the data bag for the provisioning-confirmation mail.
type EmailJobPayload struct {
	MailSubject   string `json:"mail_subject"`
	ReceiverEmail string `json:"receiver_email"`
	Name          string `json:"name"`
	PlanName      string `json:"plan_name"`
	ICCID         string `json:"iccid"`
}

// ToMap converts the payload to a map for storage
func (p EmailJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"mail_subject":   p.MailSubject,
		"receiver_email": p.ReceiverEmail,
		"name":           p.Name,
		"plan_name":      p.PlanName,
		"iccid":          p.ICCID,
	}
}

// EmailJobPayloadFromMap creates a payload from a map
func EmailJobPayloadFromMap(data map[string]interface{}) (*EmailJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload EmailJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
