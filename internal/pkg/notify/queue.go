package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roamsim/esim-reconciler/internal/pkg/cache"
	"github.com/roamsim/esim-reconciler/internal/pkg/mail"
	"github.com/roamsim/esim-reconciler/internal/pkg/reconcile"
)

// confirmationTemplate renders the provisioning-confirmation mail body.
var confirmationTemplate = template.Must(template.New("provisioned").Parse(`<html>
<body>
<p>Hi {{.Name}},</p>
<p>Your eSIM data plan <strong>{{.PlanName}}</strong> is ready.</p>
{{if .ICCID}}<p>ICCID: {{.ICCID}}</p>{{end}}
<p>Safe travels!</p>
</body>
</html>`))

// Queue is a Redis-backed fire-and-forget email queue with a single
// delivery worker. Reconciliation only ever enqueues; delivery failures
// are retried a few times and then dropped.
type Queue struct {
	client *redis.Client

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewQueue creates an email queue on the shared Redis client.
func NewQueue() *Queue {
	return &Queue{
		client: cache.GetClient(),
		stopCh: make(chan struct{}),
	}
}

// NotifyProvisioned enqueues a provisioning-confirmation mail. Implements
// reconcile.Notifier.
func (q *Queue) NotifyProvisioned(n reconcile.ProvisionedNotification) error {
	payload := EmailJobPayload{
		MailSubject:   "Your eSIM is ready",
		ReceiverEmail: n.ReceiverEmail,
		Name:          n.Name,
		PlanName:      n.PlanName,
		ICCID:         n.ICCID,
	}
	return q.Enqueue(payload)
}

// Enqueue pushes a mail job onto the queue.
func (q *Queue) Enqueue(payload EmailJobPayload) error {
	job := EmailJob{
		ID:         uuid.New().String(),
		Payload:    payload.ToMap(),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := q.client.LPush(ctx, EmailQueueKey, data).Err(); err != nil {
		return err
	}

	log.Infof("[Notify] Enqueued mail job %s for %s", job.ID, payload.ReceiverEmail)
	return nil
}

// Start launches the delivery worker.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.stopCh = make(chan struct{})
	q.running = true
	log.Info("[Notify] Starting mail worker")

	q.wg.Add(1)
	go q.worker()
}

// Stop halts the delivery worker.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[Notify] Stopping mail worker...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[Notify] Mail worker stopped")
}

func (q *Queue) worker() {
	defer q.wg.Done()

	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		result, err := q.client.BRPop(ctx, 2*time.Second, EmailQueueKey).Result()
		if err != nil {
			if err != redis.Nil {
				log.Errorf("[Notify] BRPop error: %v", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job EmailJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Errorf("[Notify] Dropping undecodable mail job: %v", err)
			continue
		}

		if err := q.deliver(&job); err != nil {
			q.retryOrDrop(ctx, &job, err)
		}
	}
}

func (q *Queue) deliver(job *EmailJob) error {
	payload, err := EmailJobPayloadFromMap(job.Payload)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, payload); err != nil {
		return err
	}

	return mail.SendMail(payload.ReceiverEmail, payload.MailSubject, body.String())
}

// retryOrDrop requeues a failed job until MaxRetries, then drops it. Mail
// is best effort; reconciliation already committed.
func (q *Queue) retryOrDrop(ctx context.Context, job *EmailJob, cause error) {
	if job.RegisterFailure() {
		log.Errorf("[Notify] Dropping mail job %s after %d attempts: %v", job.ID, job.RetryCount, cause)
		return
	}

	log.Warnf("[Notify] Mail job %s failed (attempt %d/%d), requeueing: %v", job.ID, job.RetryCount, job.MaxRetries, cause)
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[Notify] Failed to requeue mail job %s: %v", job.ID, err)
		return
	}
	if err := q.client.LPush(ctx, EmailQueueKey, data).Err(); err != nil {
		log.Errorf("[Notify] Failed to requeue mail job %s: %v", job.ID, err)
	}
}
