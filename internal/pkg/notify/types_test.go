package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailJobPayloadRoundTrip(t *testing.T) {
	payload := EmailJobPayload{
		MailSubject:   "Your eSIM is ready",
		ReceiverEmail: "ada@example.com",
		Name:          "Ada Obi",
		PlanName:      "1GB-30d",
		ICCID:         "890000",
	}

	m := payload.ToMap()
	assert.Equal(t, "Your eSIM is ready", m["mail_subject"])
	assert.Equal(t, "ada@example.com", m["receiver_email"])

	restored, err := EmailJobPayloadFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestEmailJobPayloadFromMapIgnoresUnknownKeys(t *testing.T) {
	restored, err := EmailJobPayloadFromMap(map[string]interface{}{
		"mail_subject":   "hi",
		"receiver_email": "ada@example.com",
		"unexpected":     42,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", restored.MailSubject)
	assert.Equal(t, "ada@example.com", restored.ReceiverEmail)
	assert.Empty(t, restored.Name)
}

func TestConfirmationTemplateRenders(t *testing.T) {
	payload := &EmailJobPayload{Name: "Ada", PlanName: "1GB-30d", ICCID: "890000"}

	var buf bytes.Buffer
	require.NoError(t, confirmationTemplate.Execute(&buf, payload))
	assert.Contains(t, buf.String(), "Ada")
	assert.Contains(t, buf.String(), "1GB-30d")
	assert.Contains(t, buf.String(), "890000")
}

func TestConfirmationTemplateOmitsEmptyICCID(t *testing.T) {
	payload := &EmailJobPayload{Name: "Ada", PlanName: "1GB-30d"}

	var buf bytes.Buffer
	require.NoError(t, confirmationTemplate.Execute(&buf, payload))
	assert.NotContains(t, buf.String(), "ICCID")
}
