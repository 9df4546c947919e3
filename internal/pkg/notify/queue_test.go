package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterFailureDropsAfterMaxRetries(t *testing.T) {
	job := EmailJob{ID: "j1", MaxRetries: DefaultMaxRetries}

	// Three failures stay requeueable, the fourth crosses the limit.
	for attempt := 1; attempt <= DefaultMaxRetries; attempt++ {
		assert.False(t, job.RegisterFailure(), "attempt %d should requeue", attempt)
		assert.Equal(t, attempt, job.RetryCount)
	}
	assert.True(t, job.RegisterFailure())
	assert.Equal(t, DefaultMaxRetries+1, job.RetryCount)
}

func TestRegisterFailureNoRetriesConfigured(t *testing.T) {
	job := EmailJob{ID: "j1", MaxRetries: 0}
	assert.True(t, job.RegisterFailure())
}
