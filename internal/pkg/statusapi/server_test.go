package statusapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/roamsim/esim-reconciler/app/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PaymentEvent{}))
	return db
}

type fakeReporter struct {
	at  time.Time
	err error
}

func (f *fakeReporter) LastTick() (time.Time, error) {
	return f.at, f.err
}

func TestHealthz(t *testing.T) {
	s := New(openTestDB(t), nil)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
}

func TestStatusReportsCountsAndLastTick(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.PaymentEvent{IntentID: "pi_1", Status: models.PaymentStatusSucceeded}).Error)
	require.NoError(t, db.Create(&models.PaymentEvent{IntentID: "pi_2", Status: models.PaymentStatusSucceeded}).Error)
	require.NoError(t, db.Create(&models.PaymentEvent{IntentID: "pi_3", Status: models.PaymentStatusSucceeded, Processed: true}).Error)

	reporter := &fakeReporter{at: time.Now(), err: errors.New("upstream timeout")}
	s := New(db, reporter)

	// No request timeout: the first call may wait out a cache dial.
	resp, err := s.app.Test(httptest.NewRequest("GET", "/status", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.EqualValues(t, 2, body["pending_events"])
	assert.EqualValues(t, 1, body["processed_events"])
	assert.NotEmpty(t, body["last_tick_at"])
	assert.Equal(t, "upstream timeout", body["last_tick_error"])
}
