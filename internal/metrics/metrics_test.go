package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ImageProcessed(OutcomeOK)
	m.ImageProcessed(OutcomeOK)
	m.ImageProcessed(OutcomeBadInput)
	m.ItemsDetected("Scrap", 3)
	m.ItemsDetected("Scrap", 2)
	m.ReplySent("compliment")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.images.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.images.WithLabelValues(OutcomeBadInput)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.items.WithLabelValues("Scrap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replies.WithLabelValues("compliment")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ImageProcessed(OutcomeFailed)
	m.ObserveDetection(120 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lootbot_images_total{outcome="failed"} 1`)
	assert.Contains(t, string(body), "lootbot_detection_duration_seconds_count 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ReplySent("bunny")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.replies.WithLabelValues("bunny")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.replies.WithLabelValues("bunny")))
}
