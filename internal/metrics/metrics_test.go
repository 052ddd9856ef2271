package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Receipt(ReceiptRecorded)
	m.Transition("Seen")
	m.Deletion("trashed", 3)
	m.Job("housekeeping", "ok")
}

func TestCounters(t *testing.T) {
	m := New()
	m.Receipt(ReceiptRecorded)
	m.Receipt(ReceiptRecorded)
	m.Receipt(ReceiptReadByAll)
	m.Deletion("trashed", 4)
	m.Deletion("trashed", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.receipts.WithLabelValues(ReceiptRecorded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.receipts.WithLabelValues(ReceiptReadByAll)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.deletions.WithLabelValues("trashed")))
}

func TestHandlerServesCounters(t *testing.T) {
	m := New()
	m.Job("housekeeping", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `mailcore_jobs_total{action="housekeeping",outcome="ok"} 1`))
}
