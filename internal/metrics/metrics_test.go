package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("curate", "DONE")
	m.ObserveRequest("curate", "DONE")
	m.ObserveRequest("categorize", "REJECTED_SHORT_TEXT")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("curate", "DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("categorize", "REJECTED_SHORT_TEXT")))
}

func TestObserveRetrievalAndIngest(t *testing.T) {
	m := New()
	m.ObserveRetrieval("failed")
	m.ObserveIngest("indexed")
	m.ObserveIngest("retry")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retrievals.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestJobs.WithLabelValues("indexed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestJobs.WithLabelValues("retry")))
}

func TestObserveGeneration(t *testing.T) {
	m := New()
	m.ObserveGeneration("curate", 2*time.Second, nil)
	m.ObserveGeneration("curate", time.Second, errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.GenerationLatency, "curador_generation_duration_seconds"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("curate", "DONE")
		m.ObserveRetrieval("found")
		m.ObserveGeneration("curate", time.Second, nil)
		m.ObserveIngest("failed")
		m.SetBuildInfo("v", "b", "m", "p")
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetBuildInfo("dev", "cloud", "llama-3.1-8b-instant", "agro")
	m.ObserveRequest("curate", "DONE")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `curador_requests_total{op="curate",state="DONE"} 1`)
	assert.Contains(t, string(body), `curador_build_info{backend="cloud",model="llama-3.1-8b-instant",partition="agro",version="dev"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
