package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("put", time.Now(), nil)
		m.RecordUpload(10)
		m.RecordDownload(10)
		m.RecordParts(2)
		m.RecordSync("upload", StatusSuccess)
		m.RecordIntegrityFailure("download")
		m.RecordChecksumRetry()
		m.SetUploadsInFlight(1)
		m.RecordDeletion(2)
		m.RecordScanSkipped(3)
		m.RecordURLStrategy("custom", nil)
	})
}

func TestInitRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := Init(reg)
	require.NotNil(t, m)
	assert.Same(t, m, Init(prometheus.NewRegistry()))
	assert.Same(t, m, Get())

	m.ObserveRequest("put", time.Now(), nil)
	m.ObserveRequest("put", time.Now(), errors.New("boom"))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RequestsTotal.WithLabelValues("put", StatusSuccess)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RequestsTotal.WithLabelValues("put", StatusError)))

	before := promtest.ToFloat64(m.DuplicatesSkipped)
	m.RecordSync("upload", StatusDuplicate)
	assert.Equal(t, before+1, promtest.ToFloat64(m.DuplicatesSkipped))

	m.RecordUpload(42)
	assert.GreaterOrEqual(t, promtest.ToFloat64(m.BytesUploaded), 42.0)

	m.RecordURLStrategy("providerDev", errors.New("api down"))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.URLStrategyResults.WithLabelValues("providerDev", StatusError)))
}
