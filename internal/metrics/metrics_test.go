package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncUpload(UploadStored)
	m.IncUpload(UploadStored)
	m.IncUpload("")
	m.IncCleanupFailure()
	m.IncCarWrite("update")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads.WithLabelValues(UploadStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cleanupFailure))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.carWrites.WithLabelValues("update")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncUpload(UploadFailed)
		m.IncCleanupFailure()
		m.IncCarWrite("create")
	})
	assert.NotPanics(t, func() { New(nil).IncUpload(UploadStored) })
}
