package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Upload results.
const (
	UploadStored  = "stored"
	UploadSkipped = "skipped"
	UploadFailed  = "failed"
)

// Metrics holds the inventory counters. A nil *Metrics is a no-op.
type Metrics struct {
	uploads        *prometheus.CounterVec
	cleanupFailure prometheus.Counter
	carWrites      *prometheus.CounterVec
}

// New registers the counters on reg. A nil reg yields a no-op recorder.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_uploads_total",
		Help: "Image parts received by the upload endpoint, by result.",
	}, []string{"result"})
	cleanup := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blob_cleanup_failures_total",
		Help: "Best-effort blob deletions that failed after a listing was removed.",
	})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "car_writes_total",
		Help: "Listing writes, by operation.",
	}, []string{"op"})
	reg.MustRegister(uploads, cleanup, writes)
	return &Metrics{uploads: uploads, cleanupFailure: cleanup, carWrites: writes}
}

// IncUpload counts one upload part with the given result.
func (m *Metrics) IncUpload(result string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncCleanupFailure counts one failed blob cleanup.
func (m *Metrics) IncCleanupFailure() {
	if m == nil || m.cleanupFailure == nil {
		return
	}
	m.cleanupFailure.Inc()
}

// IncCarWrite counts one create/update/delete.
func (m *Metrics) IncCarWrite(op string) {
	if m == nil || m.carWrites == nil {
		return
	}
	m.carWrites.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
