package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	httpRequestsTotal = nil
	httpRequestDurationSeconds = nil
	batchURLsTotal = nil
	batchSizeURLs = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if httpRequestsTotal == nil || httpRequestDurationSeconds == nil ||
		batchURLsTotal == nil || batchSizeURLs == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveBatch(10, 8, 2)
	if val := testutil.ToFloat64(batchURLsTotal.WithLabelValues("succeeded")); val != 8 {
		t.Errorf("Expected 8 succeeded urls, got %f", val)
	}
	if val := testutil.ToFloat64(batchURLsTotal.WithLabelValues("failed")); val != 2 {
		t.Errorf("Expected 2 failed urls, got %f", val)
	}
	if val := testutil.CollectAndCount(batchSizeURLs); val <= 0 {
		t.Errorf("Expected batchSizeURLs to be observed, got %d", val)
	}
}
