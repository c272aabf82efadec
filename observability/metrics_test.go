package observability_test

import (
	"testing"
	"time"

	"github.com/vcider/go-vcider/observability"
)

func TestNoopMetricsRecorder(t *testing.T) {
	t.Parallel()

	recorder := observability.NoopMetricsRecorder()

	// All methods should execute without panicking
	recorder.RecordHTTPRequest("GET", "/test", 200, time.Second)
	recorder.RecordClockResync(-42)
	recorder.RecordRateLimit("/endpoint", 100*time.Millisecond)
	recorder.RecordError("update", "UnavailableResource")
}
