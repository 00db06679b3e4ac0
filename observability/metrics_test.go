package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"nftpawn/core/events"
)

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	errs := m.errors.WithLabelValues("pawn", "/v1/loans/repay", "409")
	before := testutil.ToFloat64(errs)
	m.Observe("pawn", "/v1/loans/repay", 409, time.Millisecond)
	if got := testutil.ToFloat64(errs); got != before+1 {
		t.Fatalf("expected error counter to increase, got %v -> %v", before, got)
	}
	throttles := m.throttles.WithLabelValues("pawn", "rate_limit")
	before = testutil.ToFloat64(throttles)
	m.RecordThrottle("pawn", "rate_limit")
	if got := testutil.ToFloat64(throttles); got != before+1 {
		t.Fatalf("expected throttle counter to increase")
	}
}

func TestEventMetricsEmitter(t *testing.T) {
	var emitter events.Emitter = Events()
	counter := Events().emitted.WithLabelValues(events.TypeTransfer)
	before := testutil.ToFloat64(counter)
	emitter.Emit(events.Transfer{Amount: 1})
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected transfer events to be counted, got %v -> %v", before, got)
	}
}
