package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	nativecommon "nftpawn/native/common"
	"nftpawn/native/pawn"
)

// PawnMetrics records loan engine activity. It implements pawn.Observer.
type PawnMetrics struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	compensations *prometheus.CounterVec
}

var (
	pawnOnce     sync.Once
	pawnRegistry *PawnMetrics
)

func Pawn() *PawnMetrics {
	pawnOnce.Do(func() {
		pawnRegistry = &PawnMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pawn_operations_total",
				Help: "Count of loan engine operations by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "pawn_operation_duration_seconds",
				Help:    "Latency distribution of loan engine operations.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pawn_compensations_total",
				Help: "Count of compensating actions by operation and outcome.",
			}, []string{"operation", "outcome"}),
		}
		prometheus.MustRegister(
			pawnRegistry.operations,
			pawnRegistry.latency,
			pawnRegistry.compensations,
		)
	})
	return pawnRegistry
}

// Outcome maps an engine error onto a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, pawn.ErrReleasePending):
		return "release_pending"
	case errors.Is(err, pawn.ErrLoanIsActive),
		errors.Is(err, pawn.ErrLoanIsNotActive),
		errors.Is(err, pawn.ErrLoanAlreadyFunded),
		errors.Is(err, pawn.ErrLoanNotFunded),
		errors.Is(err, pawn.ErrPoolExists):
		return "conflict"
	case errors.Is(err, pawn.ErrMathOverflow):
		return "overflow"
	case errors.Is(err, pawn.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

func (m *PawnMetrics) ObserveOperation(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *PawnMetrics) ObserveCompensation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "failed"
	}
	m.compensations.WithLabelValues(op, outcome).Inc()
}
