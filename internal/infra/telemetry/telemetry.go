package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
)

// OperationMetrics counts account lifecycle operations by outcome.
type OperationMetrics struct {
	operations *prometheus.CounterVec
}

// NewOperationMetrics registers the operation counter with reg, reusing an
// existing collector when one is already registered.
func NewOperationMetrics(reg prometheus.Registerer, namespace string) (*OperationMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "iam"
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "account",
		Name:      "operations_total",
		Help:      "Account lifecycle operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	if err := reg.Register(operations); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register operations collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing operations collector has unexpected type %T", already.ExistingCollector)
		}
		operations = existing
	}

	return &OperationMetrics{operations: operations}, nil
}

// Observe increments the counter for the operation outcome.
func (m *OperationMetrics) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// Collector exposes the underlying counter, mainly for tests.
func (m *OperationMetrics) Collector() *prometheus.CounterVec {
	return m.operations
}

var _ port.OperationMetrics = (*OperationMetrics)(nil)
