package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas Prometheus do gatekeeper de uploads
var (
	// UploadDecisionsTotal conta decisões do UploadGate por resultado e motivo
	UploadDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_gate_decisions_total",
		Help: "Total number of upload admission decisions",
	}, []string{"outcome", "reason"})

	// UploadedBytesTotal soma os bytes aceitos e gravados no backend
	UploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upload_gate_uploaded_bytes_total",
		Help: "Total number of bytes stored by accepted uploads",
	})

	// StorageOperationDurationSeconds mede a latência das operações de storage
	StorageOperationDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upload_gate_storage_operation_duration_seconds",
		Help:    "Latency of counter, config and listing store operations",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 3},
	}, []string{"backend", "operation", "status"})

	// ConfigWritesTotal conta escritas administrativas de configuração
	ConfigWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_gate_config_writes_total",
		Help: "Total number of admin config write attempts",
	}, []string{"result"})
)

// ObserveStorageOperation registra a latência (em segundos) de uma operação de storage
func ObserveStorageOperation(backend, operation string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StorageOperationDurationSeconds.WithLabelValues(backend, operation, status).Observe(seconds)
}

// RecordDecision registra uma decisão do UploadGate
func RecordDecision(outcome, reason string) {
	UploadDecisionsTotal.WithLabelValues(outcome, reason).Inc()
}
