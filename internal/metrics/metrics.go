// Package metrics registers the wallet's Prometheus instrumentation.
// Registration is idempotent so session restarts reuse the existing
// collectors.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	TransfersPlannedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "dispatch",
			Name:      "transfers_planned_total",
			Help:      "Total number of transfer plans produced, by mode",
		},
		[]string{"mode", "signing_mode"},
	)

	TransfersExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "dispatch",
			Name:      "transfers_executed_total",
			Help:      "Total number of transfer submissions, by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	PlanRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "dispatch",
			Name:      "plan_rejections_total",
			Help:      "Total number of transfer intents rejected at planning, by reason",
		},
		[]string{"reason"},
	)

	BridgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "bridge",
			Name:      "bridges_total",
			Help:      "Total number of finished bridge transfers, by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "vaults",
			Name:      "reconcile_failures_total",
			Help:      "Total number of per-chain reconcile failures",
		},
		[]string{"chain_id"},
	)

	LimitMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "spending",
			Name:      "limit_mutations_total",
			Help:      "Total number of on-chain limit mutations submitted, by op",
		},
		[]string{"op"},
	)
)

// RegisterMetrics registers all wallet collectors plus the standard Go and
// process collectors.
func RegisterMetrics(logger *zap.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	registerIfNotExists(TransfersPlannedTotal, "transfers_planned_total", logger)
	registerIfNotExists(TransfersExecutedTotal, "transfers_executed_total", logger)
	registerIfNotExists(PlanRejectionsTotal, "plan_rejections_total", logger)
	registerIfNotExists(BridgesTotal, "bridges_total", logger)
	registerIfNotExists(ReconcileFailuresTotal, "reconcile_failures_total", logger)
	registerIfNotExists(LimitMutationsTotal, "limit_mutations_total", logger)
}

// registerIfNotExists registers a collector, tolerating re-registration on
// session restart.
func registerIfNotExists(collector prometheus.Collector, name string, logger *zap.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debug("Collector already registered", zap.String("name", name))
		} else {
			logger.Error("Failed to register collector", zap.String("name", name), zap.Error(err))
		}
	}
}

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
