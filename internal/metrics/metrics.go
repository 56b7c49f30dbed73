// Package metrics содержит счетчики Prometheus для движка квот.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DenialsTotal количество отказов по причинам.
	DenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_denials_total",
		Help: "Number of denied entitlement checks by reason.",
	}, []string{"reason"})

	// ConsumesTotal количество успешных списаний квоты по режиму и виду действия.
	ConsumesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_consumes_total",
		Help: "Number of successful quota consumes by mode and action.",
	}, []string{"mode", "action"})

	// ActivationsTotal количество активаций пакетов, free_tier = true|false.
	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_activations_total",
		Help: "Number of package activations.",
	}, []string{"free_tier"})
)
