package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Contadores do motor de apostas, expostos via /metrics
var (
	WagersAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagers_admitted_total",
		Help: "Apostas admitidas no ledger",
	})

	WagersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagers_rejected_total",
		Help: "Apostas rejeitadas na admissão, por motivo",
	}, []string{"reason"})

	Settlements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Corridas liquidadas",
	})

	SettlementReversals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_reversals_total",
		Help: "Liquidações revertidas por correção de vencedor",
	})

	PointsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "points_paid_total",
		Help: "Pontos creditados em liquidações (ganhos + bônus)",
	})
)
