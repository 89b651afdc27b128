// Package metrics регистрирует счётчики Prometheus подсистемы премиум-доступа.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal счётчик обработанных webhook-событий по типу и исходу.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_webhook_events_total",
		Help: "Processed payment webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	// CheckoutSessionsTotal счётчик созданных сессий оплаты по исходу.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_checkout_sessions_total",
		Help: "Checkout session creation attempts by outcome.",
	}, []string{"outcome"})

	// SweepExpiredTotal счётчик записей, переведённых в expired очисткой.
	SweepExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entitlement_sweep_expired_total",
		Help: "Entitlement records expired by the sweeper.",
	})

	// SweepWarnedTotal счётчик отправленных предупреждений об окончании доступа.
	SweepWarnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entitlement_sweep_warned_total",
		Help: "Expiry warnings published by the sweeper.",
	})

	// OperatorAlertsTotal счётчик алертов оператору.
	OperatorAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entitlement_operator_alerts_total",
		Help: "Operator alerts emitted after persistent write failures.",
	})
)
