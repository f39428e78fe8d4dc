package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "whale_signal"

var (
	// QueueMessages consumed messages by queue and outcome (ok / retry / dropped)
	QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_messages_total",
		Help:      "Messages consumed from durable queues by outcome",
	}, []string{"queue", "outcome"})

	QueuePublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_published_total",
		Help:      "Messages published to durable queues",
	}, []string{"queue"})

	HandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "handle_latency_ms",
		Help:      "Handler latency per queue in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	}, []string{"queue"})

	// TradesProcessed whale stage outcomes (applied / duplicate / qualified / signal)
	TradesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_processed_total",
		Help:      "Trades processed by the position and score stage",
	}, []string{"outcome"})

	Behaviors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "behaviors_detected_total",
		Help:      "Behavior patterns matched",
	}, []string{"behavior"})

	// AlertDecisions alert stage outcomes by rule
	AlertDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_decisions_total",
		Help:      "Cooldown decisions by outcome and rule",
	}, []string{"outcome", "rule"})

	// Deliveries fanout outcomes (sent / scheduled / capped / limited / filtered / duplicate / failed)
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Per recipient delivery outcomes",
	}, []string{"outcome", "plan"})

	ScheduledPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduled_sends_pending",
		Help:      "Delayed sends waiting to fire",
	})

	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "external_calls_total",
		Help:      "Calls to external collaborators by target and result",
	}, []string{"target", "result"})

	StatsRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stats_runs_total",
		Help:      "Batch job runs by job and result",
	}, []string{"job", "result"})
)
