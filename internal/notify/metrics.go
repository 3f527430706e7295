package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ourslists_notify_tickets_scheduled_total",
		Help: "Notification tickets scheduled by kind",
	}, []string{"kind"})

	ticketsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ourslists_notify_tickets_cancelled_total",
		Help: "Pending notification tickets cancelled by kind",
	}, []string{"kind"})

	ticketsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ourslists_notify_tickets_fired_total",
		Help: "Notification tickets fired by kind",
	}, []string{"kind"})

	schedulerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ourslists_notify_scheduler_failures_total",
		Help: "Scheduler calls that failed by operation",
	}, []string{"operation"})

	engineDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ourslists_notify_engine_dropped_total",
		Help: "Fired requests dropped because the consumer was not keeping up",
	})
)
