package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ourslists_push_deliveries_total",
	Help: "Web Push deliveries by notification kind and result",
}, []string{"kind", "result"})
