package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters, exported at /metrics alongside the HTTP instrumentation.
var (
	// ordersPlaced counts orders committed through the conversation flow.
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_placed_total",
		Help: "Total number of orders committed via the chat flow.",
	})
)
