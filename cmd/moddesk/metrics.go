package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("moddesk")

var itemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moddesk_api_items_processed",
	Help: "Number of content items processed via the HTTP API",
})
