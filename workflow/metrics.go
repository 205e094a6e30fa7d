package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moddesk_workflow_transitions",
	Help: "Number of workflows entering each status",
}, []string{"status"})
