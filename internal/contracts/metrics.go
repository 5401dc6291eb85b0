package contracts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentify",
		Subsystem: "contracts",
		Name:      "actions_total",
		Help:      "Contract history entries written, by action.",
	}, []string{"action"})

	pdfJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentify",
		Subsystem: "contracts",
		Name:      "pdf_jobs_total",
		Help:      "PDF job outcomes: done, stale, retry, failed.",
	}, []string{"result"})

	versionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentify",
		Subsystem: "contracts",
		Name:      "version_conflicts_total",
		Help:      "Conditional contract updates that lost a race and were retried.",
	})
)
