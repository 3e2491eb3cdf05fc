package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImportPreviewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trucktracker_import_previews_total",
		Help: "Total number of spreadsheet previews that produced an import session.",
	})

	ImportRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trucktracker_import_records_total",
		Help: "Daily records processed by import confirm, by outcome.",
	},
		[]string{"outcome"},
	)

	TruckMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trucktracker_truck_mutations_total",
		Help: "Total number of successful truck writes, by action.",
	},
		[]string{"action"},
	)

	AuthFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trucktracker_auth_failures_total",
		Help: "Rejected authentication attempts, by reason.",
	},
		[]string{"reason"},
	)

	ImportSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trucktracker_import_sessions_active",
		Help: "Current number of pending import sessions held in process memory.",
	})
)
